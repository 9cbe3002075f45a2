package discovery

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// defaultConnections are probed on every run.
var defaultConnections = []string{
	"Username-Password-Authentication",
	"email",
	"sms",
	"google-oauth2",
	"facebook",
	"github",
	"twitter",
	"linkedin",
	"windowslive",
	"apple",
	"Database-Connection",
	"Legacy-Database",
	"Corporate-AD",
	"LDAP",
}

// DefaultConnections returns the built-in wordlist.
func DefaultConnections() []string {
	out := make([]string, len(defaultConnections))
	copy(out, defaultConnections)
	return out
}

// LoadWordlist reads one connection name per line. Blank lines and lines
// starting with '#' are ignored.
func LoadWordlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: connection wordlist: %v", sharedErrors.ErrConfiguration, err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read connection wordlist: %v", sharedErrors.ErrConfiguration, err)
	}
	return names, nil
}

// BuildCandidates merges the built-in wordlist, the names loaded from a
// wordlist file and the variations of keyword, in that order. A name keeps
// the provenance of its first appearance.
func BuildCandidates(custom []string, keyword string) []scan.ConnectionCandidate {
	var out []scan.ConnectionCandidate
	seen := make(map[string]bool)
	add := func(names []string, provenance scan.Provenance) {
		for _, name := range names {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, scan.ConnectionCandidate{Name: name, Provenance: provenance})
		}
	}

	add(defaultConnections, scan.ProvenanceWordlist)
	add(custom, scan.ProvenanceCustomFile)
	if keyword != "" {
		add(Variations(keyword), scan.ProvenanceGenerated)
	}
	return out
}

// TrustedCandidates turns the names of a wordlist file into candidates
// that skip discovery entirely.
func TrustedCandidates(custom []string) []scan.ConnectionCandidate {
	return dedupe(wrap(custom, scan.ProvenanceCustomFile))
}

func wrap(names []string, provenance scan.Provenance) []scan.ConnectionCandidate {
	out := make([]scan.ConnectionCandidate, 0, len(names))
	for _, name := range names {
		out = append(out, scan.ConnectionCandidate{Name: name, Provenance: provenance})
	}
	return out
}

// dedupe drops repeated names, comparing case-sensitively and keeping the
// first occurrence.
func dedupe(candidates []scan.ConnectionCandidate) []scan.ConnectionCandidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]scan.ConnectionCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out
}
