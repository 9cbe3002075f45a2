package classifier

import (
	"net/http"
	"strings"

	"github.com/khanhnv2901/idprecon/internal/domain/scan"
)

// AnalyzeCORS inspects the CORS headers returned for a request sent with
// Origin: origin. A wildcard or a reflected attacker origin is an issue.
func AnalyzeCORS(headers http.Header, origin string) scan.CORSSummary {
	summary := scan.CORSSummary{
		AllowOrigin:      headers.Get("Access-Control-Allow-Origin"),
		AllowCredentials: strings.EqualFold(headers.Get("Access-Control-Allow-Credentials"), "true"),
	}

	switch {
	case summary.AllowOrigin == "":
		return summary
	case summary.AllowOrigin == "*":
		summary.AllowsAnyOrigin = true
		summary.Issues = append(summary.Issues, "CORS allows any origin (*)")
		if summary.AllowCredentials {
			summary.Issues = append(summary.Issues, "Credentials allowed with wildcard origin (disallowed by browsers)")
		}
	case origin != "" && strings.EqualFold(strings.TrimRight(summary.AllowOrigin, "/"), strings.TrimRight(origin, "/")):
		summary.ReflectsOrigin = true
		summary.Issues = append(summary.Issues, "CORS reflects arbitrary Origin "+origin)
		if summary.AllowCredentials {
			summary.Issues = append(summary.Issues, "Credentials allowed for reflected origin")
		}
	}

	if allowHeaders := headers.Get("Access-Control-Allow-Headers"); strings.Contains(allowHeaders, "*") {
		summary.Issues = append(summary.Issues, "Access-Control-Allow-Headers allows any header (*)")
	}
	if !varyIncludesOrigin(headers.Values("Vary")) && !summary.AllowsAnyOrigin {
		summary.Issues = append(summary.Issues, "Vary: Origin header missing (responses may be cached incorrectly)")
	}
	return summary
}

func classifyCORS(resp Response) Outcome {
	origin := ""
	if resp.InjectedHost != "" {
		origin = "https://" + NormalizeHostname(resp.InjectedHost)
	}
	summary := AnalyzeCORS(resp.Header, origin)
	if summary.AllowsAnyOrigin || summary.ReflectsOrigin {
		return Vulnerable
	}
	return Safe
}

func varyIncludesOrigin(values []string) bool {
	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "origin") {
				return true
			}
		}
	}
	return false
}
