package scan

// Provenance records where a connection candidate came from.
type Provenance string

const (
	ProvenanceWordlist   Provenance = "wordlist"
	ProvenanceGenerated  Provenance = "generated"
	ProvenanceCustomFile Provenance = "custom-file"
)

// ConnectionCandidate is a connection name queued for discovery.
type ConnectionCandidate struct {
	Name       string     `json:"name" yaml:"name"`
	Provenance Provenance `json:"provenance" yaml:"provenance"`
}
