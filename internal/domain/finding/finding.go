package finding

import (
	"errors"
	"fmt"
	"time"
)

// Evidence captures what was sent and what came back for a finding.
type Evidence struct {
	Request  string `json:"request" yaml:"request"`
	Status   int    `json:"status,omitempty" yaml:"status,omitempty"`
	Response string `json:"response,omitempty" yaml:"response,omitempty"`
	Note     string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Finding is an immutable record of one observation made during a scan.
type Finding struct {
	id          string
	checkID     string
	rule        string
	phase       int
	connection  string
	severity    Severity
	title       string
	description string
	evidence    []Evidence
	supersedes  string
	observedAt  time.Time
}

// Spec holds the fields required to build a Finding.
type Spec struct {
	CheckID string
	// Rule names the kind of observation, e.g. "public_signup_enabled".
	// Recommendations are keyed by it.
	Rule        string
	Phase       int
	Connection  string
	Severity    Severity
	Title       string
	Description string
	Evidence    []Evidence
}

// New validates spec and returns a Finding. The id is assigned by the
// accumulator that records it, so New leaves it empty.
func New(spec Spec) (Finding, error) {
	if spec.CheckID == "" {
		return Finding{}, errors.New("finding check id cannot be empty")
	}
	if !spec.Severity.IsValid() {
		return Finding{}, fmt.Errorf("finding %s: invalid severity %q", spec.CheckID, spec.Severity)
	}
	if spec.Rule == "" {
		spec.Rule = spec.CheckID
	}
	if spec.Title == "" {
		spec.Title = spec.CheckID
	}

	evidence := make([]Evidence, len(spec.Evidence))
	copy(evidence, spec.Evidence)

	return Finding{
		checkID:     spec.CheckID,
		rule:        spec.Rule,
		phase:       spec.Phase,
		connection:  spec.Connection,
		severity:    spec.Severity,
		title:       spec.Title,
		description: spec.Description,
		evidence:    evidence,
		observedAt:  time.Now().UTC(),
	}, nil
}

// WithID returns a copy of f carrying the given id.
func (f Finding) WithID(id string) Finding {
	f.id = id
	return f
}

// Superseding returns a copy of f that replaces the finding with the given id.
func (f Finding) Superseding(id string) Finding {
	f.supersedes = id
	return f
}

// Getters

func (f Finding) ID() string {
	return f.id
}

func (f Finding) CheckID() string {
	return f.checkID
}

func (f Finding) Rule() string {
	return f.rule
}

func (f Finding) Phase() int {
	return f.phase
}

func (f Finding) Connection() string {
	return f.connection
}

func (f Finding) Severity() Severity {
	return f.severity
}

func (f Finding) Title() string {
	return f.title
}

func (f Finding) Description() string {
	return f.description
}

func (f Finding) Supersedes() string {
	return f.supersedes
}

func (f Finding) ObservedAt() time.Time {
	return f.observedAt
}

// Evidence returns a copy of the finding's evidence.
func (f Finding) Evidence() []Evidence {
	out := make([]Evidence, len(f.evidence))
	copy(out, f.evidence)
	return out
}

// Record is the serializable form of a Finding.
type Record struct {
	ID          string     `json:"id" yaml:"id"`
	CheckID     string     `json:"check_id" yaml:"check_id"`
	Rule        string     `json:"rule" yaml:"rule"`
	Phase       int        `json:"phase" yaml:"phase"`
	Connection  string     `json:"connection,omitempty" yaml:"connection,omitempty"`
	Severity    Severity   `json:"severity" yaml:"severity"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Evidence    []Evidence `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Supersedes  string     `json:"supersedes,omitempty" yaml:"supersedes,omitempty"`
	Superseded  bool       `json:"superseded,omitempty" yaml:"superseded,omitempty"`
	ObservedAt  time.Time  `json:"observed_at" yaml:"observed_at"`
}

// ToRecord converts f into its serializable form.
func (f Finding) ToRecord() Record {
	return Record{
		ID:          f.id,
		CheckID:     f.checkID,
		Rule:        f.rule,
		Phase:       f.phase,
		Connection:  f.connection,
		Severity:    f.severity,
		Title:       f.title,
		Description: f.description,
		Evidence:    f.Evidence(),
		Supersedes:  f.supersedes,
		ObservedAt:  f.observedAt,
	}
}
