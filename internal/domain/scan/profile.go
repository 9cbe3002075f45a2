package scan

import "sort"

// PolicyTier is the coarse password-policy classification of a connection.
type PolicyTier string

const (
	PolicyLow       PolicyTier = "LOW"
	PolicyFair      PolicyTier = "FAIR"
	PolicyGood      PolicyTier = "GOOD"
	PolicyExcellent PolicyTier = "EXCELLENT"
	PolicyUnknown   PolicyTier = "UNKNOWN"
)

// Strictness orders tiers from weakest (1) to strictest (4); UNKNOWN is 0.
func (t PolicyTier) Strictness() int {
	switch t {
	case PolicyLow:
		return 1
	case PolicyFair:
		return 2
	case PolicyGood:
		return 3
	case PolicyExcellent:
		return 4
	default:
		return 0
	}
}

// IsWeak reports whether the tier lets trivially guessable passwords through.
func (t PolicyTier) IsWeak() bool {
	return t == PolicyLow || t == PolicyFair
}

// CheckStatus is the outcome of one executed (or skipped) check.
type CheckStatus string

const (
	CheckPassed       CheckStatus = "passed"
	CheckVulnerable   CheckStatus = "vulnerable"
	CheckInconclusive CheckStatus = "inconclusive"
	CheckSkipped      CheckStatus = "skipped"
	CheckError        CheckStatus = "error"
)

// CheckRecord tells a report reader that a check ran, and how it ended.
type CheckRecord struct {
	CheckID    string         `json:"check_id" yaml:"check_id"`
	Name       string         `json:"check_name" yaml:"check_name"`
	Phase      int            `json:"phase" yaml:"phase"`
	Connection string         `json:"connection,omitempty" yaml:"connection,omitempty"`
	Status     CheckStatus    `json:"status" yaml:"status"`
	Reason     string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Details    map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// Vulnerable reports whether the check produced a positive result.
func (r CheckRecord) Vulnerable() bool {
	return r.Status == CheckVulnerable
}

// ConnectionProfile is the finalized Phase 3 view of one connection.
type ConnectionProfile struct {
	Connection            string        `json:"connection" yaml:"connection"`
	ValidUsers            []string      `json:"valid_users" yaml:"valid_users"`
	PasswordPolicy        PolicyTier    `json:"password_policy" yaml:"password_policy"`
	WeakestAccepted       string        `json:"weakest_accepted_password,omitempty" yaml:"weakest_accepted_password,omitempty"`
	SignupEnabled         bool          `json:"signup_enabled" yaml:"signup_enabled"`
	CrossConnectionSignup bool          `json:"cross_connection_signup" yaml:"cross_connection_signup"`
	Checks                []CheckRecord `json:"checks" yaml:"checks"`
}

// ProfileBuilder accumulates a ConnectionProfile while its checks run.
// A builder belongs to the goroutine processing its connection.
type ProfileBuilder struct {
	connection      string
	users           map[string]struct{}
	policy          PolicyTier
	weakestAccepted string
	signupEnabled   bool
	crossSignup     bool
	checks          []CheckRecord
}

// NewProfileBuilder starts a profile for connection.
func NewProfileBuilder(connection string) *ProfileBuilder {
	return &ProfileBuilder{
		connection: connection,
		users:      make(map[string]struct{}),
		policy:     PolicyUnknown,
	}
}

func (b *ProfileBuilder) AddValidUser(user string) {
	if user != "" {
		b.users[user] = struct{}{}
	}
}

func (b *ProfileBuilder) SetPasswordPolicy(tier PolicyTier, weakestAccepted string) {
	b.policy = tier
	b.weakestAccepted = weakestAccepted
}

func (b *ProfileBuilder) SetSignup(enabled, crossConnection bool) {
	b.signupEnabled = enabled
	b.crossSignup = crossConnection
}

func (b *ProfileBuilder) AddCheck(record CheckRecord) {
	record.Connection = b.connection
	b.checks = append(b.checks, record)
}

// Finalize freezes the builder into a ConnectionProfile.
func (b *ProfileBuilder) Finalize() ConnectionProfile {
	users := make([]string, 0, len(b.users))
	for u := range b.users {
		users = append(users, u)
	}
	sort.Strings(users)

	checks := make([]CheckRecord, len(b.checks))
	copy(checks, b.checks)

	return ConnectionProfile{
		Connection:            b.connection,
		ValidUsers:            users,
		PasswordPolicy:        b.policy,
		WeakestAccepted:       b.weakestAccepted,
		SignupEnabled:         b.signupEnabled,
		CrossConnectionSignup: b.crossSignup,
		Checks:                checks,
	}
}
