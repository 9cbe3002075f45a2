package classifier

import "github.com/khanhnv2901/idprecon/internal/domain/scan"

// Rung is one synthetic password in the weakness ladder.
type Rung struct {
	Password string
	Label    string
	// Tier is the strictest policy that could still accept this password.
	Tier scan.PolicyTier
}

var ladder = []Rung{
	{Password: "a", Label: "too_short", Tier: scan.PolicyLow},
	{Password: "password", Label: "no_numbers", Tier: scan.PolicyLow},
	{Password: "Pass1!", Label: "short_all", Tier: scan.PolicyLow},
	{Password: "password1", Label: "no_uppercase", Tier: scan.PolicyFair},
	{Password: "Password1", Label: "no_special", Tier: scan.PolicyFair},
	{Password: "Password1!", Label: "fair_minimum", Tier: scan.PolicyGood},
	{Password: "Pass123456789!", Label: "excellent_minimum", Tier: scan.PolicyExcellent},
}

// PasswordLadder returns the ordered ladder, weakest first.
func PasswordLadder() []Rung {
	out := make([]Rung, len(ladder))
	copy(out, ladder)
	return out
}

var passwordRejectionPatterns = []string{
	"passwordstrengtherror",
	"passworddictionaryerror",
	"passwordnouserinfoerror",
	"invalid_password",
	"password is too weak",
	"too weak",
	"password strength",
	"password is too common",
}

func isPasswordRejection(body errorBody) bool {
	return containsAny(body.text(), passwordRejectionPatterns...)
}

// classifyPasswordRung maps the signup response for one ladder rung.
func classifyPasswordRung(resp Response, body errorBody) Outcome {
	switch {
	case body.hasID:
		return Accepted
	case isPasswordRejection(body):
		return RejectedWeak
	case isSignupDisabled(body):
		return SignupDisabled
	default:
		return Unclear
	}
}

// RungResult pairs a rung with the outcome it produced.
type RungResult struct {
	Rung    Rung
	Outcome Outcome
}

// DeriveTier computes the policy tier from a fully tested ladder. The tier
// is that of the weakest accepted rung: acceptance is not monotonic across
// policy configurations, so the first acceptance alone proves nothing.
//
//   - signup disabled on any rung: UNKNOWN
//   - nothing conclusive: UNKNOWN
//   - nothing rejected: LOW
//   - everything conclusive rejected: EXCELLENT
//
// The second return value is the weakest accepted password, if any.
func DeriveTier(results []RungResult) (scan.PolicyTier, string) {
	var accepted, rejected int
	weakest := scan.PolicyUnknown
	weakestPassword := ""

	for _, r := range results {
		switch r.Outcome {
		case SignupDisabled:
			return scan.PolicyUnknown, ""
		case RejectedWeak:
			rejected++
		case Accepted:
			accepted++
			if weakest == scan.PolicyUnknown || r.Rung.Tier.Strictness() < weakest.Strictness() {
				weakest = r.Rung.Tier
				weakestPassword = r.Rung.Password
			}
		}
	}

	switch {
	case accepted == 0 && rejected == 0:
		return scan.PolicyUnknown, ""
	case rejected == 0:
		return scan.PolicyLow, weakestPassword
	case accepted == 0:
		return scan.PolicyExcellent, ""
	default:
		return weakest, weakestPassword
	}
}
