package checker

import "github.com/khanhnv2901/idprecon/internal/domain/scan"

// Check identifiers as they appear in reports.
const (
	CheckOpenID            = "1.1"
	CheckCORS              = "1.2"
	CheckAuthorizeRedirect = "1.3"
	CheckConnectionEnum    = "2.1"
	CheckPasswordGrant     = "2.2"
	CheckUsernameEnum      = "3.1"
	CheckPasswordPolicy    = "3.2"
	CheckPublicSignup      = "3.3"
	CheckCrossConnection   = "3.4"
	CheckAppRedirect       = "4.1"
	CheckLogoutRedirect    = "4.2"
	CheckCleanup           = "cleanup"
)

// Finding rules. A rule names the kind of observation independent of the
// check that produced it; recommendations are keyed by rule.
const (
	RulePasswordGrantAdvertised    = "password_grant_advertised"
	RulePasswordGrantNotAdvertised = "password_grant_not_advertised"
	RulePasswordGrantAccepted      = "password_grant_accepted"
	RulePasswordGrantRejected      = "password_grant_rejected"
	RuleWeakSigningAlgorithm       = "weak_signing_algorithm"
	RuleCORSWildcard               = "cors_wildcard_origin"
	RuleCORSReflected              = "cors_reflected_origin"
	RuleAuthorizeOpenRedirect      = "authorize_open_redirect"
	RuleConnectionsDiscovered      = "connections_discovered"
	RuleUsernameEnumeration        = "username_enumeration"
	RuleWeakPasswordPolicy         = "weak_password_policy"
	RulePublicSignup               = "public_signup_enabled"
	RuleCrossConnectionSignup      = "cross_connection_signup"
	RuleAppOpenRedirect            = "app_open_redirect"
	RuleLogoutOpenRedirect         = "logout_open_redirect"
)

// CheckInfo describes one check for listings and reports.
type CheckInfo struct {
	ID          string
	Name        string
	Phase       scan.Phase
	Description string
	// SideEffects is true when the check can create accounts on the tenant.
	SideEffects bool
}

var catalog = []CheckInfo{
	{ID: CheckOpenID, Name: "OpenID Configuration", Phase: scan.PhaseRecon,
		Description: "Reads the discovery document for advertised grant types and signing algorithms"},
	{ID: CheckCORS, Name: "CORS Misconfiguration", Phase: scan.PhaseRecon,
		Description: "Sends a preflight to the token endpoint from an attacker origin"},
	{ID: CheckAuthorizeRedirect, Name: "Open Redirect", Phase: scan.PhaseRecon,
		Description: "Submits bypass redirect_uri values to /authorize"},
	{ID: CheckConnectionEnum, Name: "Connection Enumeration", Phase: scan.PhaseDiscovery,
		Description: "Probes candidate connection names via the token or signup endpoint", SideEffects: true},
	{ID: CheckPasswordGrant, Name: "Password Grant Detection", Phase: scan.PhaseDiscovery,
		Description: "Tells whether the client may use the resource owner password grant"},
	{ID: CheckUsernameEnum, Name: "Username Enumeration", Phase: scan.PhaseConnections,
		Description: "Signs up the configured email to see whether it already exists", SideEffects: true},
	{ID: CheckPasswordPolicy, Name: "Password Policy", Phase: scan.PhaseConnections,
		Description: "Walks a ladder of weak passwords through signup", SideEffects: true},
	{ID: CheckPublicSignup, Name: "Public Signup", Phase: scan.PhaseConnections,
		Description: "Creates a throwaway account through public signup", SideEffects: true},
	{ID: CheckCrossConnection, Name: "Cross-Connection Signup", Phase: scan.PhaseConnections,
		Description: "Flags public signup on connections the application does not use"},
	{ID: CheckAppRedirect, Name: "Application Open Redirect", Phase: scan.PhaseApplication,
		Description: "Injects an attacker URL into common redirect parameters of the application"},
	{ID: CheckLogoutRedirect, Name: "Logout Redirect", Phase: scan.PhaseApplication,
		Description: "Checks returnTo validation of the tenant logout endpoint"},
}

// Catalog returns every check the scanner knows, in execution order.
func Catalog() []CheckInfo {
	out := make([]CheckInfo, len(catalog))
	copy(out, catalog)
	return out
}

// CheckName returns the display name of id, or id itself when unknown.
func CheckName(id string) string {
	for _, c := range catalog {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}
