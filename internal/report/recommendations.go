package report

// recommendations maps a finding rule to its remediation advice. Rules
// without an entry are informational.
var recommendations = map[string]string{
	"password_grant_advertised": "Remove the password grant from the tenant's advertised grant types unless a first-party client depends on it",
	"password_grant_accepted":   "Disable the Password grant for this application; it exposes the token endpoint to credential stuffing",
	"weak_signing_algorithm":    "Sign ID tokens with RS256 or ES256 only and reject \"none\" and HS256",
	"cors_wildcard_origin":      "Replace the wildcard Allowed Origins (CORS) entry with the application's own origins",
	"cors_reflected_origin":     "Stop reflecting arbitrary origins on the token endpoint; list allowed origins explicitly",
	"authorize_open_redirect":   "Configure exact-match Allowed Callback URLs without wildcards",
	"connections_discovered":    "Disable connections the application does not need and review which connections each application may use",
	"username_enumeration":      "Return a generic error from signup so that existing accounts cannot be enumerated",
	"weak_password_policy":      "Raise the password policy to at least GOOD (8+ characters mixing lower case, upper case, digits and symbols)",
	"public_signup_enabled":     "Disable public signup on database connections unless self-registration is a product requirement",
	"cross_connection_signup":   "Disable signup on connections the application does not use, or disable those connections for the client",
	"app_open_redirect":         "Validate redirect parameters in the application against an allow list of relative paths",
	"logout_open_redirect":      "Restrict Allowed Logout URLs to the application's own origins",
}

// Recommendation returns the remediation advice for rule, or "".
func Recommendation(rule string) string {
	return recommendations[rule]
}
