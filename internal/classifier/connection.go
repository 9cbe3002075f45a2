package classifier

import "net/http"

// Credential-failure patterns returned by the token endpoint when the
// connection exists but the dummy credentials are wrong.
var wrongCredentialPatterns = []string{
	"invalid_grant",
	"wrong email or password",
	"wrong username or password",
	"wrong phone number or verification code",
	"wrong email or verification code",
	"incorrect",
}

// Patterns signalling that the connection name itself is not recognized.
var unknownConnectionPatterns = []string{
	"connection not found",
	"connection does not exist",
	"connection is not enabled",
	"connection is disabled",
	"unknown connection",
	"invalid connection",
	"no connection",
}

func isWrongCredentials(body errorBody) bool {
	if body.errorCode == "invalid_grant" {
		return true
	}
	return containsAny(body.text(), wrongCredentialPatterns...)
}

func isUnknownConnection(body errorBody) bool {
	text := body.text()
	if containsAny(text, unknownConnectionPatterns...) {
		return true
	}
	// "the connection X was not found" / "connection X does not exist"
	return containsAny(text, "connection") && containsAny(text, "not found", "does not exist", "not enabled", "unknown")
}

// classifyConnection handles password-grant probes at the token endpoint.
// Credential failure wins over every other signal; ambiguous responses stay
// UNCLEAR.
func classifyConnection(resp Response, body errorBody) Outcome {
	if isWrongCredentials(body) {
		return Found
	}
	if isUnknownConnection(body) {
		return NotFound
	}
	return Unclear
}

// classifyConnectionSignup handles the signup fallback used when the tenant
// refuses the password grant.
func classifyConnectionSignup(resp Response, body errorBody) Outcome {
	if isUnknownConnection(body) {
		return NotFound
	}
	if resp.StatusCode == http.StatusNotFound {
		return NotFound
	}
	switch classifySignup(resp, body) {
	case UserCreated, UserExists, SignupDisabled:
		return Found
	}
	if isPasswordRejection(body) {
		return Found
	}
	return Unclear
}

// classifyGrantDetection tells whether the tenant accepts the password grant
// for this client at all.
func classifyGrantDetection(body errorBody) Outcome {
	text := body.text()
	if body.errorCode == "unauthorized_client" {
		return GrantDisabled
	}
	if containsAny(text, "grant type") && containsAny(text, "not allowed", "not authorized", "unauthorized", "not enabled") {
		return GrantDisabled
	}
	if body.isJSON && body.hasError() {
		return GrantEnabled
	}
	return Unclear
}
