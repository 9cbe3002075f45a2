package classifier

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Kind selects which rule set Classify applies.
type Kind string

const (
	KindConnection        Kind = "connection_enumeration"
	KindConnectionSignup  Kind = "connection_enumeration_signup"
	KindGrantDetection    Kind = "password_grant_detection"
	KindSignupEnumeration Kind = "signup_enumeration"
	KindPasswordPolicy    Kind = "password_policy"
	KindPublicSignup      Kind = "public_signup"
	KindOpenRedirect      Kind = "open_redirect"
	KindCORS              Kind = "cors"
)

// Outcome is the semantic result of classifying one response.
type Outcome string

const (
	Found          Outcome = "FOUND"
	NotFound       Outcome = "NOT_FOUND"
	Unclear        Outcome = "UNCLEAR"
	GrantEnabled   Outcome = "GRANT_ENABLED"
	GrantDisabled  Outcome = "GRANT_DISABLED"
	UserExists     Outcome = "USER_EXISTS"
	UserCreated    Outcome = "USER_CREATED"
	SignupDisabled Outcome = "SIGNUP_DISABLED"
	UserNotFound   Outcome = "USER_NOT_FOUND"
	Accepted       Outcome = "ACCEPTED"
	RejectedWeak   Outcome = "REJECTED_WEAK"
	Vulnerable     Outcome = "VULNERABLE"
	Safe           Outcome = "SAFE"
)

// CreatesResource reports whether the outcome means the platform created an
// account that the caller must register for cleanup.
func (o Outcome) CreatesResource() bool {
	return o == UserCreated || o == Accepted
}

// Response is the observed side of one probe.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// InjectedHost is the attacker-controlled host the probe planted, used by
	// redirect and CORS rules.
	InjectedHost string
}

// Classify applies the rule set of kind to resp. It is total: every input
// yields an outcome.
func Classify(kind Kind, resp Response) Outcome {
	body := parseBody(resp.Body)
	switch kind {
	case KindConnection:
		return classifyConnection(resp, body)
	case KindConnectionSignup:
		return classifyConnectionSignup(resp, body)
	case KindGrantDetection:
		return classifyGrantDetection(body)
	case KindSignupEnumeration, KindPublicSignup:
		return classifySignup(resp, body)
	case KindPasswordPolicy:
		return classifyPasswordRung(resp, body)
	case KindOpenRedirect:
		return classifyRedirect(resp, body)
	case KindCORS:
		return classifyCORS(resp)
	default:
		return Unclear
	}
}

// errorBody holds the fields the platform uses to describe errors. The
// token endpoint uses error/error_description, the signup endpoint uses
// name/code/message/description.
type errorBody struct {
	isJSON      bool
	errorCode   string
	description string
	message     string
	name        string
	code        string
	hasID       bool
	raw         string
}

// text returns every descriptive field lower-cased and joined, for pattern matching.
func (b errorBody) text() string {
	parts := []string{b.errorCode, b.description, b.message, b.name, b.code}
	joined := strings.ToLower(strings.Join(parts, " "))
	if strings.TrimSpace(joined) == "" {
		return strings.ToLower(b.raw)
	}
	return joined
}

func (b errorBody) hasError() bool {
	return b.errorCode != "" || b.code != "" || b.name != "" || b.message != "" || b.description != ""
}

func parseBody(raw []byte) errorBody {
	body := errorBody{raw: string(raw)}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return body
	}
	body.isJSON = true
	body.errorCode = stringField(fields, "error")
	body.description = stringField(fields, "error_description")
	body.message = stringField(fields, "message")
	if body.description == "" {
		body.description = stringField(fields, "description")
	}
	body.name = stringField(fields, "name")
	body.code = stringField(fields, "code")
	body.hasID = hasValue(fields, "_id")
	return body
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func hasValue(fields map[string]any, key string) bool {
	v, ok := fields[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
