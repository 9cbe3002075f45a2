package classifier

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/idprecon/internal/domain/scan"
)

func jsonResponse(status int, body string) Response {
	return Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}
}

func TestClassifyConnection(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Outcome
	}{
		{"invalid grant code", `{"error":"invalid_grant","error_description":"Wrong email or password."}`, Found},
		{"wrong email or password", `{"error":"access_denied","error_description":"Wrong email or password."}`, Found},
		{"wrong username or password", `{"error":"access_denied","error_description":"Wrong username or password"}`, Found},
		{"incorrect credentials", `{"error":"access_denied","error_description":"Incorrect credentials supplied"}`, Found},
		{"connection not found", `{"error":"invalid_request","error_description":"connection not found"}`, NotFound},
		{"named connection missing", `{"error":"invalid_request","error_description":"The connection Foo does not exist"}`, NotFound},
		{"connection disabled", `{"error":"unauthorized_client","error_description":"connection is disabled for this client"}`, NotFound},
		{"credential wins over connection text", `{"error":"invalid_grant","error_description":"connection not found or wrong email or password"}`, Found},
		{"server error", `internal error`, Unclear},
		{"empty body", ``, Unclear},
		{"unrelated json", `{"error":"too_many_attempts"}`, Unclear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(KindConnection, jsonResponse(http.StatusForbidden, tt.body)))
		})
	}
}

func TestClassifyConnectionSignup(t *testing.T) {
	assert.Equal(t, NotFound, Classify(KindConnectionSignup, jsonResponse(http.StatusNotFound, `{}`)))
	assert.Equal(t, NotFound, Classify(KindConnectionSignup, jsonResponse(http.StatusBadRequest, `{"message":"connection not found"}`)))
	assert.Equal(t, Found, Classify(KindConnectionSignup, jsonResponse(http.StatusOK, `{"_id":"abc","email":"x@test.com"}`)))
	assert.Equal(t, Found, Classify(KindConnectionSignup, jsonResponse(http.StatusBadRequest, `{"code":"user_exists","description":"The user already exists."}`)))
	assert.Equal(t, Found, Classify(KindConnectionSignup, jsonResponse(http.StatusBadRequest, `{"name":"PasswordStrengthError","message":"Password is too weak"}`)))
	assert.Equal(t, Found, Classify(KindConnectionSignup, jsonResponse(http.StatusBadRequest, `{"description":"Public signup is disabled"}`)))
	assert.Equal(t, Unclear, Classify(KindConnectionSignup, jsonResponse(http.StatusBadGateway, `bad gateway`)))
}

func TestClassifyGrantDetection(t *testing.T) {
	assert.Equal(t, GrantDisabled, Classify(KindGrantDetection, jsonResponse(http.StatusForbidden,
		`{"error":"unauthorized_client","error_description":"Grant type 'password' not allowed for the client."}`)))
	assert.Equal(t, GrantDisabled, Classify(KindGrantDetection, jsonResponse(http.StatusForbidden,
		`{"error":"invalid_request","error_description":"Grant type password is not allowed"}`)))
	assert.Equal(t, GrantEnabled, Classify(KindGrantDetection, jsonResponse(http.StatusForbidden,
		`{"error":"invalid_grant","error_description":"Wrong email or password."}`)))
	assert.Equal(t, Unclear, Classify(KindGrantDetection, Response{StatusCode: http.StatusBadGateway, Body: []byte("<html>")}))
}

func TestClassifySignup(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Outcome
	}{
		{"existing user", `{"code":"invalid_signup","description":"Invalid sign up","name":"BadRequestError","message":"The user already exists."}`, UserExists},
		{"user_exists code", `{"code":"user_exists"}`, UserExists},
		{"created", `{"_id":"5f1d","email_verified":false,"email":"a@test.com"}`, UserCreated},
		{"disabled", `{"code":"operation_not_allowed","description":"Public signup is disabled"}`, SignupDisabled},
		{"anything else", `{"code":"invalid_password","message":"Password is too weak"}`, UserNotFound},
		{"non json", `oops`, UserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(KindSignupEnumeration, jsonResponse(http.StatusBadRequest, tt.body)))
		})
	}
	assert.True(t, Classify(KindPublicSignup, jsonResponse(http.StatusOK, `{"_id":"x"}`)).CreatesResource())
}

func TestClassifyPasswordRung(t *testing.T) {
	assert.Equal(t, Accepted, Classify(KindPasswordPolicy, jsonResponse(http.StatusOK, `{"_id":"abc"}`)))
	assert.Equal(t, RejectedWeak, Classify(KindPasswordPolicy, jsonResponse(http.StatusBadRequest, `{"name":"PasswordStrengthError","message":"Password is too weak"}`)))
	assert.Equal(t, RejectedWeak, Classify(KindPasswordPolicy, jsonResponse(http.StatusBadRequest, `{"code":"invalid_password","description":{"rules":[]}}`)))
	assert.Equal(t, RejectedWeak, Classify(KindPasswordPolicy, jsonResponse(http.StatusBadRequest, `{"name":"PasswordDictionaryError","message":"Password is too common"}`)))
	assert.Equal(t, SignupDisabled, Classify(KindPasswordPolicy, jsonResponse(http.StatusForbidden, `{"description":"Public signup is disabled"}`)))
	assert.Equal(t, Unclear, Classify(KindPasswordPolicy, jsonResponse(http.StatusTooManyRequests, `{"error":"too_many_requests"}`)))
}

func results(outcomes ...Outcome) []RungResult {
	ladder := PasswordLadder()
	out := make([]RungResult, 0, len(outcomes))
	for i, o := range outcomes {
		out = append(out, RungResult{Rung: ladder[i], Outcome: o})
	}
	return out
}

func TestDeriveTier(t *testing.T) {
	ladder := PasswordLadder()
	require.Len(t, ladder, 7)

	t.Run("accept everything is LOW", func(t *testing.T) {
		tier, weakest := DeriveTier(results(Accepted, Accepted, Accepted, Accepted, Accepted, Accepted, Accepted))
		assert.Equal(t, scan.PolicyLow, tier)
		assert.Equal(t, "a", weakest)
	})

	t.Run("reject all but strongest is EXCELLENT", func(t *testing.T) {
		tier, weakest := DeriveTier(results(RejectedWeak, RejectedWeak, RejectedWeak, RejectedWeak, RejectedWeak, RejectedWeak, Accepted))
		assert.Equal(t, scan.PolicyExcellent, tier)
		assert.Equal(t, "Pass123456789!", weakest)
	})

	t.Run("reject everything is EXCELLENT", func(t *testing.T) {
		tier, weakest := DeriveTier(results(RejectedWeak, RejectedWeak, RejectedWeak, RejectedWeak, RejectedWeak, RejectedWeak, RejectedWeak))
		assert.Equal(t, scan.PolicyExcellent, tier)
		assert.Empty(t, weakest)
	})

	t.Run("fair minimum is GOOD", func(t *testing.T) {
		tier, weakest := DeriveTier(results(RejectedWeak, RejectedWeak, RejectedWeak, RejectedWeak, RejectedWeak, Accepted, Accepted))
		assert.Equal(t, scan.PolicyGood, tier)
		assert.Equal(t, "Password1!", weakest)
	})

	t.Run("non monotonic acceptance uses weakest", func(t *testing.T) {
		tier, weakest := DeriveTier(results(RejectedWeak, RejectedWeak, Accepted, RejectedWeak, Accepted, Accepted, Accepted))
		assert.Equal(t, scan.PolicyLow, tier)
		assert.Equal(t, "Pass1!", weakest)
	})

	t.Run("signup disabled is UNKNOWN", func(t *testing.T) {
		tier, _ := DeriveTier(results(SignupDisabled, SignupDisabled))
		assert.Equal(t, scan.PolicyUnknown, tier)
	})

	t.Run("nothing conclusive is UNKNOWN", func(t *testing.T) {
		tier, _ := DeriveTier(results(Unclear, Unclear, Unclear))
		assert.Equal(t, scan.PolicyUnknown, tier)
	})
}

func redirectResponse(location, injected string) Response {
	return Response{
		StatusCode:   http.StatusFound,
		Header:       http.Header{"Location": []string{location}},
		InjectedHost: injected,
	}
}

func TestClassifyRedirect(t *testing.T) {
	tests := []struct {
		name     string
		location string
		injected string
		want     Outcome
	}{
		{"exact host", "https://attacker.com/callback?code=x", "attacker.com", Vulnerable},
		{"host with port", "http://localhost:9999/cb", "localhost", Vulnerable},
		{"case and trailing dot", "https://ATTACKER.com./", "attacker.com", Vulnerable},
		{"userinfo trick", "https://app.example.com@attacker.com/", "attacker.com", Vulnerable},
		{"protocol relative", "//attacker.com/x", "attacker.com", Vulnerable},
		{"backslash", "https:\\\\attacker.com", "attacker.com", Vulnerable},
		{"substring in path", "https://app.example.com/login?next=attacker.com", "attacker.com", Safe},
		{"subdomain of app", "https://app.example.com.attacker.com/", "app.example.com.attacker.com", Vulnerable},
		{"lookalike suffix", "https://notattacker.com/", "attacker.com", Safe},
		{"relative location", "/login", "attacker.com", Safe},
		{"script uri", "JavaScript:alert(1)", "", Vulnerable},
		{"script attempt sent to error page", "https://tenant.example.com/error?error=invalid_request", "", Safe},
		{"script attempt sent to login", "/login?error=unauthorized", "", Safe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(KindOpenRedirect, redirectResponse(tt.location, tt.injected)))
		})
	}
}

func TestClassifyRedirectWithoutLocation(t *testing.T) {
	ok := jsonResponse(http.StatusOK, `{"state":"ok"}`)
	ok.InjectedHost = "attacker.com"
	assert.Equal(t, Unclear, Classify(KindOpenRedirect, ok))

	denied := jsonResponse(http.StatusBadRequest, `{"error":"invalid_request"}`)
	denied.InjectedHost = "attacker.com"
	assert.Equal(t, Safe, Classify(KindOpenRedirect, denied))
}

func TestAnalyzeCORS(t *testing.T) {
	wildcard := AnalyzeCORS(http.Header{"Access-Control-Allow-Origin": []string{"*"}}, "https://attacker.com")
	assert.True(t, wildcard.AllowsAnyOrigin)
	assert.NotEmpty(t, wildcard.Issues)

	reflected := AnalyzeCORS(http.Header{
		"Access-Control-Allow-Origin":      []string{"https://attacker.com"},
		"Access-Control-Allow-Credentials": []string{"true"},
		"Vary":                             []string{"Origin"},
	}, "https://attacker.com")
	assert.True(t, reflected.ReflectsOrigin)
	assert.True(t, reflected.AllowCredentials)

	none := AnalyzeCORS(http.Header{}, "https://attacker.com")
	assert.False(t, none.AllowsAnyOrigin)
	assert.False(t, none.ReflectsOrigin)
	assert.Empty(t, none.Issues)
}

func TestClassifyCORS(t *testing.T) {
	resp := Response{
		StatusCode:   http.StatusOK,
		Header:       http.Header{"Access-Control-Allow-Origin": []string{"https://attacker.com"}},
		InjectedHost: "attacker.com",
	}
	assert.Equal(t, Vulnerable, Classify(KindCORS, resp))

	resp.Header = http.Header{"Access-Control-Allow-Origin": []string{"https://tenant.example.com"}, "Vary": []string{"Origin"}}
	assert.Equal(t, Safe, Classify(KindCORS, resp))
}

func TestClassifyUnknownKind(t *testing.T) {
	assert.Equal(t, Unclear, Classify(Kind("nope"), Response{}))
}
