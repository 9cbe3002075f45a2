package classifier

var userExistsPatterns = []string{
	"already exists",
	"user_exists",
	"user already registered",
}

var signupDisabledPatterns = []string{
	"signup is disabled",
	"signups are disabled",
	"public signup is disabled",
	"sign up is disabled",
	"signup_disabled",
}

func isSignupDisabled(body errorBody) bool {
	return containsAny(body.text(), signupDisabledPatterns...)
}

// classifySignup maps a /dbconnections/signup response. USER_CREATED means a
// real account now exists on the tenant.
func classifySignup(resp Response, body errorBody) Outcome {
	switch {
	case containsAny(body.text(), userExistsPatterns...):
		return UserExists
	case body.hasID:
		return UserCreated
	case isSignupDisabled(body):
		return SignupDisabled
	default:
		return UserNotFound
	}
}
