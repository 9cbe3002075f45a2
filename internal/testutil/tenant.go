// Package testutil provides a scriptable identity tenant for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode"
)

// CreatedUser is an account created through the mock signup endpoint.
type CreatedUser struct {
	ID         string
	Email      string
	Connection string
	Password   string
}

// Tenant is an httptest server that answers like an identity platform
// tenant. Behavior can be changed at any time through the With methods.
type Tenant struct {
	Server *httptest.Server

	mu              sync.Mutex
	grantTypes      []string
	signingAlgs     []string
	passwordGrant   bool
	databases       map[string]bool
	social          map[string]bool
	signupDisabled  map[string]bool
	existingUsers   map[string]bool
	accept          func(password string) bool
	corsReflect     bool
	corsWildcard    bool
	openAuthorize   func(redirectURI string) bool
	authorizeErrors bool
	openLogout      bool
	openAppParams   map[string]bool
	managementToken string
	failPaths       map[string]int
	created         []CreatedUser
	deleted         []string
	requests        map[string]int
	nextID          int
}

// NewTenant starts a tenant with one database connection
// (Username-Password-Authentication), signup enabled, a GOOD password policy
// and strict redirect validation. The server is closed when t finishes.
func NewTenant(t *testing.T) *Tenant {
	t.Helper()
	tenant := &Tenant{
		grantTypes:     []string{"authorization_code", "implicit", "refresh_token"},
		signingAlgs:    []string{"RS256"},
		passwordGrant:  true,
		databases:      map[string]bool{"Username-Password-Authentication": true},
		social:         map[string]bool{},
		signupDisabled: map[string]bool{},
		existingUsers:  map[string]bool{},
		accept:         GoodPolicy,
		openAuthorize:  func(string) bool { return false },
		openAppParams:  map[string]bool{},
		failPaths:      map[string]int{},
		requests:       map[string]int{},
	}
	tenant.Server = httptest.NewServer(http.HandlerFunc(tenant.serve))
	t.Cleanup(tenant.Server.Close)
	return tenant
}

// GoodPolicy accepts passwords of at least 8 characters mixing lower case,
// upper case, digits and special characters.
func GoodPolicy(password string) bool {
	if len(password) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	return lower && upper && digit && special
}

// AcceptAll is a policy that accepts every password.
func AcceptAll(string) bool { return true }

// URL returns the tenant base URL.
func (t *Tenant) URL() string {
	return t.Server.URL
}

// AppURL returns the URL of the mock application served by the tenant.
func (t *Tenant) AppURL() string {
	return t.Server.URL + "/app"
}

// WithGrantTypes sets grant_types_supported in the discovery document.
func (t *Tenant) WithGrantTypes(grants ...string) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grantTypes = grants
	return t
}

// WithSigningAlgorithms sets id_token_signing_alg_values_supported.
func (t *Tenant) WithSigningAlgorithms(algs ...string) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signingAlgs = algs
	return t
}

// WithPasswordGrant toggles whether the token endpoint allows the password grant.
func (t *Tenant) WithPasswordGrant(enabled bool) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.passwordGrant = enabled
	return t
}

// WithDatabaseConnections replaces the database connections.
func (t *Tenant) WithDatabaseConnections(names ...string) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.databases = map[string]bool{}
	for _, n := range names {
		t.databases[n] = true
	}
	return t
}

// WithSocialConnections adds non-database connections.
func (t *Tenant) WithSocialConnections(names ...string) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range names {
		t.social[n] = true
	}
	return t
}

// WithSignupDisabled disables public signup on the given connections.
func (t *Tenant) WithSignupDisabled(names ...string) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range names {
		t.signupDisabled[n] = true
	}
	return t
}

// WithExistingUser makes signup for email report that the user exists.
func (t *Tenant) WithExistingUser(email string) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.existingUsers[strings.ToLower(email)] = true
	return t
}

// WithPasswordPolicy sets which passwords signup accepts.
func (t *Tenant) WithPasswordPolicy(accept func(string) bool) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accept = accept
	return t
}

// WithCORS makes the token endpoint reflect the Origin (reflect) or answer
// with a wildcard.
func (t *Tenant) WithCORS(reflect, wildcard bool) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.corsReflect = reflect
	t.corsWildcard = wildcard
	return t
}

// WithOpenAuthorize makes /authorize redirect to redirect_uri whenever open
// returns true for it.
func (t *Tenant) WithOpenAuthorize(open func(redirectURI string) bool) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openAuthorize = open
	return t
}

// WithAuthorizeErrorPage sends rejected /authorize callbacks to the tenant's
// own /error page with a 302 instead of answering 400.
func (t *Tenant) WithAuthorizeErrorPage() *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.authorizeErrors = true
	return t
}

// WithOpenLogout makes /v2/logout follow any returnTo.
func (t *Tenant) WithOpenLogout() *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openLogout = true
	return t
}

// WithOpenAppParams makes the mock application redirect through params.
func (t *Tenant) WithOpenAppParams(params ...string) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range params {
		t.openAppParams[p] = true
	}
	return t
}

// WithManagementToken enables DELETE /api/v2/users/{id} for token.
func (t *Tenant) WithManagementToken(token string) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.managementToken = token
	return t
}

// WithFailures makes the next n requests to path fail by closing the
// connection without a response.
func (t *Tenant) WithFailures(path string, n int) *Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failPaths[path] = n
	return t
}

// Created returns the accounts created so far.
func (t *Tenant) Created() []CreatedUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CreatedUser, len(t.created))
	copy(out, t.created)
	return out
}

// Deleted returns the user ids deleted through the management API.
func (t *Tenant) Deleted() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.deleted))
	copy(out, t.deleted)
	return out
}

// Requests returns how many requests hit path.
func (t *Tenant) Requests(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests[path]
}

func (t *Tenant) serve(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	t.requests[r.URL.Path]++
	if n := t.failPaths[r.URL.Path]; n > 0 {
		t.failPaths[r.URL.Path] = n - 1
		t.mu.Unlock()
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	t.mu.Unlock()

	switch {
	case r.URL.Path == "/.well-known/openid-configuration":
		t.openIDConfiguration(w)
	case r.URL.Path == "/oauth/token" && r.Method == http.MethodOptions:
		t.preflight(w, r)
	case r.URL.Path == "/oauth/token" && r.Method == http.MethodPost:
		t.token(w, r)
	case r.URL.Path == "/dbconnections/signup" && r.Method == http.MethodPost:
		t.signup(w, r)
	case r.URL.Path == "/authorize":
		t.authorize(w, r)
	case r.URL.Path == "/v2/logout":
		t.logout(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v2/users/") && r.Method == http.MethodDelete:
		t.deleteUser(w, r)
	case strings.HasPrefix(r.URL.Path, "/app"):
		t.app(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found"})
	}
}

func (t *Tenant) openIDConfiguration(w http.ResponseWriter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	base := t.Server.URL
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                base + "/",
		"authorization_endpoint":                base + "/authorize",
		"token_endpoint":                        base + "/oauth/token",
		"userinfo_endpoint":                     base + "/userinfo",
		"jwks_uri":                              base + "/.well-known/jwks.json",
		"end_session_endpoint":                  base + "/oidc/logout",
		"grant_types_supported":                 t.grantTypes,
		"id_token_signing_alg_values_supported": t.signingAlgs,
	})
}

func (t *Tenant) preflight(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.corsWildcard:
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case t.corsReflect:
		w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Vary", "Origin")
	}
	w.WriteHeader(http.StatusNoContent)
}

type tokenBody struct {
	Connection string `json:"connection"`
	GrantType  string `json:"grant_type"`
}

func (t *Tenant) token(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case !t.passwordGrant:
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":             "unauthorized_client",
			"error_description": "Grant type 'password' not allowed for the client.",
		})
	case t.databases[body.Connection] || t.social[body.Connection]:
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Wrong email or password.",
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "invalid_request",
			"error_description": fmt.Sprintf("connection %s not found", body.Connection),
		})
	}
}

type signupBody struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Connection string `json:"connection"`
}

func (t *Tenant) signup(w http.ResponseWriter, r *http.Request) {
	var body signupBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case !t.databases[body.Connection]:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"name":        "BadRequestError",
			"code":        "invalid_connection",
			"description": "connection not found",
		})
	case t.signupDisabled[body.Connection]:
		writeJSON(w, http.StatusForbidden, map[string]any{
			"name":        "BadRequestError",
			"code":        "operation_not_allowed",
			"description": "Public signup is disabled",
		})
	case t.existingUsers[strings.ToLower(body.Email)]:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"name":        "BadRequestError",
			"code":        "invalid_signup",
			"description": "Invalid sign up",
			"message":     "The user already exists.",
		})
	case !t.accept(body.Password):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"name":    "PasswordStrengthError",
			"code":    "invalid_password",
			"message": "Password is too weak",
		})
	default:
		t.nextID++
		id := fmt.Sprintf("%024x", t.nextID)
		t.created = append(t.created, CreatedUser{ID: id, Email: body.Email, Connection: body.Connection, Password: body.Password})
		t.existingUsers[strings.ToLower(body.Email)] = true
		writeJSON(w, http.StatusOK, map[string]any{
			"_id":            id,
			"email":          body.Email,
			"email_verified": false,
		})
	}
}

func (t *Tenant) authorize(w http.ResponseWriter, r *http.Request) {
	redirectURI := r.URL.Query().Get("redirect_uri")
	t.mu.Lock()
	open := t.openAuthorize(redirectURI)
	errorPage := t.authorizeErrors
	t.mu.Unlock()
	if open {
		w.Header().Set("Location", redirectURI+"?code=leaked&state=test")
		w.WriteHeader(http.StatusFound)
		return
	}
	if errorPage {
		w.Header().Set("Location", t.URL()+"/error?error=invalid_request&error_description=Callback+URL+mismatch")
		w.WriteHeader(http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte("<html>Callback URL mismatch</html>"))
}

func (t *Tenant) logout(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	open := t.openLogout
	t.mu.Unlock()
	if open {
		w.Header().Set("Location", r.URL.Query().Get("returnTo"))
		w.WriteHeader(http.StatusFound)
		return
	}
	w.Header().Set("Location", "/login")
	w.WriteHeader(http.StatusFound)
}

func (t *Tenant) app(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for param := range t.openAppParams {
		if v := r.URL.Query().Get(param); v != "" {
			w.Header().Set("Location", v)
			w.WriteHeader(http.StatusFound)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte("<html>app</html>"))
}

func (t *Tenant) deleteUser(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.managementToken == "" || r.Header.Get("Authorization") != "Bearer "+t.managementToken {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v2/users/")
	t.deleted = append(t.deleted, id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
