package discovery

import (
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	consts "github.com/khanhnv2901/idprecon/internal/shared/constants"
)

var variationSuffixes = []string{
	// auth methods
	"oauth2", "oauth", "oidc", "saml", "saml2", "SSO", "SAML", "Auth", "Authentication", "Login",
	"AD", "LDAP", "ActiveDirectory", "ADFS", "Okta", "Azure", "AzureAD", "Google", "Facebook",
	"GitHub", "Microsoft",
	// connection types
	"Database", "DB", "Connection", "Users", "Accounts", "Members", "Customers", "Employees",
	"Staff", "Admin", "Admins",
	// environments
	"production", "prod", "prd", "live", "development", "dev", "develop", "staging", "stage",
	"stg", "test", "testing", "qa", "uat", "demo", "sandbox", "sbx", "local", "localhost",
	// descriptors
	"internal", "external", "public", "private", "corporate", "enterprise", "business",
	"partner", "vendor", "client", "legacy", "old", "new", "v1", "v2", "v3", "api", "app",
	"web", "mobile",
	// regions
	"us", "eu", "uk", "apac", "global", "america", "europe", "asia",
	"Username-Password-Authentication", "email", "sms", "passwordless",
}

var variationPrefixes = []string{
	"production", "prod", "prd", "live", "development", "dev", "develop", "staging", "stage",
	"stg", "test", "testing", "qa", "uat", "demo", "sandbox", "sbx", "local",
	"internal", "external", "public", "private", "corporate", "enterprise", "business",
	"partner", "vendor", "client", "legacy", "old", "new",
	"us", "eu", "uk", "apac", "global", "america", "europe", "asia",
	"company", "corp", "org", "team",
}

// Variations derives connection names from keyword: the keyword in three
// cases, then every suffix and prefix joined with and without a dash in
// mixed capitalisation. Names longer than the platform limit are dropped.
// The output is deterministic and free of duplicates.
func Variations(keyword string) []string {
	if keyword == "" {
		return nil
	}
	upper := cases.Upper(language.Und)
	capital := capitalize

	var names []string
	add := func(name string) {
		if len(name) <= consts.MaxConnectionNameLength {
			names = append(names, name)
		}
	}

	add(keyword)
	add(capital(keyword))
	add(upper.String(keyword))

	for _, s := range variationSuffixes {
		add(keyword + "-" + s)
		add(capital(keyword) + "-" + s)
		add(keyword + "-" + capital(s))
		add(capital(keyword) + "-" + capital(s))
		add(keyword + s)
		add(capital(keyword) + capital(s))
	}
	for _, p := range variationPrefixes {
		add(p + "-" + keyword)
		add(capital(p) + "-" + keyword)
		add(p + "-" + capital(keyword))
		add(capital(p) + "-" + capital(keyword))
		add(p + keyword)
		add(capital(p) + capital(keyword))
	}

	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// capitalize upper-cases the first rune of s and lower-cases the rest, so
// "my-app" becomes "My-app" and "SSO" becomes "Sso".
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return cases.Upper(language.Und).String(string(r)) + cases.Lower(language.Und).String(s[size:])
}
