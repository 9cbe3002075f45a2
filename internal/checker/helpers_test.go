package checker

import (
	"testing"
	"time"

	"github.com/khanhnv2901/idprecon/internal/probe"
	"github.com/khanhnv2901/idprecon/internal/testutil"
)

func newProber(t *testing.T) *probe.Executor {
	t.Helper()
	exec, err := probe.NewExecutor(probe.Options{MaxRetries: 1, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return exec
}

func targetFor(tenant *testutil.Tenant) Target {
	return Target{
		BaseURL:       tenant.URL(),
		ClientID:      "client-123",
		TargetAppURL:  tenant.AppURL(),
		AttackerHost:  "attacker.com",
		AppConnection: "Username-Password-Authentication",
	}
}

func findingRules(r Report) []string {
	rules := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		rules = append(rules, f.Rule)
	}
	return rules
}
