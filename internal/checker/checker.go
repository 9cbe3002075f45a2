package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/probe"
	consts "github.com/khanhnv2901/idprecon/internal/shared/constants"
)

// Prober is the interface that every check sends its requests through.
type Prober interface {
	Execute(ctx context.Context, req probe.Request) probe.Result
}

// Target holds what checks need to address the tenant and the application.
type Target struct {
	BaseURL       string
	ClientID      string
	TargetAppURL  string
	AttackerHost  string
	AppConnection string
	EnumerateUser string
}

// TargetFromConfig extracts the check target from a validated config.
func TargetFromConfig(cfg scan.ScanConfig) Target {
	return Target{
		BaseURL:       cfg.BaseURL(),
		ClientID:      cfg.ClientID(),
		TargetAppURL:  cfg.TargetAppURL(),
		AttackerHost:  cfg.AttackerHost(),
		AppConnection: cfg.AppConnection(),
		EnumerateUser: cfg.EnumerateUser(),
	}
}

func (t Target) endpoint(path string) string {
	return strings.TrimRight(t.BaseURL, "/") + path
}

func (t Target) attackerURL() string {
	return "https://" + t.AttackerHost
}

// Report is what a single check hands back to the orchestrator.
type Report struct {
	Record   scan.CheckRecord
	Findings []finding.Spec
}

func newRecord(id string, phase scan.Phase, connection string) scan.CheckRecord {
	return scan.CheckRecord{
		CheckID:    id,
		Name:       CheckName(id),
		Phase:      int(phase),
		Connection: connection,
		Status:     scan.CheckPassed,
		Details:    map[string]any{},
	}
}

func failRecord(record scan.CheckRecord, res probe.Result) scan.CheckRecord {
	record.Status = scan.CheckError
	if res.Failure != nil {
		record.Reason = res.Failure.Error()
	}
	return record
}

func evidenceOf(res probe.Result, note string) finding.Evidence {
	return finding.Evidence{
		Request:  res.Request,
		Status:   res.StatusCode,
		Response: res.Excerpt(),
		Note:     note,
	}
}

// TestEmail returns a unique throwaway address for accounts the scanner
// creates, e.g. "policy_test_3f2a9c1e_no_special@test.com".
func TestEmail(prefix, label string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	local := prefix + "_" + id
	if label != "" {
		local += "_" + label
	}
	return fmt.Sprintf("%s@%s", local, consts.DefaultTestEmailHost)
}

// createdUserID extracts the _id the signup endpoint returns for a new user.
func createdUserID(body []byte) string {
	var created struct {
		ID any `json:"_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == nil {
		return ""
	}
	switch v := created.ID.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}
