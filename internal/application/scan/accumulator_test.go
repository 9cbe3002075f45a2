package scan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/idprecon/internal/checker"
	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
)

func spec(rule string, sev finding.Severity) finding.Spec {
	return finding.Spec{CheckID: "x", Rule: rule, Severity: sev}
}

func TestAccumulatorAssignsSequentialIDs(t *testing.T) {
	acc := NewAccumulator()
	id1, err := acc.Add(spec("a", finding.SeverityLow))
	require.NoError(t, err)
	id2, err := acc.Add(spec("b", finding.SeverityHigh))
	require.NoError(t, err)

	assert.Equal(t, "F-001", id1)
	assert.Equal(t, "F-002", id2)

	_, err = acc.Add(finding.Spec{CheckID: "x", Severity: "BOGUS"})
	assert.Error(t, err)
	assert.Len(t, acc.Findings(), 2)
}

func TestAccumulatorSupersede(t *testing.T) {
	acc := NewAccumulator()
	oldID, _ := acc.Add(spec(checker.RulePasswordGrantNotAdvertised, finding.SeverityInfo))
	_, _ = acc.Add(spec("unrelated", finding.SeverityLow))

	newID, err := acc.Supersede(spec(checker.RulePasswordGrantAccepted, finding.SeverityMedium),
		checker.RulePasswordGrantAdvertised, checker.RulePasswordGrantNotAdvertised)
	require.NoError(t, err)

	assert.True(t, acc.IsSuperseded(oldID))
	findings := acc.Findings()
	require.Len(t, findings, 3)
	assert.Equal(t, oldID, findings[2].Supersedes())
	assert.Equal(t, newID, findings[2].ID())

	snap := acc.Snapshot(scan.Metadata{})
	assert.True(t, snap.Findings[0].Superseded)
	assert.False(t, snap.Findings[1].Superseded)
	assert.False(t, snap.Findings[2].Superseded)
}

func TestAccumulatorSupersedeWithoutPredecessor(t *testing.T) {
	acc := NewAccumulator()
	id, err := acc.Supersede(spec(checker.RulePasswordGrantAccepted, finding.SeverityMedium), checker.RulePasswordGrantAdvertised)
	require.NoError(t, err)

	findings := acc.Findings()
	require.Len(t, findings, 1)
	assert.Equal(t, id, findings[0].ID())
	assert.Empty(t, findings[0].Supersedes())
}

func TestAccumulatorConcurrentAdds(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = acc.Add(spec("r", finding.SeverityInfo))
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, f := range acc.Findings() {
		assert.False(t, seen[f.ID()], "duplicate id %s", f.ID())
		seen[f.ID()] = true
	}
	assert.Len(t, seen, 50)
}
