package finding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidSpecs(t *testing.T) {
	_, err := New(Spec{Severity: SeverityHigh})
	require.Error(t, err)

	_, err = New(Spec{CheckID: "1.1", Severity: "SEVERE"})
	require.Error(t, err)
}

func TestNewCopiesEvidence(t *testing.T) {
	evidence := []Evidence{{Request: "GET /", Status: 200}}
	f, err := New(Spec{CheckID: "1.1", Severity: SeverityLow, Evidence: evidence})
	require.NoError(t, err)

	evidence[0].Request = "mutated"
	assert.Equal(t, "GET /", f.Evidence()[0].Request)
	assert.Equal(t, "1.1", f.Title())
}

func TestSupersedingKeepsOriginalUntouched(t *testing.T) {
	f, err := New(Spec{CheckID: "2.0", Severity: SeverityMedium})
	require.NoError(t, err)

	f = f.WithID("F-002")
	replacement := f.Superseding("F-001")

	assert.Empty(t, f.Supersedes())
	assert.Equal(t, "F-001", replacement.Supersedes())
	assert.Equal(t, "F-002", replacement.ToRecord().ID)
}

func TestSeverityRankAndParse(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityLow.Rank(), SeverityInfo.Rank())
	assert.Equal(t, 0, Severity("bogus").Rank())
	assert.Equal(t, SeverityHigh, ParseSeverity(" high "))
	assert.Equal(t, SeverityInfo, ParseSeverity("nope"))
}
