package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tridcheck/internal/compliance/models"
	id "tridcheck/pkg/domain"
)

// =============================================================================
// APR Drift
// =============================================================================
// Justification for unit tests: the eighth and quarter point thresholds are
// exact legal boundaries, and drift is direction agnostic. Landing exactly on
// the threshold must pass; one thousandth over must fail.

func TestAPRThreshold(t *testing.T) {
	assert.Equal(t, "0.125", APRThreshold(false).String())
	assert.Equal(t, "0.250", APRThreshold(true).String())
}

func TestCheckAPRDrift(t *testing.T) {
	tests := []struct {
		name       string
		leAPR      string
		cdAPR      string
		isVariable bool
		wantOver   string // empty means compliant
	}{
		{name: "no drift", leAPR: "6.500", cdAPR: "6.500", wantOver: ""},
		{name: "fixed rate drift exactly at an eighth", leAPR: "6.500", cdAPR: "6.625", wantOver: ""},
		{name: "fixed rate drift one thousandth over", leAPR: "6.500", cdAPR: "6.626", wantOver: "0.001"},
		{name: "downward drift counts the same", leAPR: "6.626", cdAPR: "6.500", wantOver: "0.001"},
		{name: "variable rate gets a quarter point", leAPR: "6.500", cdAPR: "6.750", isVariable: true, wantOver: ""},
		{name: "variable rate over a quarter point", leAPR: "6.500", cdAPR: "6.751", isVariable: true, wantOver: "0.001"},
		{name: "fixed rate large drift", leAPR: "6.000", cdAPR: "6.500", wantOver: "0.375"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violation, err := CheckAPRDrift(id.MustPercent(tt.leAPR), id.MustPercent(tt.cdAPR), tt.isVariable)
			require.NoError(t, err)

			if tt.wantOver == "" {
				assert.Nil(t, violation)
				return
			}
			require.NotNil(t, violation)
			assert.Equal(t, models.ViolationAPRDrift, violation.Type)
			assert.Nil(t, violation.Fee)
			assert.Nil(t, violation.LEAmount)
			assert.Nil(t, violation.CDAmount)
			assert.Equal(t, tt.wantOver, violation.AmountOver.String())
		})
	}
}
