package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy_Valid(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
}

func TestPolicy_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(p *Policy)
	}{
		{"missing version", func(p *Policy) { p.Version = "" }},
		{"flip ratio above one", func(p *Policy) { p.FlipARVRatio = 1.2 }},
		{"zero noi ratio", func(p *Policy) { p.NOIRatio = 0 }},
		{"no flip bands", func(p *Policy) { p.FlipBands = nil }},
		{"unordered flip bands", func(p *Policy) { p.FlipBands[1].MaxMultiple = 0.9 }},
		{"flip floor above last band", func(p *Policy) { p.FlipFloorScore = 60 }},
		{"unordered cap rate bands", func(p *Policy) { p.CapRateBands[2].MinPercent = 9 }},
		{"weights not summing to one", func(p *Policy) { p.RentalWeight = 0.5 }},
		{"negative pool bonus", func(p *Policy) { p.PoolBonus = -1 }},
		{"verdict cutoffs out of order", func(p *Policy) { p.Verdicts.Strong = 90 }},
		{"unordered realized bands", func(p *Policy) { p.RealizedBands[1].MinROIPercent = 25 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultPolicy()
			tc.mutate(&p)
			assert.Error(t, p.Validate())

			_, err := NewScoringEngineWithPolicy(p)
			assert.Error(t, err)
		})
	}
}

func TestDefaultPolicy_IndependentCopies(t *testing.T) {
	p := DefaultPolicy()
	p.FlipBands[0].Score = 1

	assert.Equal(t, 100.0, DefaultPolicy().FlipBands[0].Score)
	assert.Equal(t, 100, Score(DealFinancials{PurchasePrice: 150000, AfterRepairValue: 250000, RehabCost: 25000}).Score)
}
