package scoring

import (
	"fmt"
	"math"
)

// DefaultPolicyVersion identifies the built-in scoring constants
const DefaultPolicyVersion = "2024.1"

// FlipBand grants Score when the purchase price is at or below MAO * MaxMultiple
type FlipBand struct {
	MaxMultiple float64 `json:"max_multiple" yaml:"max_multiple"`
	Score       float64 `json:"score" yaml:"score"`
}

// CapRateBand grants Score when the cap rate is at or above MinPercent
type CapRateBand struct {
	MinPercent float64 `json:"min_percent" yaml:"min_percent"`
	Score      float64 `json:"score" yaml:"score"`
}

// RealizedBand grants Score and Verdict when the realized ROI is at or above MinROIPercent
type RealizedBand struct {
	MinROIPercent float64 `json:"min_roi_percent" yaml:"min_roi_percent"`
	Score         int     `json:"score" yaml:"score"`
	Verdict       Verdict `json:"verdict" yaml:"verdict"`
}

// VerdictCutoffs are the minimum final scores for each prospective verdict
type VerdictCutoffs struct {
	Elite       int `json:"elite" yaml:"elite"`
	Strong      int `json:"strong" yaml:"strong"`
	Opportunity int `json:"opportunity" yaml:"opportunity"`
}

// Policy is the central table of every tunable scoring constant.
// Bands are evaluated in order and the first match wins.
type Policy struct {
	Version string `json:"version" yaml:"version"`

	// Flip (70% rule)
	FlipARVRatio   float64    `json:"flip_arv_ratio" yaml:"flip_arv_ratio"`
	FlipBands      []FlipBand `json:"flip_bands" yaml:"flip_bands"`
	FlipFloorScore float64    `json:"flip_floor_score" yaml:"flip_floor_score"`

	// Rental (cap rate)
	NOIRatio          float64       `json:"noi_ratio" yaml:"noi_ratio"`
	CapRateBands      []CapRateBand `json:"cap_rate_bands" yaml:"cap_rate_bands"`
	CapRateFloorScore float64       `json:"cap_rate_floor_score" yaml:"cap_rate_floor_score"`

	// Blend and adjustments
	FlipWeight   float64 `json:"flip_weight" yaml:"flip_weight"`
	RentalWeight float64 `json:"rental_weight" yaml:"rental_weight"`
	PoolBonus    float64 `json:"pool_bonus" yaml:"pool_bonus"`

	Verdicts VerdictCutoffs `json:"verdicts" yaml:"verdicts"`

	// Realized sale
	RealizedBands      []RealizedBand `json:"realized_bands" yaml:"realized_bands"`
	RealizedProfitable RealizedBand   `json:"realized_profitable" yaml:"realized_profitable"`
	RealizedLoss       RealizedBand   `json:"realized_loss" yaml:"realized_loss"`
}

// DefaultPolicy returns the standard investor policy
func DefaultPolicy() Policy {
	return Policy{
		Version:      DefaultPolicyVersion,
		FlipARVRatio: 0.70,
		FlipBands: []FlipBand{
			{MaxMultiple: 1.0, Score: 100},
			{MaxMultiple: 1.1, Score: 75},
			{MaxMultiple: 1.2, Score: 50},
		},
		FlipFloorScore: 20,
		NOIRatio:       0.6,
		CapRateBands: []CapRateBand{
			{MinPercent: 10, Score: 100},
			{MinPercent: 8, Score: 85},
			{MinPercent: 6, Score: 60},
			{MinPercent: 4, Score: 40},
		},
		CapRateFloorScore: 10,
		FlipWeight:        0.6,
		RentalWeight:      0.4,
		PoolBonus:         5,
		Verdicts: VerdictCutoffs{
			Elite:       85,
			Strong:      70,
			Opportunity: 50,
		},
		RealizedBands: []RealizedBand{
			{MinROIPercent: 20, Score: 100, Verdict: VerdictHomerun},
			{MinROIPercent: 15, Score: 90, Verdict: VerdictGreat},
			{MinROIPercent: 10, Score: 80, Verdict: VerdictGood},
		},
		RealizedProfitable: RealizedBand{Score: 65, Verdict: VerdictOK},
		RealizedLoss:       RealizedBand{Score: 40, Verdict: VerdictLoss},
	}
}

// Validate checks that the policy is internally consistent
func (p Policy) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("policy version is required")
	}
	if p.FlipARVRatio <= 0 || p.FlipARVRatio > 1 {
		return fmt.Errorf("flip_arv_ratio must be in (0, 1], got %v", p.FlipARVRatio)
	}
	if p.NOIRatio <= 0 || p.NOIRatio > 1 {
		return fmt.Errorf("noi_ratio must be in (0, 1], got %v", p.NOIRatio)
	}
	if len(p.FlipBands) == 0 {
		return fmt.Errorf("at least one flip band is required")
	}
	for i := 1; i < len(p.FlipBands); i++ {
		if p.FlipBands[i].MaxMultiple <= p.FlipBands[i-1].MaxMultiple {
			return fmt.Errorf("flip bands must have increasing max_multiple (band %d)", i)
		}
		if p.FlipBands[i].Score > p.FlipBands[i-1].Score {
			return fmt.Errorf("flip bands must have non-increasing scores (band %d)", i)
		}
	}
	if p.FlipFloorScore > p.FlipBands[len(p.FlipBands)-1].Score {
		return fmt.Errorf("flip_floor_score must not exceed the last flip band score")
	}
	for i := 1; i < len(p.CapRateBands); i++ {
		if p.CapRateBands[i].MinPercent >= p.CapRateBands[i-1].MinPercent {
			return fmt.Errorf("cap rate bands must have decreasing min_percent (band %d)", i)
		}
	}
	if p.FlipWeight < 0 || p.RentalWeight < 0 || math.Abs(p.FlipWeight+p.RentalWeight-1) > 1e-9 {
		return fmt.Errorf("flip_weight and rental_weight must be non-negative and sum to 1")
	}
	if p.PoolBonus < 0 {
		return fmt.Errorf("pool_bonus must be non-negative")
	}
	v := p.Verdicts
	if !(v.Elite > v.Strong && v.Strong > v.Opportunity && v.Opportunity > 0) {
		return fmt.Errorf("verdict cutoffs must satisfy elite > strong > opportunity > 0")
	}
	for i := 1; i < len(p.RealizedBands); i++ {
		if p.RealizedBands[i].MinROIPercent >= p.RealizedBands[i-1].MinROIPercent {
			return fmt.Errorf("realized bands must have decreasing min_roi_percent (band %d)", i)
		}
	}
	if n := len(p.RealizedBands); n > 0 && p.RealizedBands[n-1].MinROIPercent <= 0 {
		return fmt.Errorf("realized bands must require a positive ROI")
	}
	return nil
}

func (p Policy) clone() Policy {
	p.FlipBands = append([]FlipBand(nil), p.FlipBands...)
	p.CapRateBands = append([]CapRateBand(nil), p.CapRateBands...)
	p.RealizedBands = append([]RealizedBand(nil), p.RealizedBands...)
	return p
}
