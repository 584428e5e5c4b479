package scoring

import (
	"math"
)

// Verdict is the qualitative label attached to a score
type Verdict string

const (
	VerdictIncomplete  Verdict = "INCOMPLETE"
	VerdictSpeculative Verdict = "SPECULATIVE"
	VerdictOpportunity Verdict = "OPPORTUNITY"
	VerdictStrong      Verdict = "STRONG"
	VerdictElite       Verdict = "ELITE"

	VerdictHomerun Verdict = "HOMERUN (SOLD)"
	VerdictGreat   Verdict = "GREAT (SOLD)"
	VerdictGood    Verdict = "GOOD (SOLD)"
	VerdictOK      Verdict = "OK (SOLD)"
	VerdictLoss    Verdict = "LOSS (SOLD)"
)

// IsRealized reports whether the verdict comes from the realized-sale branch
func (v Verdict) IsRealized() bool {
	switch v {
	case VerdictHomerun, VerdictGreat, VerdictGood, VerdictOK, VerdictLoss:
		return true
	}
	return false
}

// Tier is a presentation hint derived from the verdict
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
	TierUnknown   Tier = "unknown"
)

// TierFor maps a verdict onto its presentation tier
func TierFor(v Verdict) Tier {
	switch v {
	case VerdictElite, VerdictHomerun:
		return TierExcellent
	case VerdictStrong, VerdictGreat, VerdictGood:
		return TierGood
	case VerdictOpportunity, VerdictOK:
		return TierFair
	case VerdictSpeculative, VerdictLoss:
		return TierPoor
	default:
		return TierUnknown
	}
}

// DealFinancials is the engine input. A SoldPrice above zero marks a closed deal.
type DealFinancials struct {
	PurchasePrice    float64 `json:"purchase_price"`
	AfterRepairValue float64 `json:"after_repair_value"`
	RehabCost        float64 `json:"rehab_cost"`
	MonthlyRent      float64 `json:"monthly_rent"`
	HasPool          bool    `json:"has_pool"`
	SoldPrice        float64 `json:"sold_price,omitempty"`
}

// Metrics holds the derived financial figures
type Metrics struct {
	MaximumAllowableOffer float64  `json:"maximum_allowable_offer"`
	CapRatePercent        float64  `json:"cap_rate_percent"`
	EquityOrProfit        float64  `json:"equity_or_profit"`
	ROIPercent            float64  `json:"roi_percent"`
	TotalInvestment       float64  `json:"total_investment"`
	Profit                *float64 `json:"profit,omitempty"`
}

// ScoreResult is the outcome of scoring a deal. Metrics is nil for INCOMPLETE deals.
type ScoreResult struct {
	Score         int      `json:"score"`
	Verdict       Verdict  `json:"verdict"`
	Tier          Tier     `json:"tier"`
	Metrics       *Metrics `json:"metrics,omitempty"`
	PolicyVersion string   `json:"policy_version"`
}

// IsIncomplete reports whether the deal lacked a price or ARV
func (r ScoreResult) IsIncomplete() bool {
	return r.Verdict == VerdictIncomplete
}

// ScoringEngine scores deal financials against a policy. It holds no mutable
// state and is safe for concurrent use.
type ScoringEngine struct {
	policy Policy
}

// NewScoringEngine creates a new scoring engine with the default policy
func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{policy: DefaultPolicy()}
}

// NewScoringEngineWithPolicy creates a scoring engine with a validated custom policy
func NewScoringEngineWithPolicy(policy Policy) (*ScoringEngine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &ScoringEngine{policy: policy.clone()}, nil
}

// Policy returns the policy the engine scores with
func (e *ScoringEngine) Policy() Policy {
	return e.policy.clone()
}

// PolicyVersion returns the version stamped on every result
func (e *ScoringEngine) PolicyVersion() string {
	return e.policy.Version
}

var defaultEngine = NewScoringEngine()

// Score scores the financials with the default policy
func Score(in DealFinancials) ScoreResult {
	return defaultEngine.Score(in)
}

// Score converts deal financials into a score, verdict and metrics
func (e *ScoringEngine) Score(in DealFinancials) ScoreResult {
	in = sanitize(in)
	if in.SoldPrice > 0 {
		return e.scoreRealized(in)
	}
	return e.scoreProspective(in)
}

func (e *ScoringEngine) scoreRealized(in DealFinancials) ScoreResult {
	p := e.policy
	totalInvestment := in.PurchasePrice + in.RehabCost
	profit := in.SoldPrice - totalInvestment

	roi := 0.0
	if totalInvestment > 0 {
		roi = profit / totalInvestment * 100
	}

	band := p.RealizedLoss
	matched := false
	for _, b := range p.RealizedBands {
		if roi >= b.MinROIPercent {
			band = b
			matched = true
			break
		}
	}
	if !matched && roi > 0 {
		band = p.RealizedProfitable
	}

	return ScoreResult{
		Score:   band.Score,
		Verdict: band.Verdict,
		Tier:    TierFor(band.Verdict),
		Metrics: &Metrics{
			ROIPercent:      roundTenth(roi),
			TotalInvestment: totalInvestment,
			Profit:          &profit,
		},
		PolicyVersion: p.Version,
	}
}

func (e *ScoringEngine) scoreProspective(in DealFinancials) ScoreResult {
	p := e.policy
	if in.PurchasePrice == 0 || in.AfterRepairValue == 0 {
		return ScoreResult{
			Score:         0,
			Verdict:       VerdictIncomplete,
			Tier:          TierUnknown,
			PolicyVersion: p.Version,
		}
	}

	totalInvestment := in.PurchasePrice + in.RehabCost

	mao := e.MaximumAllowableOffer(in.AfterRepairValue, in.RehabCost)
	flipScore := e.flipScore(in.PurchasePrice, mao)

	finalScore := flipScore
	capRate := 0.0
	if in.MonthlyRent > 0 {
		capRate = e.CapRatePercent(in.MonthlyRent, totalInvestment)
		finalScore = flipScore*p.FlipWeight + e.rentalScore(capRate)*p.RentalWeight
	}

	if in.HasPool {
		finalScore += p.PoolBonus
	}

	score := int(math.Round(clamp(finalScore, 0, 100)))
	verdict := e.verdictFor(score)

	equity := in.AfterRepairValue - totalInvestment
	roi := 0.0
	if totalInvestment > 0 {
		roi = equity / totalInvestment * 100
	}

	return ScoreResult{
		Score:   score,
		Verdict: verdict,
		Tier:    TierFor(verdict),
		Metrics: &Metrics{
			MaximumAllowableOffer: mao,
			CapRatePercent:        roundTenth(capRate),
			EquityOrProfit:        equity,
			ROIPercent:            roundTenth(roi),
			TotalInvestment:       totalInvestment,
		},
		PolicyVersion: p.Version,
	}
}

// MaximumAllowableOffer applies the flip rule: ARV * ratio - rehab
func (e *ScoringEngine) MaximumAllowableOffer(arv, rehab float64) float64 {
	return arv*e.policy.FlipARVRatio - rehab
}

// CapRatePercent estimates the cap rate from gross monthly rent and total cash invested
func (e *ScoringEngine) CapRatePercent(monthlyRent, totalInvestment float64) float64 {
	if totalInvestment <= 0 {
		return 0
	}
	noi := monthlyRent * 12 * e.policy.NOIRatio
	return noi / totalInvestment * 100
}

func (e *ScoringEngine) flipScore(price, mao float64) float64 {
	for _, b := range e.policy.FlipBands {
		if price <= mao*b.MaxMultiple {
			return b.Score
		}
	}
	return e.policy.FlipFloorScore
}

func (e *ScoringEngine) rentalScore(capRate float64) float64 {
	for _, b := range e.policy.CapRateBands {
		if capRate >= b.MinPercent {
			return b.Score
		}
	}
	return e.policy.CapRateFloorScore
}

func (e *ScoringEngine) verdictFor(score int) Verdict {
	v := e.policy.Verdicts
	switch {
	case score >= v.Elite:
		return VerdictElite
	case score >= v.Strong:
		return VerdictStrong
	case score >= v.Opportunity:
		return VerdictOpportunity
	default:
		return VerdictSpeculative
	}
}

// sanitize coerces NaN, infinite and negative amounts to zero
func sanitize(in DealFinancials) DealFinancials {
	in.PurchasePrice = amount(in.PurchasePrice)
	in.AfterRepairValue = amount(in.AfterRepairValue)
	in.RehabCost = amount(in.RehabCost)
	in.MonthlyRent = amount(in.MonthlyRent)
	in.SoldPrice = amount(in.SoldPrice)
	return in
}

func amount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
