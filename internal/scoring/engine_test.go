package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var amountGrid = []float64{0, 1, 5000, 25000, 99999.99, 150000, 175000, 250000, 1e6}

func TestScoringEngine_FlipAtMAO(t *testing.T) {
	result := Score(DealFinancials{
		PurchasePrice:    150000,
		AfterRepairValue: 250000,
		RehabCost:        25000,
	})

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, VerdictElite, result.Verdict)
	assert.Equal(t, TierExcellent, result.Tier)
	require.NotNil(t, result.Metrics)
	assert.InDelta(t, 150000, result.Metrics.MaximumAllowableOffer, 1e-6)
	assert.Equal(t, 0.0, result.Metrics.CapRatePercent)
	assert.Equal(t, 175000.0, result.Metrics.TotalInvestment)
	assert.Equal(t, 75000.0, result.Metrics.EquityOrProfit)
	assert.Equal(t, 42.9, result.Metrics.ROIPercent)
	assert.Nil(t, result.Metrics.Profit)
	assert.Equal(t, DefaultPolicyVersion, result.PolicyVersion)
}

func TestScoringEngine_BlendedFlipAndRental(t *testing.T) {
	result := Score(DealFinancials{
		PurchasePrice:    150000,
		AfterRepairValue: 250000,
		RehabCost:        25000,
		MonthlyRent:      1650,
	})

	// flip 100, cap rate 6.79% -> rental 60, blend 84
	assert.Equal(t, 84, result.Score)
	assert.Equal(t, VerdictOpportunity, result.Verdict)
	require.NotNil(t, result.Metrics)
	assert.Equal(t, 6.8, result.Metrics.CapRatePercent)
}

func TestScoringEngine_RealizedLoss(t *testing.T) {
	result := Score(DealFinancials{
		PurchasePrice: 200000,
		RehabCost:     50000,
		SoldPrice:     230000,
	})

	assert.Equal(t, 40, result.Score)
	assert.Equal(t, VerdictLoss, result.Verdict)
	assert.Equal(t, TierPoor, result.Tier)
	require.NotNil(t, result.Metrics)
	assert.Equal(t, 250000.0, result.Metrics.TotalInvestment)
	require.NotNil(t, result.Metrics.Profit)
	assert.Equal(t, -20000.0, *result.Metrics.Profit)
	assert.Equal(t, -8.0, result.Metrics.ROIPercent)
	assert.Equal(t, 0.0, result.Metrics.MaximumAllowableOffer)
	assert.Equal(t, 0.0, result.Metrics.CapRatePercent)
	assert.Equal(t, 0.0, result.Metrics.EquityOrProfit)
}

func TestScoringEngine_OverpricedFlip(t *testing.T) {
	result := Score(DealFinancials{
		PurchasePrice:    220000,
		AfterRepairValue: 250000,
		RehabCost:        25000,
	})

	assert.Equal(t, 20, result.Score)
	assert.Equal(t, VerdictSpeculative, result.Verdict)
}

func TestScoringEngine_FlipBands(t *testing.T) {
	// MAO = 150000 for ARV 250000 / rehab 25000
	testCases := []struct {
		name     string
		price    float64
		expected int
		verdict  Verdict
	}{
		{"below MAO", 120000, 100, VerdictElite},
		{"within 10 percent", 165000, 75, VerdictStrong},
		{"within 20 percent", 180000, 50, VerdictOpportunity},
		{"just over 20 percent", 180001, 20, VerdictSpeculative},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := Score(DealFinancials{PurchasePrice: tc.price, AfterRepairValue: 250000, RehabCost: 25000})
			assert.Equal(t, tc.expected, result.Score)
			assert.Equal(t, tc.verdict, result.Verdict)
		})
	}
}

func TestScoringEngine_CapRateBands(t *testing.T) {
	// Price above MAO*1.2 pins the flip score at 20, so score = 12 + 0.4*rental.
	// Total investment is 100000 so the cap rate equals rent * 0.0072.
	testCases := []struct {
		name     string
		rent     float64
		expected int
	}{
		{"cap rate 10.8", 1500, 52},
		{"cap rate 8.64", 1200, 46},
		{"cap rate 6.48", 900, 36},
		{"cap rate 4.32", 600, 28},
		{"cap rate 2.16", 300, 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := Score(DealFinancials{
				PurchasePrice:    100000,
				AfterRepairValue: 100000,
				MonthlyRent:      tc.rent,
			})
			assert.Equal(t, tc.expected, result.Score)
		})
	}
}

func TestScoringEngine_RealizedBands(t *testing.T) {
	testCases := []struct {
		sold     float64
		expected int
		verdict  Verdict
	}{
		{120000, 100, VerdictHomerun},
		{115000, 90, VerdictGreat},
		{119999, 90, VerdictGreat},
		{110000, 80, VerdictGood},
		{100001, 65, VerdictOK},
		{100000, 40, VerdictLoss},
		{50000, 40, VerdictLoss},
	}

	for _, tc := range testCases {
		t.Run(string(tc.verdict), func(t *testing.T) {
			result := Score(DealFinancials{PurchasePrice: 80000, RehabCost: 20000, SoldPrice: tc.sold})
			assert.Equal(t, tc.expected, result.Score)
			assert.Equal(t, tc.verdict, result.Verdict)
			assert.True(t, result.Verdict.IsRealized())
		})
	}
}

func TestScoringEngine_RealizedWithoutInvestment(t *testing.T) {
	result := Score(DealFinancials{SoldPrice: 50000})

	assert.Equal(t, 40, result.Score)
	assert.Equal(t, VerdictLoss, result.Verdict)
	assert.Equal(t, 0.0, result.Metrics.ROIPercent)
}

func TestScoringEngine_ZeroGuard(t *testing.T) {
	for _, x := range amountGrid {
		for _, in := range []DealFinancials{
			{PurchasePrice: 0, AfterRepairValue: x, RehabCost: 10000, MonthlyRent: 1500, HasPool: true},
			{PurchasePrice: x, AfterRepairValue: 0, RehabCost: 10000, MonthlyRent: 1500, HasPool: true},
		} {
			result := Score(in)
			assert.Equal(t, 0, result.Score)
			assert.Equal(t, VerdictIncomplete, result.Verdict)
			assert.True(t, result.IsIncomplete())
			assert.Equal(t, TierUnknown, result.Tier)
			assert.Nil(t, result.Metrics)
		}
	}
}

func TestScoringEngine_Totality(t *testing.T) {
	realizedScores := map[int]bool{40: true, 65: true, 80: true, 90: true, 100: true}

	for _, price := range amountGrid {
		for _, arv := range amountGrid {
			for _, rehab := range amountGrid {
				for _, rent := range []float64{0, 800, 2500} {
					for _, sold := range []float64{0, 180000} {
						for _, pool := range []bool{false, true} {
							result := Score(DealFinancials{
								PurchasePrice:    price,
								AfterRepairValue: arv,
								RehabCost:        rehab,
								MonthlyRent:      rent,
								HasPool:          pool,
								SoldPrice:        sold,
							})
							if sold > 0 {
								assert.True(t, realizedScores[result.Score], "unexpected realized score %d", result.Score)
								continue
							}
							assert.GreaterOrEqual(t, result.Score, 0)
							assert.LessOrEqual(t, result.Score, 100)
						}
					}
				}
			}
		}
	}
}

func TestScoringEngine_RealizedBranchDominance(t *testing.T) {
	base := Score(DealFinancials{PurchasePrice: 150000, RehabCost: 30000, SoldPrice: 210000})

	for _, arv := range amountGrid {
		for _, rent := range []float64{0, 1200, 4000} {
			for _, pool := range []bool{false, true} {
				result := Score(DealFinancials{
					PurchasePrice:    150000,
					AfterRepairValue: arv,
					RehabCost:        30000,
					MonthlyRent:      rent,
					HasPool:          pool,
					SoldPrice:        210000,
				})
				assert.Equal(t, base, result)
			}
		}
	}
}

func TestScoringEngine_FlipMonotonicity(t *testing.T) {
	for _, rent := range []float64{0, 1000, 3000} {
		previous := -1
		// walk the price downward; the score must never drop
		for price := 300000.0; price > 0; price -= 2500 {
			result := Score(DealFinancials{
				PurchasePrice:    price,
				AfterRepairValue: 250000,
				RehabCost:        25000,
				MonthlyRent:      rent,
			})
			assert.GreaterOrEqual(t, result.Score, previous, "price %.0f rent %.0f", price, rent)
			previous = result.Score
		}
	}
}

func TestScoringEngine_PoolBonusBounded(t *testing.T) {
	result := Score(DealFinancials{
		PurchasePrice:    150000,
		AfterRepairValue: 250000,
		RehabCost:        25000,
		HasPool:          true,
	})
	assert.Equal(t, 100, result.Score)

	// price far above MAO: flip 20 plus the bonus
	result = Score(DealFinancials{
		PurchasePrice:    100000,
		AfterRepairValue: 100001,
		HasPool:          true,
	})
	assert.Equal(t, 25, result.Score)

	result = Score(DealFinancials{
		PurchasePrice:    165000,
		AfterRepairValue: 250000,
		RehabCost:        25000,
		HasPool:          true,
	})
	assert.Equal(t, 80, result.Score)
	assert.Equal(t, VerdictStrong, result.Verdict)
}

func TestScoringEngine_RentAbsenceEquivalence(t *testing.T) {
	engine := NewScoringEngine()

	for _, price := range amountGrid[1:] {
		for _, rehab := range amountGrid {
			in := DealFinancials{PurchasePrice: price, AfterRepairValue: 250000, RehabCost: rehab}
			result := engine.Score(in)
			mao := engine.MaximumAllowableOffer(250000, rehab)
			assert.Equal(t, int(engine.flipScore(price, mao)), result.Score)
			assert.Equal(t, 0.0, result.Metrics.CapRatePercent)
		}
	}
}

func TestScoringEngine_SanitizesInputs(t *testing.T) {
	result := Score(DealFinancials{
		PurchasePrice:    150000,
		AfterRepairValue: 250000,
		RehabCost:        math.NaN(),
		MonthlyRent:      math.Inf(1),
		SoldPrice:        -5,
	})

	// NaN rehab and infinite rent both count as zero
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, 150000.0, result.Metrics.TotalInvestment)
	assert.Equal(t, 0.0, result.Metrics.CapRatePercent)
	assert.False(t, result.Verdict.IsRealized())

	result = Score(DealFinancials{PurchasePrice: math.NaN(), AfterRepairValue: 250000})
	assert.Equal(t, VerdictIncomplete, result.Verdict)
}

func TestScoringEngine_Deterministic(t *testing.T) {
	in := DealFinancials{PurchasePrice: 150000, AfterRepairValue: 250000, RehabCost: 25000, MonthlyRent: 1650, HasPool: true}
	assert.Equal(t, Score(in), Score(in))
}

func TestScoringEngine_CustomPolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.Version = "aggressive"
	policy.FlipARVRatio = 0.75

	engine, err := NewScoringEngineWithPolicy(policy)
	require.NoError(t, err)

	// MAO 162500 now covers a price of 165000 within 10%
	result := engine.Score(DealFinancials{PurchasePrice: 165000, AfterRepairValue: 250000, RehabCost: 25000})
	assert.Equal(t, 75, result.Score)
	assert.Equal(t, "aggressive", result.PolicyVersion)
	assert.Equal(t, "aggressive", engine.PolicyVersion())
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierExcellent, TierFor(VerdictHomerun))
	assert.Equal(t, TierGood, TierFor(VerdictGood))
	assert.Equal(t, TierFair, TierFor(VerdictOK))
	assert.Equal(t, TierPoor, TierFor(VerdictSpeculative))
	assert.Equal(t, TierUnknown, TierFor(Verdict("bogus")))
}
