package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/rei-deal-drop/internal/errors"
)

func TestParseAmount(t *testing.T) {
	testCases := []struct {
		in       string
		expected float64
	}{
		{"150000", 150000},
		{"$150,000.50", 150000.50},
		{"  1e5 ", 100000},
		{"1_650", 1650},
		{"", 0},
		{"n/a", 0},
		{"NaN", 0},
		{"-2500", -2500},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, ParseAmount(tc.in), tc.in)
	}
}

func TestParseFlag(t *testing.T) {
	assert.True(t, ParseFlag(true))
	assert.True(t, ParseFlag("true"))
	assert.True(t, ParseFlag(" TRUE "))
	assert.False(t, ParseFlag("yes"))
	assert.False(t, ParseFlag(1.0))
	assert.False(t, ParseFlag(nil))
	assert.False(t, ParseFlag(false))
}

func TestDealForm_DecodesLooseValues(t *testing.T) {
	payload := `{
		"address": "12 Elm St",
		"price": "$150,000",
		"arv": 250000,
		"rehab": "",
		"rent": null,
		"square_feet": "1,400",
		"has_pool": "true",
		"sold_price": "pending",
		"bedrooms": 3
	}`

	var form DealForm
	require.NoError(t, json.Unmarshal([]byte(payload), &form))

	assert.Equal(t, "12 Elm St", form.Address)
	assert.Equal(t, 150000.0, form.Price.Float64())
	assert.Equal(t, 250000.0, form.ARV.Float64())
	assert.Equal(t, 0.0, form.Rehab.Float64())
	assert.Equal(t, 0.0, form.Rent.Float64())
	assert.Equal(t, 1400.0, form.SquareFeet.Float64())
	assert.True(t, bool(form.HasPool))
	assert.Equal(t, 0.0, form.SoldPrice.Float64())
	assert.Equal(t, 3.0, form.Bedrooms.Float64())
}

func TestDealForm_NonNumericTypes(t *testing.T) {
	var form DealForm
	require.NoError(t, json.Unmarshal([]byte(`{"price": true, "arv": {"v": 1}, "has_pool": 1}`), &form))

	assert.Equal(t, 0.0, form.Price.Float64())
	assert.Equal(t, 0.0, form.ARV.Float64())
	assert.False(t, bool(form.HasPool))
}

func TestEffectiveRehab(t *testing.T) {
	// AI estimate wins whenever present
	assert.Equal(t, 42000.0, EffectiveRehab(10000, 42000, 2000, 10))
	// floor beats a low user figure
	assert.Equal(t, 20000.0, EffectiveRehab(10000, 0, 2000, 10))
	// user figure beats the floor
	assert.Equal(t, 30000.0, EffectiveRehab(30000, 0, 2000, 10))
	// no sqft, no floor
	assert.Equal(t, 5000.0, EffectiveRehab(5000, 0, 0, 10))
}

func TestNormalize(t *testing.T) {
	form := DealForm{
		Price:      150000,
		ARV:        250000,
		Rehab:      8000,
		Rent:       1650,
		SquareFeet: 2500,
		HasPool:    true,
	}

	n, err := Normalize(form, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 25000.0, n.EffectiveRehab)
	assert.Equal(t, 8000.0, n.UserRehab)
	assert.Equal(t, 150000.0, n.Financials.PurchasePrice)
	assert.Equal(t, 250000.0, n.Financials.AfterRepairValue)
	assert.Equal(t, 25000.0, n.Financials.RehabCost)
	assert.Equal(t, 1650.0, n.Financials.MonthlyRent)
	assert.True(t, n.Financials.HasPool)
	assert.Equal(t, 0.0, n.Financials.SoldPrice)
}

func TestNormalize_RejectsNegatives(t *testing.T) {
	_, err := Normalize(DealForm{Price: -1, ARV: 250000, Rent: -20}, DefaultOptions())
	require.Error(t, err)

	assert.Equal(t, errors.ErrCodeValidationError, errors.Code(err))
	assert.Contains(t, errors.PublicMessage(err), "price, rent")
}

func TestNormalize_NegativeFloorIgnored(t *testing.T) {
	n, err := Normalize(DealForm{Price: 1, ARV: 1, Rehab: 100, SquareFeet: 1000}, Options{MinRehabPerSqFt: -5})
	require.NoError(t, err)
	assert.Equal(t, 100.0, n.EffectiveRehab)
}
