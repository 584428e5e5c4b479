// Package ingest turns loosely typed deal form values into the strict
// financials the scoring engine accepts.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ajharbinger/rei-deal-drop/internal/errors"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
)

// DefaultMinRehabPerSqFt is the rehab floor applied when no AI estimate exists
const DefaultMinRehabPerSqFt = 10.0

// Number is a monetary or numeric form value. It decodes from JSON numbers and
// from numeric strings such as "$150,000.50". Null, empty and non-numeric
// values decode to zero.
type Number float64

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		*n = Number(ParseAmount(s))
		return nil
	}

	if data[0] == 't' || data[0] == 'f' || data[0] == '[' || data[0] == '{' {
		*n = 0
		return nil
	}

	*n = Number(ParseAmount(string(data)))
	return nil
}

// Float64 returns the value as a float64
func (n Number) Float64() float64 {
	return float64(n)
}

// ParseAmount parses a loosely formatted amount. Currency symbols, thousands
// separators and surrounding whitespace are ignored; anything unparseable is 0.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("$", "", ",", "", "_", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Flag is a boolean form value. Only JSON true or the string "true" (any case)
// decode to true.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler
func (f *Flag) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		*f = false
		return nil
	}
	*f = Flag(ParseFlag(v))
	return nil
}

// ParseFlag interprets a loosely typed boolean
func ParseFlag(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}

// DealForm carries deal fields as entered by a user or fetched by an assistant
type DealForm struct {
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Bedrooms  Number `json:"bedrooms"`
	Bathrooms Number `json:"bathrooms"`

	Price           Number `json:"price"`
	Rehab           Number `json:"rehab"`
	ARV             Number `json:"arv"`
	Rent            Number `json:"rent"`
	AIRehabEstimate Number `json:"ai_rehab_estimate"`
	SquareFeet      Number `json:"square_feet"`
	HasPool         Flag   `json:"has_pool"`
	SoldPrice       Number `json:"sold_price"`

	// Status optionally moves a stored deal along its lifecycle. A sold
	// price always implies sold.
	Status string `json:"status"`
}

// Options tunes normalization
type Options struct {
	MinRehabPerSqFt float64
}

// DefaultOptions returns the standard normalization options
func DefaultOptions() Options {
	return Options{MinRehabPerSqFt: DefaultMinRehabPerSqFt}
}

// Normalized is the strict result of normalizing a form
type Normalized struct {
	Financials     scoring.DealFinancials `json:"financials"`
	UserRehab      float64                `json:"user_rehab"`
	EffectiveRehab float64                `json:"effective_rehab"`
	SquareFeet     float64                `json:"square_feet"`
}

// EffectiveRehab picks the rehab figure to score: the AI estimate when one is
// available, otherwise the greater of the user's figure and the per-sqft floor.
func EffectiveRehab(userRehab, aiEstimate, squareFeet, floorPerSqFt float64) float64 {
	if aiEstimate > 0 {
		return aiEstimate
	}
	return math.Max(userRehab, squareFeet*floorPerSqFt)
}

// Normalize validates a form and builds the engine input. Negative amounts
// are rejected; missing values count as zero.
func Normalize(form DealForm, opts Options) (Normalized, error) {
	amounts := []struct {
		field string
		value float64
	}{
		{"price", form.Price.Float64()},
		{"rehab", form.Rehab.Float64()},
		{"arv", form.ARV.Float64()},
		{"rent", form.Rent.Float64()},
		{"ai_rehab_estimate", form.AIRehabEstimate.Float64()},
		{"square_feet", form.SquareFeet.Float64()},
		{"sold_price", form.SoldPrice.Float64()},
		{"bedrooms", form.Bedrooms.Float64()},
		{"bathrooms", form.Bathrooms.Float64()},
	}

	var negative []string
	for _, a := range amounts {
		if a.value < 0 {
			negative = append(negative, a.field)
		}
	}
	if len(negative) > 0 {
		return Normalized{}, errors.ValidationError("invalid deal", nil).
			WithDetails(fmt.Sprintf("negative values for %s", strings.Join(negative, ", ")))
	}

	floor := opts.MinRehabPerSqFt
	if floor < 0 {
		floor = 0
	}

	effective := EffectiveRehab(form.Rehab.Float64(), form.AIRehabEstimate.Float64(), form.SquareFeet.Float64(), floor)

	return Normalized{
		Financials: scoring.DealFinancials{
			PurchasePrice:    form.Price.Float64(),
			AfterRepairValue: form.ARV.Float64(),
			RehabCost:        effective,
			MonthlyRent:      form.Rent.Float64(),
			HasPool:          bool(form.HasPool),
			SoldPrice:        form.SoldPrice.Float64(),
		},
		UserRehab:      form.Rehab.Float64(),
		EffectiveRehab: effective,
		SquareFeet:     form.SquareFeet.Float64(),
	}, nil
}
