package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
)

// DealStatus represents where a deal is in its lifecycle
type DealStatus string

const (
	DealDraft         DealStatus = "draft"
	DealActive        DealStatus = "active"
	DealUnderContract DealStatus = "under_contract"
	DealSold          DealStatus = "sold"
)

// Valid reports whether s is a known status
func (s DealStatus) Valid() bool {
	switch s {
	case DealDraft, DealActive, DealUnderContract, DealSold:
		return true
	}
	return false
}

// Deal represents a logged property deal
type Deal struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OwnerID    uuid.UUID `json:"owner_id" db:"owner_id"`
	Address    string    `json:"address" db:"address"`
	City       string    `json:"city" db:"city"`
	State      string    `json:"state" db:"state"`
	Zip        string    `json:"zip" db:"zip"`
	SquareFeet float64   `json:"square_feet" db:"square_feet"`
	Bedrooms   float64   `json:"bedrooms" db:"bedrooms"`
	Bathrooms  float64   `json:"bathrooms" db:"bathrooms"`

	Price           float64  `json:"price" db:"price"`
	Rehab           float64  `json:"rehab" db:"rehab"`
	AIRehabEstimate *float64 `json:"ai_rehab_estimate,omitempty" db:"ai_rehab_estimate"`
	EffectiveRehab  float64  `json:"effective_rehab" db:"effective_rehab"`
	ARV             float64  `json:"arv" db:"arv"`
	MonthlyRent     float64  `json:"monthly_rent" db:"monthly_rent"`
	HasPool         bool     `json:"has_pool" db:"has_pool"`

	Status    DealStatus `json:"status" db:"status"`
	SoldPrice *float64   `json:"sold_price,omitempty" db:"sold_price"`
	Published bool       `json:"published" db:"published"`

	DealScore          int             `json:"deal_score" db:"deal_score"`
	Verdict            scoring.Verdict `json:"verdict" db:"verdict"`
	ScorePolicyVersion string          `json:"score_policy_version" db:"score_policy_version"`
	// Revision counts input edits; conditional writes compare against it
	Revision int `json:"revision" db:"revision"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Financials builds the engine input from the stored record. The effective
// rehab is used so the persisted and displayed scores come from identical inputs.
func (d *Deal) Financials() scoring.DealFinancials {
	f := scoring.DealFinancials{
		PurchasePrice:    d.Price,
		AfterRepairValue: d.ARV,
		RehabCost:        d.EffectiveRehab,
		MonthlyRent:      d.MonthlyRent,
		HasPool:          d.HasPool,
	}
	if d.SoldPrice != nil {
		f.SoldPrice = *d.SoldPrice
	}
	return f
}

// ApplyScore stores a score result on the record
func (d *Deal) ApplyScore(result scoring.ScoreResult) {
	d.DealScore = result.Score
	d.Verdict = result.Verdict
	d.ScorePolicyVersion = result.PolicyVersion
}

// IsOwnedBy returns true if the user owns the deal
func (d *Deal) IsOwnedBy(userID uuid.UUID) bool {
	return d.OwnerID == userID
}
