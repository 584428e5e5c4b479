package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ajharbinger/rei-deal-drop/internal/models"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
)

// DealRepository defines the interface for deal data access
type DealRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, deal *models.Deal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	Update(ctx context.Context, deal *models.Deal) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Listing
	List(ctx context.Context, filter DealFilter) ([]models.Deal, error)
	ListPublished(ctx context.Context, limit, offset int) ([]models.Deal, error)

	// Scoring
	ListStale(ctx context.Context, policyVersion string, limit int) ([]models.Deal, error)
	UpdateScore(ctx context.Context, id uuid.UUID, revision, score int, verdict scoring.Verdict, policyVersion string) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// TransactionManager defines the interface for database transaction management
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(repos *Repositories) error) error
}

// Repositories groups all repository interfaces
type Repositories struct {
	Deal DealRepository
	User UserRepository
	Tx   TransactionManager
}

// DealSort names a supported ordering for deal listings
type DealSort string

const (
	SortScoreDesc   DealSort = "score_desc"
	SortCreatedDesc DealSort = "created_desc"
	SortPriceAsc    DealSort = "price_asc"
)

// Valid reports whether s is a supported ordering; empty means the default
func (s DealSort) Valid() bool {
	switch s {
	case "", SortScoreDesc, SortCreatedDesc, SortPriceAsc:
		return true
	}
	return false
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// DealFilter defines filters for querying deals
type DealFilter struct {
	OwnerID       *uuid.UUID
	Statuses      []models.DealStatus
	MinScore      *int
	PublishedOnly bool
	Sort          DealSort
	Limit         int
	Offset        int
}
