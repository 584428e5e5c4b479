package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ajharbinger/rei-deal-drop/internal/ingest"
	"github.com/ajharbinger/rei-deal-drop/internal/logger"
	"github.com/ajharbinger/rei-deal-drop/internal/models"
	"github.com/ajharbinger/rei-deal-drop/internal/propertydata"
	"github.com/ajharbinger/rei-deal-drop/internal/repository"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
	"github.com/ajharbinger/rei-deal-drop/pkg/config"
)

// Services contains all application services
type Services struct {
	Deal     DealService
	Auth     AuthService
	Rescore  *RescorePipeline
	Export   *DealExportService
	Provider PropertyDataProvider
}

// DealService defines the interface for deal business logic
type DealService interface {
	// Stateless scoring
	Analyze(form ingest.DealForm) (scoring.ScoreResult, ingest.Normalized, error)

	// Owner-scoped operations
	CreateDeal(ctx context.Context, ownerID uuid.UUID, form ingest.DealForm) (*DealView, error)
	UpdateDeal(ctx context.Context, ownerID, id uuid.UUID, form ingest.DealForm) (*DealView, error)
	GetDeal(ctx context.Context, ownerID, id uuid.UUID) (*DealView, error)
	ListDeals(ctx context.Context, ownerID uuid.UUID, filter repository.DealFilter) ([]DealView, error)
	DeleteDeal(ctx context.Context, ownerID, id uuid.UUID) error
	MarkSold(ctx context.Context, ownerID, id uuid.UUID, soldPrice float64) (*DealView, error)
	SetPublished(ctx context.Context, ownerID, id uuid.UUID, published bool) (*DealView, error)
	EnrichDeal(ctx context.Context, ownerID, id uuid.UUID) (*DealView, error)
	ImportListing(ctx context.Context, ownerID uuid.UUID, listingURL string) (*DealView, error)

	// Public feed
	ListPublished(ctx context.Context, limit, offset int) ([]DealView, error)
}

// AuthService defines the interface for authentication business logic
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	ValidateToken(ctx context.Context, token string) (*models.User, error)
	RefreshToken(ctx context.Context, token string) (*models.LoginResponse, error)
}

// PropertyDataProvider supplies facts used to enrich a deal
type PropertyDataProvider interface {
	LookupProperty(ctx context.Context, address string) (*propertydata.PropertyFacts, error)
	RentEstimate(ctx context.Context, address string) (*propertydata.RentEstimate, error)
}

// ListingFetcher reads deal details off a listing page
type ListingFetcher interface {
	FetchListing(ctx context.Context, listingURL string) (*propertydata.Listing, error)
}

// Dependencies are the collaborators NewServices wires together.
// Provider may be nil when no property data credentials are configured;
// Listings may be nil when no listing hosts are allowed.
type Dependencies struct {
	Repos    *repository.Repositories
	Engine   *scoring.ScoringEngine
	Provider PropertyDataProvider
	Listings ListingFetcher
	Logger   logger.Logger
}

// NewServices creates a new Services instance with all dependencies
func NewServices(deps Dependencies, cfg *config.Config) *Services {
	if deps.Engine == nil {
		deps.Engine = scoring.NewScoringEngine()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	opts := ingest.Options{MinRehabPerSqFt: cfg.MinRehabPerSqFt}

	deal := newDealService(deps.Repos, deps.Engine, opts, deps.Provider, deps.Listings, deps.Logger)

	return &Services{
		Deal:     deal,
		Auth:     newAuthService(deps.Repos, cfg),
		Rescore:  NewRescorePipeline(deps.Repos, deps.Engine, deps.Logger),
		Export:   NewDealExportService(deal),
		Provider: deps.Provider,
	}
}

// NewDealService creates a standalone deal service
func NewDealService(repos *repository.Repositories, engine *scoring.ScoringEngine, opts ingest.Options, provider PropertyDataProvider, listings ListingFetcher, log logger.Logger) DealService {
	return newDealService(repos, engine, opts, provider, listings, log)
}
