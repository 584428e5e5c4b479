package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/rei-deal-drop/internal/database"
	"github.com/ajharbinger/rei-deal-drop/internal/ingest"
	"github.com/ajharbinger/rei-deal-drop/internal/logger"
	"github.com/ajharbinger/rei-deal-drop/internal/models"
	"github.com/ajharbinger/rei-deal-drop/internal/propertydata"
	"github.com/ajharbinger/rei-deal-drop/internal/repository"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
	"github.com/ajharbinger/rei-deal-drop/pkg/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// MockPropertyData implements PropertyDataProvider for testing
type MockPropertyData struct {
	Facts      *propertydata.PropertyFacts
	Rent       *propertydata.RentEstimate
	FactsErr   error
	RentErr    error
	RentCalls  int
	LastLookup string
}

func (m *MockPropertyData) LookupProperty(ctx context.Context, address string) (*propertydata.PropertyFacts, error) {
	m.LastLookup = address
	if m.FactsErr != nil {
		return nil, m.FactsErr
	}
	return m.Facts, nil
}

func (m *MockPropertyData) RentEstimate(ctx context.Context, address string) (*propertydata.RentEstimate, error) {
	m.RentCalls++
	if m.RentErr != nil {
		return nil, m.RentErr
	}
	return m.Rent, nil
}

// MockListings implements ListingFetcher for testing
type MockListings struct {
	Listing *propertydata.Listing
	Err     error
	LastURL string
}

func (m *MockListings) FetchListing(ctx context.Context, listingURL string) (*propertydata.Listing, error) {
	m.LastURL = listingURL
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Listing, nil
}

type testEnv struct {
	repos    *repository.Repositories
	services *Services
	provider *MockPropertyData
	listings *MockListings
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db))

	repos := repository.NewRepositories(db)
	provider := &MockPropertyData{}
	listings := &MockListings{}
	cfg := &config.Config{JWTSecret: testSecret, MinRehabPerSqFt: ingest.DefaultMinRehabPerSqFt}

	svc := NewServices(Dependencies{
		Repos:    repos,
		Engine:   scoring.NewScoringEngine(),
		Provider: provider,
		Listings: listings,
		Logger:   logger.NewNop(),
	}, cfg)

	return &testEnv{repos: repos, services: svc, provider: provider, listings: listings}
}

func (e *testEnv) createUser(t *testing.T, email string) uuid.UUID {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "unused"}
	require.NoError(t, e.repos.User.Create(context.Background(), user))
	return user.ID
}

// scenarioA is a flip priced exactly at the maximum allowable offer
func scenarioA() ingest.DealForm {
	return ingest.DealForm{
		Address: "12 Elm St",
		City:    "Austin",
		State:   "TX",
		Zip:     "78701",
		Price:   150000,
		ARV:     250000,
		Rehab:   25000,
	}
}
