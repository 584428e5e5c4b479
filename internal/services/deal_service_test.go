package services

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/rei-deal-drop/internal/errors"
	"github.com/ajharbinger/rei-deal-drop/internal/ingest"
	"github.com/ajharbinger/rei-deal-drop/internal/models"
	"github.com/ajharbinger/rei-deal-drop/internal/propertydata"
	"github.com/ajharbinger/rei-deal-drop/internal/repository"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
)

func TestDealService_Analyze(t *testing.T) {
	env := setupServices(t)

	result, normalized, err := env.services.Deal.Analyze(scenarioA())
	require.NoError(t, err)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, scoring.VerdictElite, result.Verdict)
	assert.Equal(t, 25000.0, normalized.EffectiveRehab)

	_, _, err = env.services.Deal.Analyze(ingest.DealForm{Price: -5})
	assert.Equal(t, errors.ErrCodeValidationError, errors.Code(err))
}

func TestDealService_AnalyzeAppliesRehabFloor(t *testing.T) {
	env := setupServices(t)

	form := scenarioA()
	form.Rehab = 5000
	form.SquareFeet = 2500 // floor 25000 beats the user's 5000

	result, normalized, err := env.services.Deal.Analyze(form)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, normalized.EffectiveRehab)
	assert.Equal(t, 100, result.Score)
}

func TestDealService_CreateAndGet(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	view, err := env.services.Deal.CreateDeal(ctx, owner, scenarioA())
	require.NoError(t, err)
	assert.Equal(t, models.DealActive, view.Status)
	assert.Equal(t, 100, view.DealScore)
	assert.Equal(t, scoring.VerdictElite, view.Verdict)
	assert.Equal(t, scoring.DefaultPolicyVersion, view.ScorePolicyVersion)
	assert.Equal(t, view.DealScore, view.Score.Score)
	assert.False(t, view.ScoreStale)

	got, err := env.services.Deal.GetDeal(ctx, owner, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "12 Elm St", got.Address)
	require.NotNil(t, got.Score.Metrics)
	assert.Equal(t, 150000.0, got.Score.Metrics.MaximumAllowableOffer)

	// other owners cannot see it
	stranger := env.createUser(t, "stranger@example.com")
	_, err = env.services.Deal.GetDeal(ctx, stranger, view.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestDealService_CreateWithSoldPrice(t *testing.T) {
	env := setupServices(t)
	owner := env.createUser(t, "owner@example.com")

	form := ingest.DealForm{Price: 200000, Rehab: 50000, ARV: 300000, SoldPrice: 240000}
	view, err := env.services.Deal.CreateDeal(context.Background(), owner, form)
	require.NoError(t, err)
	assert.Equal(t, models.DealSold, view.Status)
	assert.Equal(t, 40, view.DealScore)
	assert.Equal(t, scoring.VerdictLoss, view.Verdict)
}

func TestDealService_UpdateRescores(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	view, err := env.services.Deal.CreateDeal(ctx, owner, scenarioA())
	require.NoError(t, err)

	form := scenarioA()
	form.Price = 180001
	updated, err := env.services.Deal.UpdateDeal(ctx, owner, view.ID, form)
	require.NoError(t, err)
	assert.Equal(t, 20, updated.DealScore)
	assert.Equal(t, scoring.VerdictSpeculative, updated.Verdict)

	stored, err := env.repos.Deal.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, stored.DealScore)

	stranger := env.createUser(t, "stranger@example.com")
	_, err = env.services.Deal.UpdateDeal(ctx, stranger, view.ID, form)
	assert.True(t, errors.IsNotFound(err))
}

func TestDealService_MarkSold(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	view, err := env.services.Deal.CreateDeal(ctx, owner, ingest.DealForm{Price: 80000, Rehab: 20000, ARV: 150000})
	require.NoError(t, err)

	_, err = env.services.Deal.MarkSold(ctx, owner, view.ID, 0)
	assert.Equal(t, errors.ErrCodeValidationError, errors.Code(err))

	sold, err := env.services.Deal.MarkSold(ctx, owner, view.ID, 120000)
	require.NoError(t, err)
	assert.Equal(t, models.DealSold, sold.Status)
	assert.Equal(t, 100, sold.DealScore)
	assert.Equal(t, scoring.VerdictHomerun, sold.Verdict)
	require.NotNil(t, sold.Score.Metrics)
	require.NotNil(t, sold.Score.Metrics.Profit)
	assert.Equal(t, 20000.0, *sold.Score.Metrics.Profit)
}

func TestDealService_StatusTransitions(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	form := scenarioA()
	form.Status = "Under_Contract"
	view, err := env.services.Deal.CreateDeal(ctx, owner, form)
	require.NoError(t, err)
	assert.Equal(t, models.DealUnderContract, view.Status)

	// no status keeps the current one
	form.Status = ""
	view, err = env.services.Deal.UpdateDeal(ctx, owner, view.ID, form)
	require.NoError(t, err)
	assert.Equal(t, models.DealUnderContract, view.Status)

	form.Status = "draft"
	view, err = env.services.Deal.UpdateDeal(ctx, owner, view.ID, form)
	require.NoError(t, err)
	assert.Equal(t, models.DealDraft, view.Status)

	form.Status = "lost"
	_, err = env.services.Deal.UpdateDeal(ctx, owner, view.ID, form)
	assert.Equal(t, errors.ErrCodeValidationError, errors.Code(err))

	form.Status = "sold"
	_, err = env.services.Deal.UpdateDeal(ctx, owner, view.ID, form)
	assert.Equal(t, errors.ErrCodeValidationError, errors.Code(err))

	// a sold price wins over the requested status
	form.Status = "active"
	form.SoldPrice = 240000
	view, err = env.services.Deal.UpdateDeal(ctx, owner, view.ID, form)
	require.NoError(t, err)
	assert.Equal(t, models.DealSold, view.Status)

	form.Status = ""
	form.SoldPrice = 0
	view, err = env.services.Deal.UpdateDeal(ctx, owner, view.ID, form)
	require.NoError(t, err)
	assert.Equal(t, models.DealActive, view.Status)
	assert.Nil(t, view.SoldPrice)

	stored, err := env.repos.Deal.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealActive, stored.Status)
}

func TestDealService_ImportListing(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	env.listings.Listing = &propertydata.Listing{
		Address:    "742 Evergreen Terrace",
		Price:      185000,
		SquareFeet: 1850,
		Bedrooms:   3,
		Bathrooms:  2.5,
		HasPool:    true,
	}

	view, err := env.services.Deal.ImportListing(ctx, owner, "  https://listings.example.com/742  ")
	require.NoError(t, err)
	assert.Equal(t, "https://listings.example.com/742", env.listings.LastURL)
	assert.Equal(t, models.DealDraft, view.Status)
	assert.Equal(t, owner, view.OwnerID)
	assert.Equal(t, "742 Evergreen Terrace", view.Address)
	assert.Equal(t, 185000.0, view.Price)
	assert.Equal(t, 3.0, view.Bedrooms)
	assert.Equal(t, 2.5, view.Bathrooms)
	assert.True(t, view.HasPool)
	// 1850 sqft at the $10 floor
	assert.Equal(t, 18500.0, view.EffectiveRehab)
	// no ARV yet
	assert.Equal(t, scoring.VerdictIncomplete, view.Verdict)

	stored, err := env.services.Deal.GetDeal(ctx, owner, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealDraft, stored.Status)

	// the owner completes the draft later
	form := env.listings.Listing.Form()
	form.ARV = 300000
	form.Status = "active"
	completed, err := env.services.Deal.UpdateDeal(ctx, owner, view.ID, form)
	require.NoError(t, err)
	assert.Equal(t, models.DealActive, completed.Status)
	assert.NotEqual(t, scoring.VerdictIncomplete, completed.Verdict)
}

func TestDealService_ImportListingErrors(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	_, err := env.services.Deal.ImportListing(ctx, owner, "   ")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(err))

	env.listings.Err = errors.Forbidden("listing host not allowed", nil)
	_, err = env.services.Deal.ImportListing(ctx, owner, "https://evil.example.net/")
	assert.Equal(t, errors.ErrCodeForbidden, errors.Code(err))

	deals, err := env.services.Deal.ListDeals(ctx, owner, repository.DealFilter{})
	require.NoError(t, err)
	assert.Empty(t, deals)

	bare := NewDealService(env.repos, scoring.NewScoringEngine(), ingest.DefaultOptions(), nil, nil, nil)
	_, err = bare.ImportListing(ctx, owner, "https://listings.example.com/1")
	assert.Equal(t, errors.ErrCodeServiceError, errors.Code(err))
}

// commitFailingTx runs fn in a real transaction and then forces a rollback
type commitFailingTx struct {
	inner repository.TransactionManager
	calls int
}

var errCommit = stderrors.New("commit refused")

func (c *commitFailingTx) WithTransaction(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	c.calls++
	return c.inner.WithTransaction(ctx, func(repos *repository.Repositories) error {
		if err := fn(repos); err != nil {
			return err
		}
		return errCommit
	})
}

func TestDealService_WritesAreTransactional(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	view, err := env.services.Deal.CreateDeal(ctx, owner, scenarioA())
	require.NoError(t, err)

	repos := *env.repos
	tx := &commitFailingTx{inner: env.repos.Tx}
	repos.Tx = tx
	svc := NewDealService(&repos, scoring.NewScoringEngine(), ingest.DefaultOptions(), env.provider, nil, nil)

	form := scenarioA()
	form.Price = 220000
	_, err = svc.UpdateDeal(ctx, owner, view.ID, form)
	assert.ErrorIs(t, err, errCommit)
	_, err = svc.MarkSold(ctx, owner, view.ID, 260000)
	assert.ErrorIs(t, err, errCommit)
	_, err = svc.SetPublished(ctx, owner, view.ID, true)
	assert.ErrorIs(t, err, errCommit)
	assert.ErrorIs(t, svc.DeleteDeal(ctx, owner, view.ID), errCommit)
	assert.Equal(t, 4, tx.calls)

	// nothing was written
	stored, err := env.repos.Deal.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 150000.0, stored.Price)
	assert.Equal(t, 100, stored.DealScore)
	assert.Equal(t, models.DealActive, stored.Status)
	assert.False(t, stored.Published)
	assert.Equal(t, 0, stored.Revision)
}

func TestDealService_UpdateFromStaleRevisionConflicts(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	view, err := env.services.Deal.CreateDeal(ctx, owner, scenarioA())
	require.NoError(t, err)
	snapshot, err := env.repos.Deal.GetByID(ctx, view.ID)
	require.NoError(t, err)

	_, err = env.services.Deal.MarkSold(ctx, owner, view.ID, 260000)
	require.NoError(t, err)

	snapshot.Price = 1
	assert.True(t, errors.IsConflict(env.repos.Deal.Update(ctx, snapshot)))

	stored, err := env.services.Deal.GetDeal(ctx, owner, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealSold, stored.Status)
	assert.Equal(t, 150000.0, stored.Price)
}

func TestDealService_Publishing(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	incomplete, err := env.services.Deal.CreateDeal(ctx, owner, ingest.DealForm{Price: 150000})
	require.NoError(t, err)
	assert.Equal(t, scoring.VerdictIncomplete, incomplete.Verdict)

	_, err = env.services.Deal.SetPublished(ctx, owner, incomplete.ID, true)
	assert.Equal(t, errors.ErrCodeIncompleteDeal, errors.Code(err))

	good, err := env.services.Deal.CreateDeal(ctx, owner, scenarioA())
	require.NoError(t, err)
	published, err := env.services.Deal.SetPublished(ctx, owner, good.ID, true)
	require.NoError(t, err)
	assert.True(t, published.Published)

	feed, err := env.services.Deal.ListPublished(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, good.ID, feed[0].ID)

	// an update that empties the ARV pulls the deal from the feed
	_, err = env.services.Deal.UpdateDeal(ctx, owner, good.ID, ingest.DealForm{Price: 150000})
	require.NoError(t, err)
	feed, err = env.services.Deal.ListPublished(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestDealService_ListDeals(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	other := env.createUser(t, "other@example.com")

	for _, price := range []float64{180001, 150000, 165000} {
		form := scenarioA()
		form.Price = ingest.Number(price)
		_, err := env.services.Deal.CreateDeal(ctx, owner, form)
		require.NoError(t, err)
	}
	_, err := env.services.Deal.CreateDeal(ctx, other, scenarioA())
	require.NoError(t, err)

	views, err := env.services.Deal.ListDeals(ctx, owner, repository.DealFilter{})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, 100, views[0].DealScore)
	assert.Equal(t, 75, views[1].DealScore)
	assert.Equal(t, 20, views[2].DealScore)

	_, err = env.services.Deal.ListDeals(ctx, owner, repository.DealFilter{Sort: "bogus"})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(err))

	_, err = env.services.Deal.ListDeals(ctx, owner, repository.DealFilter{Statuses: []models.DealStatus{"lost"}})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(err))
}

func TestDealService_Delete(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	stranger := env.createUser(t, "stranger@example.com")

	view, err := env.services.Deal.CreateDeal(ctx, owner, scenarioA())
	require.NoError(t, err)

	assert.True(t, errors.IsNotFound(env.services.Deal.DeleteDeal(ctx, stranger, view.ID)))
	require.NoError(t, env.services.Deal.DeleteDeal(ctx, owner, view.ID))
	assert.True(t, errors.IsNotFound(env.services.Deal.DeleteDeal(ctx, owner, view.ID)))
}

func TestDealService_StaleScoreIsFlagged(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	view, err := env.services.Deal.CreateDeal(ctx, owner, scenarioA())
	require.NoError(t, err)
	require.NoError(t, env.repos.Deal.UpdateScore(ctx, view.ID, view.Revision, 10, scoring.VerdictSpeculative, "2019.1"))

	got, err := env.services.Deal.GetDeal(ctx, owner, view.ID)
	require.NoError(t, err)
	assert.True(t, got.ScoreStale)
	assert.Equal(t, 10, got.DealScore)
	assert.Equal(t, 100, got.Score.Score)
}

func TestDealService_EnrichDeal(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	env.provider.Facts = &propertydata.PropertyFacts{SquareFeet: 3000, Bedrooms: 4, Bathrooms: 2, HasPool: true}
	env.provider.Rent = &propertydata.RentEstimate{Rent: 1650, Low: 1500, High: 1800}

	view, err := env.services.Deal.CreateDeal(ctx, owner, scenarioA())
	require.NoError(t, err)

	enriched, err := env.services.Deal.EnrichDeal(ctx, owner, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "12 Elm St, Austin, TX 78701", env.provider.LastLookup)
	assert.Equal(t, 3000.0, enriched.SquareFeet)
	assert.Equal(t, 4.0, enriched.Bedrooms)
	assert.True(t, enriched.HasPool)
	assert.Equal(t, 1650.0, enriched.MonthlyRent)
	// 3000 sqft at the $10 floor lifts rehab to 30000
	assert.Equal(t, 30000.0, enriched.EffectiveRehab)
	assert.Equal(t, enriched.Score.Score, enriched.DealScore)

	// rent is only fetched when missing
	_, err = env.services.Deal.EnrichDeal(ctx, owner, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.provider.RentCalls)
}

func TestDealService_EnrichDealErrors(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	noAddress, err := env.services.Deal.CreateDeal(ctx, owner, ingest.DealForm{Price: 1, ARV: 2})
	require.NoError(t, err)
	_, err = env.services.Deal.EnrichDeal(ctx, owner, noAddress.ID)
	assert.Equal(t, errors.ErrCodeValidationError, errors.Code(err))

	view, err := env.services.Deal.CreateDeal(ctx, owner, scenarioA())
	require.NoError(t, err)
	env.provider.FactsErr = errors.ServiceError("provider down", nil)
	_, err = env.services.Deal.EnrichDeal(ctx, owner, view.ID)
	assert.Equal(t, errors.ErrCodeServiceError, errors.Code(err))

	bare := NewDealService(env.repos, scoring.NewScoringEngine(), ingest.DefaultOptions(), nil, nil, nil)
	_, err = bare.EnrichDeal(ctx, owner, uuid.New())
	assert.Equal(t, errors.ErrCodeServiceError, errors.Code(err))
}
