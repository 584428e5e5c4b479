package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/ajharbinger/rei-deal-drop/internal/errors"
	"github.com/ajharbinger/rei-deal-drop/internal/ingest"
	"github.com/ajharbinger/rei-deal-drop/internal/logger"
	"github.com/ajharbinger/rei-deal-drop/internal/models"
	"github.com/ajharbinger/rei-deal-drop/internal/propertydata"
	"github.com/ajharbinger/rei-deal-drop/internal/repository"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
)

// DealView is a stored deal plus its live score. Score is recomputed from the
// stored inputs with the current policy; ScoreStale is set when the persisted
// score was produced under a different policy version.
type DealView struct {
	models.Deal
	Score      scoring.ScoreResult `json:"score"`
	ScoreStale bool                `json:"score_stale"`
}

// dealServiceImpl implements DealService
type dealServiceImpl struct {
	repos    *repository.Repositories
	engine   *scoring.ScoringEngine
	opts     ingest.Options
	provider PropertyDataProvider
	listings ListingFetcher
	log      logger.Logger
}

func newDealService(repos *repository.Repositories, engine *scoring.ScoringEngine, opts ingest.Options, provider PropertyDataProvider, listings ListingFetcher, log logger.Logger) DealService {
	if log == nil {
		log = logger.NewNop()
	}
	return &dealServiceImpl{
		repos:    repos,
		engine:   engine,
		opts:     opts,
		provider: provider,
		listings: listings,
		log:      log,
	}
}

// Analyze scores a form without persisting anything
func (s *dealServiceImpl) Analyze(form ingest.DealForm) (scoring.ScoreResult, ingest.Normalized, error) {
	normalized, err := ingest.Normalize(form, s.opts)
	if err != nil {
		return scoring.ScoreResult{}, ingest.Normalized{}, err
	}
	return s.engine.Score(normalized.Financials), normalized, nil
}

// CreateDeal normalizes, scores and stores a new deal
func (s *dealServiceImpl) CreateDeal(ctx context.Context, ownerID uuid.UUID, form ingest.DealForm) (*DealView, error) {
	deal := &models.Deal{OwnerID: ownerID, Status: models.DealActive}
	if err := s.applyForm(deal, form); err != nil {
		return nil, err
	}

	if err := s.repos.Deal.Create(ctx, deal); err != nil {
		return nil, err
	}

	s.log.Info("deal created", "deal_id", deal.ID, "owner_id", ownerID, "score", deal.DealScore, "verdict", deal.Verdict)
	return s.view(deal), nil
}

// UpdateDeal replaces a deal's inputs and rescores it
func (s *dealServiceImpl) UpdateDeal(ctx context.Context, ownerID, id uuid.UUID, form ingest.DealForm) (*DealView, error) {
	deal, err := s.modify(ctx, ownerID, id, func(deal *models.Deal) (bool, error) {
		return true, s.applyForm(deal, form)
	})
	if err != nil {
		return nil, err
	}
	return s.view(deal), nil
}

// ImportListing creates a draft deal prefilled from a listing page. ARV,
// rehab and rent are left for the owner to fill in.
func (s *dealServiceImpl) ImportListing(ctx context.Context, ownerID uuid.UUID, listingURL string) (*DealView, error) {
	if s.listings == nil {
		return nil, errors.ServiceError("listing import is not configured", nil)
	}
	listingURL = strings.TrimSpace(listingURL)
	if listingURL == "" {
		return nil, errors.InvalidInput("listing url is required", nil)
	}

	listing, err := s.listings.FetchListing(ctx, listingURL)
	if err != nil {
		return nil, err
	}

	deal := &models.Deal{OwnerID: ownerID, Status: models.DealDraft}
	if err := s.applyForm(deal, listing.Form()); err != nil {
		return nil, err
	}
	if err := s.repos.Deal.Create(ctx, deal); err != nil {
		return nil, err
	}

	s.log.Info("listing imported", "deal_id", deal.ID, "owner_id", ownerID, "price", deal.Price, "verdict", deal.Verdict)
	return s.view(deal), nil
}

// GetDeal returns one of the owner's deals
func (s *dealServiceImpl) GetDeal(ctx context.Context, ownerID, id uuid.UUID) (*DealView, error) {
	deal, err := s.getOwned(ctx, s.repos.Deal, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.view(deal), nil
}

// ListDeals lists the owner's deals, best persisted score first by default
func (s *dealServiceImpl) ListDeals(ctx context.Context, ownerID uuid.UUID, filter repository.DealFilter) ([]DealView, error) {
	if !filter.Sort.Valid() {
		return nil, errors.InvalidInput("invalid sort", nil).WithDetails(string(filter.Sort))
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, errors.InvalidInput("invalid status", nil).WithDetails(string(status))
		}
	}
	filter.OwnerID = &ownerID

	deals, err := s.repos.Deal.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.views(deals), nil
}

// DeleteDeal removes one of the owner's deals
func (s *dealServiceImpl) DeleteDeal(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.repos.Tx.WithTransaction(ctx, func(tx *repository.Repositories) error {
		if _, err := s.getOwned(ctx, tx.Deal, ownerID, id); err != nil {
			return err
		}
		return tx.Deal.Delete(ctx, id)
	})
}

// MarkSold records a realized sale and rescores on the realized branch
func (s *dealServiceImpl) MarkSold(ctx context.Context, ownerID, id uuid.UUID, soldPrice float64) (*DealView, error) {
	if !(soldPrice > 0) || math.IsInf(soldPrice, 0) {
		return nil, errors.ValidationError("sold price must be greater than zero", nil)
	}

	deal, err := s.modify(ctx, ownerID, id, func(deal *models.Deal) (bool, error) {
		deal.SoldPrice = &soldPrice
		deal.Status = models.DealSold
		deal.ApplyScore(s.engine.Score(deal.Financials()))
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deal sold", "deal_id", deal.ID, "sold_price", soldPrice, "verdict", deal.Verdict)
	return s.view(deal), nil
}

// SetPublished toggles whether a deal appears in the public feed
func (s *dealServiceImpl) SetPublished(ctx context.Context, ownerID, id uuid.UUID, published bool) (*DealView, error) {
	deal, err := s.modify(ctx, ownerID, id, func(deal *models.Deal) (bool, error) {
		if published && deal.Verdict == scoring.VerdictIncomplete {
			return false, errors.IncompleteDeal("deal needs a price and ARV before it can be published")
		}
		if deal.Published == published {
			return false, nil
		}
		deal.Published = published
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(deal), nil
}

// ListPublished returns the public feed
func (s *dealServiceImpl) ListPublished(ctx context.Context, limit, offset int) ([]DealView, error) {
	deals, err := s.repos.Deal.ListPublished(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.views(deals), nil
}

// EnrichDeal fills missing property facts and rent from the data provider.
// Provider calls happen outside the write transaction; the results are merged
// into the deal as stored when the transaction runs.
func (s *dealServiceImpl) EnrichDeal(ctx context.Context, ownerID, id uuid.UUID) (*DealView, error) {
	if s.provider == nil {
		return nil, errors.ServiceError("property data provider is not configured", nil)
	}

	snapshot, err := s.getOwned(ctx, s.repos.Deal, ownerID, id)
	if err != nil {
		return nil, err
	}

	address := fullAddress(snapshot)
	if address == "" {
		return nil, errors.ValidationError("deal has no address to look up", nil)
	}

	facts, err := s.provider.LookupProperty(ctx, address)
	if err != nil {
		return nil, err
	}

	var rent *propertydata.RentEstimate
	if snapshot.MonthlyRent == 0 {
		if rent, err = s.provider.RentEstimate(ctx, address); err != nil {
			return nil, err
		}
	}

	deal, err := s.modify(ctx, ownerID, id, func(deal *models.Deal) (bool, error) {
		if deal.SquareFeet == 0 {
			deal.SquareFeet = facts.SquareFeet
		}
		if deal.Bedrooms == 0 {
			deal.Bedrooms = facts.Bedrooms
		}
		if deal.Bathrooms == 0 {
			deal.Bathrooms = facts.Bathrooms
		}
		deal.HasPool = deal.HasPool || facts.HasPool
		if deal.MonthlyRent == 0 && rent != nil {
			deal.MonthlyRent = math.Max(rent.Rent, 0)
		}

		aiEstimate := 0.0
		if deal.AIRehabEstimate != nil {
			aiEstimate = *deal.AIRehabEstimate
		}
		deal.EffectiveRehab = ingest.EffectiveRehab(deal.Rehab, aiEstimate, deal.SquareFeet, s.floor())
		s.rescore(deal)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deal enriched", "deal_id", deal.ID, "square_feet", deal.SquareFeet, "monthly_rent", deal.MonthlyRent)
	return s.view(deal), nil
}

// applyForm copies normalized form values onto the deal and rescores it
func (s *dealServiceImpl) applyForm(deal *models.Deal, form ingest.DealForm) error {
	normalized, err := ingest.Normalize(form, s.opts)
	if err != nil {
		return err
	}

	status := deal.Status
	requested := models.DealStatus(strings.ToLower(strings.TrimSpace(form.Status)))
	if requested != "" {
		if !requested.Valid() {
			return errors.ValidationError("invalid status", nil).WithDetails(form.Status)
		}
		if requested == models.DealSold && normalized.Financials.SoldPrice <= 0 {
			return errors.ValidationError("a sold deal needs a sold price", nil)
		}
		status = requested
	}

	deal.Address = strings.TrimSpace(form.Address)
	deal.City = strings.TrimSpace(form.City)
	deal.State = strings.TrimSpace(form.State)
	deal.Zip = strings.TrimSpace(form.Zip)
	deal.Bedrooms = form.Bedrooms.Float64()
	deal.Bathrooms = form.Bathrooms.Float64()
	deal.SquareFeet = normalized.SquareFeet

	f := normalized.Financials
	deal.Price = f.PurchasePrice
	deal.ARV = f.AfterRepairValue
	deal.MonthlyRent = f.MonthlyRent
	deal.HasPool = f.HasPool
	deal.Rehab = normalized.UserRehab
	deal.EffectiveRehab = normalized.EffectiveRehab
	deal.AIRehabEstimate = nil
	if ai := form.AIRehabEstimate.Float64(); ai > 0 {
		deal.AIRehabEstimate = &ai
	}

	switch {
	case f.SoldPrice > 0:
		sold := f.SoldPrice
		deal.SoldPrice = &sold
		status = models.DealSold
	case status == models.DealSold:
		// clearing the sold price reopens the deal
		deal.SoldPrice = nil
		status = models.DealActive
	default:
		deal.SoldPrice = nil
	}
	deal.Status = status

	s.rescore(deal)
	return nil
}

// rescore recomputes the persisted score from the deal's effective financials.
// A deal that becomes incomplete drops out of the public feed.
func (s *dealServiceImpl) rescore(deal *models.Deal) {
	result := s.engine.Score(deal.Financials())
	deal.ApplyScore(result)
	if result.IsIncomplete() {
		deal.Published = false
	}
}

// modify loads one of the owner's deals, lets fn change it and writes it back
// in one transaction. fn returns false to skip the write.
func (s *dealServiceImpl) modify(ctx context.Context, ownerID, id uuid.UUID, fn func(deal *models.Deal) (bool, error)) (*models.Deal, error) {
	var out *models.Deal
	err := s.repos.Tx.WithTransaction(ctx, func(tx *repository.Repositories) error {
		deal, err := s.getOwned(ctx, tx.Deal, ownerID, id)
		if err != nil {
			return err
		}
		write, err := fn(deal)
		if err != nil {
			return err
		}
		if write {
			if err := tx.Deal.Update(ctx, deal); err != nil {
				return err
			}
		}
		out = deal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *dealServiceImpl) getOwned(ctx context.Context, deals repository.DealRepository, ownerID, id uuid.UUID) (*models.Deal, error) {
	deal, err := deals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// other owners' deals are reported as missing
	if !deal.IsOwnedBy(ownerID) {
		return nil, errors.NotFound("deal not found", nil)
	}
	return deal, nil
}

func (s *dealServiceImpl) view(deal *models.Deal) *DealView {
	live := s.engine.Score(deal.Financials())
	return &DealView{
		Deal:       *deal,
		Score:      live,
		ScoreStale: deal.ScorePolicyVersion != live.PolicyVersion,
	}
}

func (s *dealServiceImpl) views(deals []models.Deal) []DealView {
	out := make([]DealView, 0, len(deals))
	for i := range deals {
		out = append(out, *s.view(&deals[i]))
	}
	return out
}

func (s *dealServiceImpl) floor() float64 {
	if s.opts.MinRehabPerSqFt < 0 {
		return 0
	}
	return s.opts.MinRehabPerSqFt
}

func fullAddress(deal *models.Deal) string {
	var parts []string
	for _, p := range []string{deal.Address, deal.City, strings.TrimSpace(fmt.Sprintf("%s %s", deal.State, deal.Zip))} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
