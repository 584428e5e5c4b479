package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/rei-deal-drop/internal/database"
	"github.com/ajharbinger/rei-deal-drop/internal/errors"
	"github.com/ajharbinger/rei-deal-drop/internal/models"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
)

const dealColumns = `id, owner_id, address, city, state, zip, square_feet, bedrooms, bathrooms,
	price, rehab, ai_rehab_estimate, effective_rehab, arv, monthly_rent, has_pool,
	status, sold_price, published, deal_score, verdict, score_policy_version,
	revision, created_at, updated_at`

// dealRepository implements DealRepository
type dealRepository struct {
	db      dbExecutor
	dialect database.Dialect
}

// NewDealRepository creates a new deal repository
func NewDealRepository(db dbExecutor, dialect database.Dialect) DealRepository {
	return &dealRepository{db: db, dialect: dialect}
}

// Create inserts a deal, assigning its ID and timestamps
func (r *dealRepository) Create(ctx context.Context, deal *models.Deal) error {
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	now := time.Now().UTC()
	deal.CreatedAt = now
	deal.UpdatedAt = now
	if deal.Status == "" {
		deal.Status = models.DealActive
	}

	query := r.rebind(`
		INSERT INTO deals (` + dealColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		deal.ID, deal.OwnerID, deal.Address, deal.City, deal.State, deal.Zip,
		deal.SquareFeet, deal.Bedrooms, deal.Bathrooms,
		deal.Price, deal.Rehab, nullFloat(deal.AIRehabEstimate), deal.EffectiveRehab,
		deal.ARV, deal.MonthlyRent, deal.HasPool,
		string(deal.Status), nullFloat(deal.SoldPrice), deal.Published,
		deal.DealScore, string(deal.Verdict), deal.ScorePolicyVersion,
		deal.Revision, deal.CreatedAt, deal.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errors.Conflict("deal already exists", err)
		}
		return errors.DatabaseError("failed to create deal", err)
	}
	return nil
}

// GetByID retrieves a deal by ID
func (r *dealRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	query := r.rebind(`SELECT ` + dealColumns + ` FROM deals WHERE id = ?`)

	deal, err := scanDeal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("deal not found", err)
		}
		return nil, errors.DatabaseError("failed to get deal", err)
	}
	return deal, nil
}

// Update writes every mutable column of a deal. The write only lands if the
// stored revision still equals deal.Revision; on success the revision is bumped
// in both the row and the struct.
func (r *dealRepository) Update(ctx context.Context, deal *models.Deal) error {
	updatedAt := time.Now().UTC()

	query := r.rebind(`
		UPDATE deals SET
			address = ?, city = ?, state = ?, zip = ?,
			square_feet = ?, bedrooms = ?, bathrooms = ?,
			price = ?, rehab = ?, ai_rehab_estimate = ?, effective_rehab = ?,
			arv = ?, monthly_rent = ?, has_pool = ?,
			status = ?, sold_price = ?, published = ?,
			deal_score = ?, verdict = ?, score_policy_version = ?,
			revision = revision + 1, updated_at = ?
		WHERE id = ? AND revision = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		deal.Address, deal.City, deal.State, deal.Zip,
		deal.SquareFeet, deal.Bedrooms, deal.Bathrooms,
		deal.Price, deal.Rehab, nullFloat(deal.AIRehabEstimate), deal.EffectiveRehab,
		deal.ARV, deal.MonthlyRent, deal.HasPool,
		string(deal.Status), nullFloat(deal.SoldPrice), deal.Published,
		deal.DealScore, string(deal.Verdict), deal.ScorePolicyVersion,
		updatedAt,
		deal.ID, deal.Revision,
	)
	if err != nil {
		return errors.DatabaseError("failed to update deal", err)
	}
	if err := r.requireWritten(ctx, result, deal.ID); err != nil {
		return err
	}

	deal.Revision++
	deal.UpdatedAt = updatedAt
	return nil
}

// Delete removes a deal
func (r *dealRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM deals WHERE id = ?`), id)
	if err != nil {
		return errors.DatabaseError("failed to delete deal", err)
	}
	return requireAffected(result, "deal not found")
}

// List returns deals matching the filter, ordered by persisted score unless
// another sort is requested
func (r *dealRepository) List(ctx context.Context, filter DealFilter) ([]models.Deal, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, *filter.OwnerID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.MinScore != nil {
		where = append(where, "deal_score >= ?")
		args = append(args, *filter.MinScore)
	}
	if filter.PublishedOnly {
		where = append(where, "published = ?")
		args = append(args, true)
	}

	query := `SELECT ` + dealColumns + ` FROM deals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderBy(filter.Sort) + " LIMIT ? OFFSET ?"
	args = append(args, clampLimit(filter.Limit), max(filter.Offset, 0))

	return r.query(ctx, query, args...)
}

// ListPublished returns the public feed ordered by score
func (r *dealRepository) ListPublished(ctx context.Context, limit, offset int) ([]models.Deal, error) {
	return r.List(ctx, DealFilter{
		PublishedOnly: true,
		Sort:          SortScoreDesc,
		Limit:         limit,
		Offset:        offset,
	})
}

// ListStale returns deals scored under a different policy version, oldest first
func (r *dealRepository) ListStale(ctx context.Context, policyVersion string, limit int) ([]models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals
		WHERE score_policy_version <> ?
		ORDER BY updated_at ASC, id ASC
		LIMIT ?`
	return r.query(ctx, query, policyVersion, clampLimit(limit))
}

// UpdateScore stores a recomputed score without touching the deal's inputs.
// revision is the one the score was computed from; if the deal has been edited
// since, nothing is written and a Conflict is returned.
func (r *dealRepository) UpdateScore(ctx context.Context, id uuid.UUID, revision, score int, verdict scoring.Verdict, policyVersion string) error {
	query := r.rebind(`
		UPDATE deals SET deal_score = ?, verdict = ?, score_policy_version = ?, updated_at = ?
		WHERE id = ? AND revision = ?
	`)

	result, err := r.db.ExecContext(ctx, query, score, string(verdict), policyVersion, time.Now().UTC(), id, revision)
	if err != nil {
		return errors.DatabaseError("failed to update deal score", err)
	}
	return r.requireWritten(ctx, result, id)
}

// requireWritten tells a missing deal apart from one whose revision moved on
func (r *dealRepository) requireWritten(ctx context.Context, result sql.Result, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("failed to get rows affected", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var one int
	err = r.db.QueryRowContext(ctx, r.rebind(`SELECT 1 FROM deals WHERE id = ?`), id).Scan(&one)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return errors.NotFound("deal not found", nil)
	case err != nil:
		return errors.DatabaseError("failed to check deal", err)
	}
	return errors.Conflict("deal was modified concurrently", nil)
}

func (r *dealRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Deal, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, errors.DatabaseError("failed to query deals", err)
	}
	defer rows.Close()

	deals := []models.Deal{}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, errors.DatabaseError("failed to scan deal", err)
		}
		deals = append(deals, *deal)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("failed to iterate deals", err)
	}
	return deals, nil
}

func (r *dealRepository) rebind(query string) string {
	return database.Rebind(r.dialect, query)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeal(row rowScanner) (*models.Deal, error) {
	var (
		deal      models.Deal
		aiRehab   sql.NullFloat64
		soldPrice sql.NullFloat64
		status    string
		verdict   string
	)

	err := row.Scan(
		&deal.ID, &deal.OwnerID, &deal.Address, &deal.City, &deal.State, &deal.Zip,
		&deal.SquareFeet, &deal.Bedrooms, &deal.Bathrooms,
		&deal.Price, &deal.Rehab, &aiRehab, &deal.EffectiveRehab,
		&deal.ARV, &deal.MonthlyRent, &deal.HasPool,
		&status, &soldPrice, &deal.Published,
		&deal.DealScore, &verdict, &deal.ScorePolicyVersion,
		&deal.Revision, &deal.CreatedAt, &deal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	deal.Status = models.DealStatus(status)
	deal.Verdict = scoring.Verdict(verdict)
	if aiRehab.Valid {
		deal.AIRehabEstimate = &aiRehab.Float64
	}
	if soldPrice.Valid {
		deal.SoldPrice = &soldPrice.Float64
	}
	return &deal, nil
}

func orderBy(sort DealSort) string {
	switch sort {
	case SortCreatedDesc:
		return "created_at DESC, id ASC"
	case SortPriceAsc:
		return "price ASC, id ASC"
	default:
		return "deal_score DESC, created_at DESC, id ASC"
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func requireAffected(result sql.Result, notFound string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.NotFound(notFound, nil)
	}
	return nil
}
