package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/rei-deal-drop/internal/errors"
	"github.com/ajharbinger/rei-deal-drop/internal/repository"
)

// ExportFormat specifies the format for exporting deals
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ContentType returns the MIME type for the format
func (f ExportFormat) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// DealExportService writes an owner's deals as a downloadable file
type DealExportService struct {
	deals    DealService
	now      func() time.Time
	pageSize int
}

// NewDealExportService creates a new export service on top of the deal service
func NewDealExportService(deals DealService) *DealExportService {
	return &DealExportService{deals: deals, now: time.Now, pageSize: repository.MaxListLimit}
}

var exportHeaders = []string{
	"id", "address", "city", "state", "zip", "status", "published",
	"price", "arv", "rehab", "effective_rehab", "monthly_rent", "has_pool", "sold_price",
	"deal_score", "verdict", "tier", "score_policy_version", "score_stale",
	"mao", "cap_rate_percent", "roi_percent", "created_at",
}

// ExportDeals returns the owner's deals matching filter in the given format.
// A zero filter.Limit exports every match; otherwise at most Limit deals from
// filter.Offset on.
func (s *DealExportService) ExportDeals(ctx context.Context, ownerID uuid.UUID, filter repository.DealFilter, format ExportFormat) ([]byte, error) {
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatJSON {
		return nil, errors.InvalidInput("unsupported export format", nil).WithDetails(string(format))
	}

	views, err := s.collect(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	if format == FormatJSON {
		return json.MarshalIndent(map[string]interface{}{
			"deals":       views,
			"count":       len(views),
			"exported_at": s.now().UTC(),
		}, "", "  ")
	}
	return exportCSV(views)
}

// collect pages through ListDeals until a short page
func (s *DealExportService) collect(ctx context.Context, ownerID uuid.UUID, filter repository.DealFilter) ([]DealView, error) {
	remaining := filter.Limit
	page := filter
	page.Offset = max(filter.Offset, 0)

	views := []DealView{}
	for {
		page.Limit = s.pageSize
		if remaining > 0 && remaining < page.Limit {
			page.Limit = remaining
		}

		batch, err := s.deals.ListDeals(ctx, ownerID, page)
		if err != nil {
			return nil, err
		}
		views = append(views, batch...)

		if len(batch) < page.Limit {
			return views, nil
		}
		if remaining > 0 {
			if remaining -= len(batch); remaining == 0 {
				return views, nil
			}
		}
		page.Offset += len(batch)
	}
}

func exportCSV(views []DealView) ([]byte, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)

	if err := writer.Write(exportHeaders); err != nil {
		return nil, err
	}

	for _, v := range views {
		mao, capRate, roi := "", "", ""
		if m := v.Score.Metrics; m != nil {
			if !v.Score.Verdict.IsRealized() {
				mao = formatAmount(m.MaximumAllowableOffer)
				capRate = formatAmount(m.CapRatePercent)
			}
			roi = formatAmount(m.ROIPercent)
		}
		sold := ""
		if v.SoldPrice != nil {
			sold = formatAmount(*v.SoldPrice)
		}

		row := []string{
			v.ID.String(),
			csvText(v.Address),
			csvText(v.City),
			csvText(v.State),
			csvText(v.Zip),
			string(v.Status),
			strconv.FormatBool(v.Published),
			formatAmount(v.Price),
			formatAmount(v.ARV),
			formatAmount(v.Rehab),
			formatAmount(v.EffectiveRehab),
			formatAmount(v.MonthlyRent),
			strconv.FormatBool(v.HasPool),
			sold,
			strconv.Itoa(v.DealScore),
			string(v.Verdict),
			string(v.Score.Tier),
			v.ScorePolicyVersion,
			strconv.FormatBool(v.ScoreStale),
			mao,
			capRate,
			roi,
			v.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return []byte(output.String()), nil
}

// csvText stops spreadsheets from evaluating user text as a formula
func csvText(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
