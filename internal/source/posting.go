package source

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
)

// postingRow mirrors the scraped job-posting feed layout.
type postingRow struct {
	PostingID string `csv:"posting_id"`
	Company   string `csv:"company"`
	Title     string `csv:"title"`
	Location  string `csv:"location"`
	SalaryMin string `csv:"salary_min"`
	SalaryMax string `csv:"salary_max"`
	Industry  string `csv:"industry"`
	PostedAt  string `csv:"posted_at"`
}

// PostingAdapter parses scraped job-posting CSV feeds. Lowest
// reliability tier: postings describe intent, not employment.
type PostingAdapter struct{}

// NewPostingAdapter creates a posting feed adapter.
func NewPostingAdapter() *PostingAdapter { return &PostingAdapter{} }

// Descriptor returns the posting source identity.
func (a *PostingAdapter) Descriptor() model.Source {
	return model.Source{Name: "job_postings", Category: model.CategoryPosting, Tier: model.TierC, Weight: 0.5}
}

// Parse decodes posting rows. The feed's posting id is the natural key.
// When a salary range is advertised, the midpoint is recorded; a single
// bound is taken as-is.
func (a *PostingAdapter) Parse(ctx context.Context, r io.Reader) ([]model.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		return nil, eris.Wrap(err, "posting: read header")
	}

	var records []model.RawRecord
	var skipped int
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "posting: parse cancelled")
		}

		var row postingRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "posting: decode row")
		}

		if strings.TrimSpace(row.PostingID) == "" || strings.TrimSpace(row.Company) == "" {
			skipped++
			continue
		}

		rec := model.RawRecord{
			NaturalKey:  strings.TrimSpace(row.PostingID),
			RawCompany:  row.Company,
			RawLocation: row.Location,
			RawTitle:    row.Title,
			RawIndustry: strings.TrimSpace(row.Industry),
			RawSalary:   postingSalary(row.SalaryMin, row.SalaryMax),
		}
		if ts := parseDate(row.PostedAt); ts != nil {
			rec.ObservedAt = ts
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		zap.L().Warn("posting: skipped rows missing posting id or company", zap.Int("skipped", skipped))
	}
	return records, nil
}

func postingSalary(minStr, maxStr string) *float64 {
	lo := parsePay(minStr)
	hi := parsePay(maxStr)
	switch {
	case lo != nil && hi != nil:
		mid := (*lo + *hi) / 2
		return &mid
	case lo != nil:
		return lo
	case hi != nil:
		return hi
	}
	return nil
}
