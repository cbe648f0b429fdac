package source

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
)

// visaRow mirrors the column layout of LCA disclosure files.
type visaRow struct {
	CaseNumber    string `csv:"CASE_NUMBER"`
	EmployerName  string `csv:"EMPLOYER_NAME"`
	JobTitle      string `csv:"JOB_TITLE"`
	WorksiteCity  string `csv:"WORKSITE_CITY"`
	WorksiteState string `csv:"WORKSITE_STATE"`
	WageRateFrom  string `csv:"WAGE_RATE_OF_PAY_FROM"`
	WageUnit      string `csv:"WAGE_UNIT_OF_PAY"`
	NAICSCode     string `csv:"NAICS_CODE"`
	DecisionDate  string `csv:"DECISION_DATE"`
}

// VisaAdapter parses visa-filing disclosure CSVs (LCA format).
type VisaAdapter struct{}

// NewVisaAdapter creates a visa disclosure adapter.
func NewVisaAdapter() *VisaAdapter { return &VisaAdapter{} }

// Descriptor returns the visa source identity.
func (a *VisaAdapter) Descriptor() model.Source {
	return model.Source{Name: "visa_filings", Category: model.CategoryVisa, Tier: model.TierB, Weight: 0.8}
}

// Parse decodes disclosure rows. The case number is the natural key.
// Rows without a case number or employer are skipped with a warning;
// everything else is kept as-is, noise included, for the resolver to
// sort out downstream.
func (a *VisaAdapter) Parse(ctx context.Context, r io.Reader) ([]model.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		return nil, eris.Wrap(err, "visa: read header")
	}

	var records []model.RawRecord
	var skipped int
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "visa: parse cancelled")
		}

		var row visaRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "visa: decode row")
		}

		if strings.TrimSpace(row.CaseNumber) == "" || strings.TrimSpace(row.EmployerName) == "" {
			skipped++
			continue
		}

		rec := model.RawRecord{
			NaturalKey:  strings.TrimSpace(row.CaseNumber),
			RawCompany:  row.EmployerName,
			RawLocation: joinCityState(row.WorksiteCity, row.WorksiteState),
			RawTitle:    row.JobTitle,
			RawIndustry: strings.TrimSpace(row.NAICSCode),
			RawSalary:   annualizeWage(row.WageRateFrom, row.WageUnit),
		}
		if ts := parseDate(row.DecisionDate); ts != nil {
			rec.ObservedAt = ts
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		zap.L().Warn("visa: skipped rows missing case number or employer", zap.Int("skipped", skipped))
	}
	return records, nil
}

// annualizeWage converts a wage amount plus pay unit into an annual
// figure. Returns nil when the amount is absent or unparseable; observed
// salaries are stored verbatim or not at all, never guessed.
func annualizeWage(amount, unit string) *float64 {
	amount = strings.TrimSpace(strings.Trim(strings.ReplaceAll(amount, ",", ""), "$ "))
	if amount == "" {
		return nil
	}
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil || v <= 0 {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "year", "yr", "annual", "annually":
		// already annual
	case "month", "mth", "monthly":
		v *= 12
	case "bi-weekly", "biweekly":
		v *= 26
	case "week", "weekly":
		v *= 52
	case "hour", "hr", "hourly":
		v *= 2080
	default:
		return nil
	}
	return &v
}

func joinCityState(city, state string) string {
	city = strings.TrimSpace(city)
	state = strings.TrimSpace(state)
	switch {
	case city == "" && state == "":
		return ""
	case city == "":
		return state
	case state == "":
		return city
	}
	return city + ", " + state
}

// parseDate tries the date layouts disclosure files use.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", "1/2/2006", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
