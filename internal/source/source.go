// Package source defines the per-source connectors that turn external
// files into RawRecords. Each adapter tags its records with a source
// identity and a fixed reliability tier: payroll rows outrank visa
// filings, which outrank scraped postings.
package source

import (
	"context"
	"io"

	"github.com/sells-group/labor-atlas/internal/model"
)

// Adapter parses one external source format into raw records. Every
// record carries a stable natural key so re-ingestion is idempotent.
type Adapter interface {
	// Descriptor returns the source identity and reliability metadata.
	Descriptor() model.Source

	// Parse reads the source payload and returns raw records. SourceID
	// on the returned records is left zero; the ingestor fills it in
	// after the source row is upserted.
	Parse(ctx context.Context, r io.Reader) ([]model.RawRecord, error)
}

// Seed sources. Weights follow the tier: payroll data is ground truth
// for the employers it covers, visa filings are verified but skewed
// toward sponsored roles, postings are noisy and often aspirational.
func SeedSources() []model.Source {
	return []model.Source{
		{Name: "state_payroll", Category: model.CategoryPayroll, Tier: model.TierA, Weight: 0.95},
		{Name: "visa_filings", Category: model.CategoryVisa, Tier: model.TierB, Weight: 0.8},
		{Name: "job_postings", Category: model.CategoryPosting, Tier: model.TierC, Weight: 0.5},
	}
}
