// Package pipeline orchestrates ingestion: raw records in, observed
// jobs out, with low-confidence titles parked in the review queue.
package pipeline

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/resolve"
	"github.com/sells-group/labor-atlas/internal/source"
	"github.com/sells-group/labor-atlas/internal/store"
	"github.com/sells-group/labor-atlas/internal/title"
)

// Stats summarizes one ingestion pass over a source.
type Stats struct {
	Parsed       int `json:"parsed"`
	Created      int `json:"created"`
	Duplicates   int `json:"duplicates"`
	Observed     int `json:"observed"`
	Queued       int `json:"queued"`
	Unresolvable int `json:"unresolvable"`
}

func (s *Stats) add(o Stats) {
	s.Parsed += o.Parsed
	s.Created += o.Created
	s.Duplicates += o.Duplicates
	s.Observed += o.Observed
	s.Queued += o.Queued
	s.Unresolvable += o.Unresolvable
}

// Input pairs a source adapter with the payload it should parse.
type Input struct {
	Adapter source.Adapter
	Reader  io.Reader
}

// Ingestor runs raw records through resolution and classification into
// observed jobs.
type Ingestor struct {
	store         store.Store
	resolver      *resolve.Resolver
	classifier    *title.Classifier
	builder       *Builder
	maxConcurrent int
}

// SetMaxConcurrent caps parallel source ingestion. Zero means no cap.
func (in *Ingestor) SetMaxConcurrent(n int) { in.maxConcurrent = n }

// NewIngestor creates an ingestor.
func NewIngestor(st store.Store, resolver *resolve.Resolver, classifier *title.Classifier) *Ingestor {
	return &Ingestor{
		store:      st,
		resolver:   resolver,
		classifier: classifier,
		builder:    NewBuilder(st),
	}
}

// IngestAll runs each input in parallel. Sources are independent, so a
// failure in one does not block the others; the first error is returned
// after the group drains.
func (in *Ingestor) IngestAll(ctx context.Context, inputs []Input) (*Stats, error) {
	results := make([]Stats, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	if in.maxConcurrent > 0 {
		g.SetLimit(in.maxConcurrent)
	}
	for i, input := range inputs {
		g.Go(func() error {
			stats, err := in.IngestSource(gctx, input.Adapter, input.Reader)
			if err != nil {
				return err
			}
			results[i] = *stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &Stats{}
	for _, r := range results {
		total.add(r)
	}
	return total, nil
}

// IngestSource parses one payload with its adapter and processes every
// record. The source row is registered first so raw records can
// reference it.
func (in *Ingestor) IngestSource(ctx context.Context, adapter source.Adapter, r io.Reader) (*Stats, error) {
	src := adapter.Descriptor()
	if err := in.store.UpsertSource(ctx, &src); err != nil {
		return nil, err
	}

	records, err := adapter.Parse(ctx, r)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse source %s", src.Name)
	}

	for i := range records {
		records[i].SourceID = src.ID
	}

	stats := &Stats{Parsed: len(records)}
	if bulk, ok := in.store.(store.BulkRawRecordUpserter); ok && len(records) >= bulkBatchSize {
		if err := in.ingestBulk(ctx, records, bulk, stats); err != nil {
			return nil, err
		}
	} else {
		for i := range records {
			if err := in.processRecord(ctx, &src, &records[i], stats); err != nil {
				return nil, err
			}
		}
	}

	zap.L().Info("pipeline: source ingested",
		zap.String("source", src.Name),
		zap.Int("parsed", stats.Parsed),
		zap.Int("created", stats.Created),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("observed", stats.Observed),
		zap.Int("queued", stats.Queued),
		zap.Int("unresolvable", stats.Unresolvable),
	)
	return stats, nil
}

// bulkBatchSize is the record count at which stores supporting it take
// the temp-table COPY path instead of row-at-a-time upserts.
const bulkBatchSize = 1000

// ingestBulk loads the whole batch in one store call, then classifies
// only the rows that turned out to be new.
func (in *Ingestor) ingestBulk(ctx context.Context, records []model.RawRecord, bulk store.BulkRawRecordUpserter, stats *Stats) error {
	created, err := bulk.BulkUpsertRawRecords(ctx, records)
	if err != nil {
		return err
	}
	stats.Created = len(created)
	stats.Duplicates = len(records) - len(created)

	for i := range created {
		queued, err := in.classifyAndBuild(ctx, &created[i], stats)
		if err != nil {
			return err
		}
		if queued {
			stats.Queued++
		}
	}
	return nil
}

func (in *Ingestor) processRecord(ctx context.Context, src *model.Source, rec *model.RawRecord, stats *Stats) error {
	created, err := in.store.UpsertRawRecord(ctx, rec)
	if err != nil {
		return err
	}
	if !created {
		// Same source, same natural key: the record is already in the
		// system and its observation, if any, already exists.
		stats.Duplicates++
		zap.L().Debug("pipeline: duplicate raw record",
			zap.String("source", src.Name),
			zap.String("natural_key", rec.NaturalKey),
		)
		return nil
	}
	stats.Created++

	queued, err := in.classifyAndBuild(ctx, rec, stats)
	if err != nil {
		return err
	}
	if queued {
		stats.Queued++
	}
	return nil
}

// classifyAndBuild classifies the record's title and, when confident,
// resolves entities and builds the observation. Returns true when the
// record was parked in the review queue instead.
func (in *Ingestor) classifyAndBuild(ctx context.Context, rec *model.RawRecord, stats *Stats) (bool, error) {
	reason := ""
	switch {
	case strings.TrimSpace(rec.RawTitle) == "":
		reason = model.ReasonEmptyTitle
	default:
		cls := in.classifier.Classify(rec.RawTitle)
		if in.classifier.BelowThreshold(cls) {
			reason = model.ReasonLowConfidenceTitle
		} else {
			return false, in.buildObservation(ctx, rec, cls, stats)
		}
	}

	_, err := in.store.CreateReviewItem(ctx, &model.ReviewQueueItem{
		RawRecordID: rec.ID,
		Reason:      reason,
		RawTitle:    rec.RawTitle,
	})
	if err != nil {
		return false, err
	}
	zap.L().Info("pipeline: record queued for review",
		zap.Int64("raw_record_id", rec.ID),
		zap.String("reason", reason),
		zap.String("raw_title", rec.RawTitle),
	)
	return true, nil
}

func (in *Ingestor) buildObservation(ctx context.Context, rec *model.RawRecord, cls title.Classification, stats *Stats) error {
	res, err := in.resolver.Resolve(ctx, rec.RawCompany, rec.RawLocation)
	if err != nil {
		if eris.Is(err, resolve.ErrEmptyCompany) {
			stats.Unresolvable++
			zap.L().Warn("pipeline: record without resolvable company",
				zap.Int64("raw_record_id", rec.ID),
				zap.String("raw_company", rec.RawCompany),
			)
			return nil
		}
		return err
	}
	if rec.RawIndustry != "" {
		if err := in.resolver.SetIndustryIfEmpty(ctx, res.CompanyID, rec.RawIndustry); err != nil {
			return err
		}
	}

	if _, err := in.builder.Build(ctx, rec, res, &cls); err != nil {
		return err
	}
	stats.Observed++
	return nil
}
