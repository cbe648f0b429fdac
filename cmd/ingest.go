package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/fetcher"
	"github.com/sells-group/labor-atlas/internal/pipeline"
	"github.com/sells-group/labor-atlas/internal/resolve"
	"github.com/sells-group/labor-atlas/internal/source"
	"github.com/sells-group/labor-atlas/internal/store"
	"github.com/sells-group/labor-atlas/internal/title"
)

var (
	ingestSource string
	ingestFiles  []string
	ingestURLs   []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest source files into the observation base",
	Long:  "Parses payroll, visa, or posting data into raw records, resolves companies and titles, and builds observed jobs. Re-ingesting the same records is a no-op.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(ingestFiles) == 0 && len(ingestURLs) == 0 {
			return eris.New("at least one --file or --url is required")
		}
		adapter, err := adapterFor(ingestSource)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ingestor, err := buildIngestor(ctx, st)
		if err != nil {
			return err
		}

		var inputs []pipeline.Input
		var closers []io.Closer
		defer func() {
			for _, c := range closers {
				_ = c.Close()
			}
		}()

		for _, path := range ingestFiles {
			f, err := os.Open(path)
			if err != nil {
				return eris.Wrapf(err, "open %s", path)
			}
			closers = append(closers, f)
			inputs = append(inputs, pipeline.Input{Adapter: adapter, Reader: f})
		}
		for _, url := range ingestURLs {
			r, err := fetchSource(ctx, url)
			if err != nil {
				return err
			}
			closers = append(closers, r)
			inputs = append(inputs, pipeline.Input{Adapter: adapter, Reader: r})
		}

		stats, err := ingestor.IngestAll(ctx, inputs)
		if err != nil {
			return err
		}

		fmt.Printf("Parsed %d records: %d new, %d duplicates, %d observed jobs, %d queued for review, %d unresolvable\n",
			stats.Parsed, stats.Created, stats.Duplicates, stats.Observed, stats.Queued, stats.Unresolvable)
		return nil
	},
}

func adapterFor(name string) (source.Adapter, error) {
	switch name {
	case "state_payroll", "payroll":
		return source.NewPayrollAdapter(), nil
	case "visa_filings", "visa":
		return source.NewVisaAdapter(), nil
	case "job_postings", "postings":
		return source.NewPostingAdapter(), nil
	default:
		return nil, eris.Errorf("unknown source %q (want state_payroll, visa_filings, or job_postings)", name)
	}
}

// buildIngestor wires the resolver and title classifier onto the store.
// Title rules come from the store so rule-table extensions apply without
// a rebuild; an unmigrated store falls back to the defaults.
func buildIngestor(ctx context.Context, st store.Store) (*pipeline.Ingestor, error) {
	rules, err := st.ListTitleRules(ctx)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		rules = title.DefaultRules()
	}
	classifier, err := title.NewClassifier(rules, cfg.Title.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	resolver := resolve.NewResolver(st, cfg.Resolve.FuzzyThreshold)
	ingestor := pipeline.NewIngestor(st, resolver, classifier)
	ingestor.SetMaxConcurrent(cfg.Ingest.MaxConcurrentSources)
	return ingestor, nil
}

// fetchSource downloads a source URL, extracting single-file zip
// archives the disclosure sites publish.
func fetchSource(ctx context.Context, url string) (io.ReadCloser, error) {
	var f fetcher.Fetcher
	if strings.HasPrefix(url, "ftp://") {
		f = fetcher.NewFTPFetcher(time.Duration(cfg.Fetch.TimeoutSecs) * time.Second)
	} else {
		f = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
		})
	}

	if !strings.HasSuffix(strings.ToLower(url), ".zip") {
		return f.Download(ctx, url)
	}

	if err := os.MkdirAll(cfg.Fetch.TempDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "create temp dir")
	}
	archive := filepath.Join(cfg.Fetch.TempDir, filepath.Base(url))
	n, err := f.DownloadToFile(ctx, url, archive)
	if err != nil {
		return nil, err
	}
	zap.L().Info("ingest: downloaded archive",
		zap.String("url", url),
		zap.Int64("bytes", n),
	)

	extracted, err := fetcher.ExtractZIPSingle(archive, cfg.Fetch.TempDir)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(extracted)
	if err != nil {
		return nil, eris.Wrapf(err, "open extracted %s", extracted)
	}
	return file, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source adapter: state_payroll, visa_filings, or job_postings")
	ingestCmd.Flags().StringSliceVar(&ingestFiles, "file", nil, "local source file (repeatable)")
	ingestCmd.Flags().StringSliceVar(&ingestURLs, "url", nil, "remote source file (repeatable)")
	ingestCmd.MarkFlagRequired("source") //nolint:errcheck
	rootCmd.AddCommand(ingestCmd)
}
