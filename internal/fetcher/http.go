package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// HTTPFetcher implements Fetcher using net/http with retry and per-host
// rate limiting. Government data hosts throttle aggressively, so the
// defaults stay conservative.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]*rate.Limiter
	fallback *rate.Limiter
}

// defaultRateLimiters returns per-host limiters for the labor data hosts
// the pipeline pulls from.
func defaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"www.dol.gov":           rate.NewLimiter(5, 5),
		"www.flcdatacenter.com": rate.NewLimiter(5, 5),
		"www.bls.gov":           rate.NewLimiter(10, 10),
		"download.bls.gov":      rate.NewLimiter(10, 10),
	}
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "labor-atlas/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: defaultRateLimiters(),
		fallback: rate.NewLimiter(20, 20),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return f.fallback
	}
	if lim, ok := f.limiters[u.Host]; ok {
		return lim
	}
	return f.fallback
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if err := f.limiterFor(req.URL.String()).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("fetch: http request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = eris.Errorf("fetch: status %d for %s", resp.StatusCode, req.URL)
			f.backoff(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, eris.Errorf("fetch: status %d for %s", resp.StatusCode, req.URL)
		}
		return resp, nil
	}
	return nil, eris.Wrapf(lastErr, "fetch: exhausted %d retries for %s", f.opts.MaxRetries, req.URL)
}

// backoff sleeps with exponential backoff plus jitter, respecting ctx.
func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) {
	base := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	jitter := time.Duration(rand.Int64N(int64(time.Second)))
	select {
	case <-time.After(base + jitter):
	case <-ctx.Done():
	}
}

// Download fetches the URL and returns the (charset-decoded) body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := decodeBody(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return body, nil
}

// DownloadToFile fetches the URL and writes it to the given path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch: create %s", path)
	}
	defer out.Close()

	n, err := io.Copy(out, body)
	if err != nil {
		return n, eris.Wrapf(err, "fetch: write %s", path)
	}
	return n, nil
}

// decodeBody wraps the response body with a charset decoder when the
// Content-Type declares a non-UTF-8 text encoding. State payroll exports
// still show up in latin-1 with some regularity.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	ct := resp.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "text/") {
		return resp.Body, nil
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return resp.Body, nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return resp.Body, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: unknown charset %q", charset)
	}
	return &decodedReader{r: enc.NewDecoder().Reader(resp.Body), c: resp.Body}, nil
}

type decodedReader struct {
	r io.Reader
	c io.Closer
}

func (d *decodedReader) Read(p []byte) (int, error) { return d.r.Read(p) }
func (d *decodedReader) Close() error               { return d.c.Close() }
