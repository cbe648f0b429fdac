// Package fetcher retrieves source files for ingestion: visa disclosure
// archives and posting feeds over HTTP, payroll drops over FTP, with zip
// extraction for the archives both arrive in.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote source files.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path.
	// Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
