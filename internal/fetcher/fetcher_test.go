package fetcher

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "labor-atlas/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{})
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close()

	buf := make([]byte, 16)
	n, _ := body.Read(buf)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestHTTPFetcher_404IsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{})
	_, err := f.Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{MaxRetries: 3})
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, 2, calls)
}

func TestHTTPFetcher_DownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("file contents"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.csv")
	f := NewHTTPFetcher(HTTPOptions{})
	n, err := f.DownloadToFile(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len("file contents")), n)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(data))
}

func TestHTTPFetcher_CharsetDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=iso-8859-1")
		// "Café" in latin-1.
		w.Write([]byte{'C', 'a', 'f', 0xE9})
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{})
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close()

	buf := make([]byte, 16)
	n, _ := body.Read(buf)
	assert.Equal(t, "Café", string(buf[:n]))
}

func TestParseFTPURL(t *testing.T) {
	host, path, err := parseFTPURL("ftp://data.example.gov/payroll/2025.zip")
	require.NoError(t, err)
	assert.Equal(t, "data.example.gov:21", host)
	assert.Equal(t, "/payroll/2025.zip", path)

	_, _, err = parseFTPURL("https://example.com/x")
	assert.Error(t, err)

	_, _, err = parseFTPURL("ftp://example.com")
	assert.Error(t, err)
}

func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}

func TestExtractZIP(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "a.zip")
	writeTestZip(t, zipPath, map[string]string{
		"disclosures.csv": "a,b\n1,2\n",
		"readme.txt":      "notes",
	})

	paths, err := ExtractZIP(zipPath, dir)
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	data, err := os.ReadFile(filepath.Join(dir, "disclosures.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestExtractZIPSingle(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "one.zip")
	writeTestZip(t, zipPath, map[string]string{"lca_q1.csv": "x"})

	path, err := ExtractZIPSingle(zipPath, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lca_q1.csv"), path)
}

func TestExtractZIPSingle_Multiple(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "two.zip")
	writeTestZip(t, zipPath, map[string]string{"a.csv": "x", "b.csv": "y"})

	_, err := ExtractZIPSingle(zipPath, dir)
	assert.Error(t, err)
}

func TestExtractZIP_SlipGuard(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeTestZip(t, zipPath, map[string]string{"../../evil.txt": "nope"})

	paths, err := ExtractZIP(zipPath, dir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "evil.txt"), paths[0], "path flattened inside destDir")
}
