package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all files from a ZIP archive into destDir.
// Returns the extracted file paths. Directory entries and paths that
// would escape destDir are skipped.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close()

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// ExtractZIPSingle extracts the sole file from an archive that contains
// exactly one file. Visa disclosure quarters ship this way.
func ExtractZIPSingle(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close()

	var files []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}
	if len(files) != 1 {
		return "", eris.Errorf("zip: expected exactly 1 file in %s, found %d", zipPath, len(files))
	}
	return extractZIPEntry(files[0], destDir)
}

func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	if f.FileInfo().IsDir() {
		return "", nil
	}

	// Guard against zip-slip: flatten to the base name.
	name := filepath.Base(filepath.Clean(f.Name))
	if name == "." || name == ".." || strings.TrimSpace(name) == "" {
		return "", nil
	}
	dest := filepath.Join(destDir, name)

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "zip: create %s", dest)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrapf(err, "zip: extract %s", f.Name)
	}
	return dest, nil
}
