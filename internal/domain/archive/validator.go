// Package archive inspects uploaded game archives for the entry point and manifest
// the publishing pipeline depends on.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
)

const (
	IndexFileName    = "index.html"
	ManifestFileName = "manifest.json"

	// LargeEntryThreshold is the per-entry size above which a warning is raised.
	LargeEntryThreshold = 10 * 1024 * 1024

	maxManifestBytes = 1 << 20
)

var bloatSegments = []string{"node_modules", ".git"}

// Manifest is the descriptor shipped inside the archive.
type Manifest struct {
	ID         string `json:"id"`
	Version    string `json:"version"`
	Title      string `json:"title,omitempty"`
	Runtime    string `json:"runtime,omitempty"`
	EntryPoint string `json:"entryPoint,omitempty"`
}

// Result is computed per validation attempt and never persisted as-is.
type Result struct {
	Valid       bool      `json:"valid"`
	Errors      []string  `json:"errors"`
	Warnings    []string  `json:"warnings"`
	HasIndex    bool      `json:"hasIndex"`
	HasManifest bool      `json:"hasManifest"`
	Manifest    *Manifest `json:"manifestData,omitempty"`
	EntryFile   string    `json:"entryFile,omitempty"`
	Root        string    `json:"root,omitempty"`
	EntryCount  int       `json:"entryCount"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) finish() Result {
	r.Valid = len(r.Errors) == 0
	return *r
}

// ValidateFile opens the archive at p and validates it.
func ValidateFile(p string) Result {
	f, err := os.Open(p)
	if err != nil {
		return unreadable(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return unreadable(err)
	}
	return Validate(f, info.Size())
}

// Validate inspects a zip archive. It never panics and never returns an error:
// every problem is reported through Result.
func Validate(r io.ReaderAt, size int64) Result {
	if r == nil {
		return unreadable(fmt.Errorf("no archive provided"))
	}

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return unreadable(err)
	}

	res := &Result{Errors: []string{}, Warnings: []string{}}
	var indexes, manifests []*zip.File
	bloatSeen := make(map[string]bool, len(bloatSegments))

	for _, f := range zr.File {
		name := normalizeName(f.Name)
		if name == "" {
			continue
		}

		for _, seg := range strings.Split(name, "/") {
			for _, bloat := range bloatSegments {
				if strings.EqualFold(seg, bloat) && !bloatSeen[bloat] {
					bloatSeen[bloat] = true
					res.addWarning("archive contains %s/ (consider excluding it)", bloat)
				}
			}
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		res.EntryCount++

		if f.UncompressedSize64 > LargeEntryThreshold {
			res.addWarning("large file %s (%s)", name, humanize.IBytes(f.UncompressedSize64))
		}

		depth := strings.Count(name, "/")
		if depth > 1 {
			continue
		}
		base := path.Base(name)
		switch {
		case strings.EqualFold(base, IndexFileName):
			indexes = append(indexes, f)
		case strings.EqualFold(base, ManifestFileName):
			manifests = append(manifests, f)
		}
	}

	if index := pickShallowest(indexes); index != nil {
		res.HasIndex = true
		res.EntryFile = normalizeName(index.Name)
		res.Root = path.Dir(res.EntryFile)
		if res.Root == "." {
			res.Root = ""
		}
	} else {
		res.addError("missing required entry point: %s", IndexFileName)
	}

	manifest := pickShallowest(manifests)
	if manifest == nil {
		res.addError("missing manifest: %s", ManifestFileName)
		return res.finish()
	}
	res.HasManifest = true

	parsed, err := readManifest(manifest)
	if err != nil {
		res.addError("manifest invalid: %v", err)
		return res.finish()
	}
	res.Manifest = parsed

	if strings.TrimSpace(parsed.ID) == "" {
		res.addError("manifest missing required field %q", "id")
	}
	if strings.TrimSpace(parsed.Version) == "" {
		res.addError("manifest missing required field %q", "version")
	}
	if strings.TrimSpace(parsed.Title) == "" {
		res.addWarning("manifest missing recommended field %q", "title")
	}

	return res.finish()
}

func unreadable(err error) Result {
	return Result{
		Valid:    false,
		Errors:   []string{fmt.Sprintf("cannot read archive: %v", err)},
		Warnings: []string{},
	}
}

func normalizeName(name string) string {
	n := strings.ReplaceAll(name, "\\", "/")
	n = strings.TrimPrefix(n, "./")
	n = strings.TrimLeft(n, "/")
	return strings.TrimSuffix(n, "/")
}

// pickShallowest prefers a root-level entry, then the lexically first one-level entry.
func pickShallowest(files []*zip.File) *zip.File {
	if len(files) == 0 {
		return nil
	}
	sorted := make([]*zip.File, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := normalizeName(sorted[i].Name), normalizeName(sorted[j].Name)
		da, db := strings.Count(a, "/"), strings.Count(b, "/")
		if da != db {
			return da < db
		}
		return a < b
	})
	return sorted[0]
}

func readManifest(f *zip.File) (*Manifest, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxManifestBytes))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
