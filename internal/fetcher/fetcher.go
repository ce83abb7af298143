// Package fetcher implements the per-filing acquisition protocol: idempotence
// check against a manifest, enumerate a filing folder, select files by
// extension, download, commit atomically, and record the result.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ultrarare-tech/secfetch/internal/entities"
	"github.com/ultrarare-tech/secfetch/internal/layout"
	"github.com/ultrarare-tech/secfetch/internal/manifest"
	"github.com/ultrarare-tech/secfetch/internal/model"
	"github.com/ultrarare-tech/secfetch/internal/urls"
)

// SelectionEmptyError is returned when a filing folder's enumerated files
// contain nothing matching the requested file types.
type SelectionEmptyError struct {
	Accession string
	FileTypes []string
}

func (e *SelectionEmptyError) Error() string {
	return fmt.Sprintf("fetcher: no files matched file_types=%v for accession %s", e.FileTypes, e.Accession)
}

// NormalizeFileTypes lowercases, dot-prefixes, dedups, and sorts a requested
// extension list. An empty result (including empty input) is a configuration
// error.
func NormalizeFileTypes(types []string) ([]string, error) {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		tt := strings.ToLower(strings.TrimSpace(t))
		if tt == "" {
			continue
		}
		if !strings.HasPrefix(tt, ".") {
			tt = "." + tt
		}
		set[tt] = struct{}{}
	}
	if len(set) == 0 {
		return nil, errors.New("fetcher: file_types must be non-empty (e.g. [\".xml\", \".htm\", \".html\"])")
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func matchFileType(name string, fileTypes []string) bool {
	n := strings.ToLower(name)
	for _, ext := range fileTypes {
		if strings.HasSuffix(n, ext) {
			return true
		}
	}
	return false
}

// client is the subset of httpclient.Client that Fetcher needs, kept as an
// interface so this package never depends on httpclient's concrete type.
type client interface {
	GetJSON(ctx context.Context, url string, v interface{}) error
	GetBytes(ctx context.Context, url string) ([]byte, error)
	GetHTMLListing(ctx context.Context, folderURL string) ([]string, error)
}

// Config holds the per-run settings a Fetcher needs beyond the client and
// manifest: the normalized file-type allow-list, the output format, and the
// ticker/CIK group label used when laying out directory-mode output.
type Config struct {
	FileTypes    []string
	OutputFormat string
	GroupLabel   string
}

// Fetcher downloads one filing at a time per spec.md's FilingFetcher.
type Fetcher struct {
	client   client
	dataDir  string
	cfg      Config
	manifest *manifest.Manifest
}

// New builds a Fetcher. cfg.FileTypes must already be normalized (see
// NormalizeFileTypes) and cfg.OutputFormat must be model.OutputFiles or
// model.OutputTar.
func New(c client, dataDir string, cfg Config, m *manifest.Manifest) (*Fetcher, error) {
	if cfg.OutputFormat != model.OutputFiles && cfg.OutputFormat != model.OutputTar {
		return nil, fmt.Errorf("fetcher: output_format must be %q or %q, got %q", model.OutputFiles, model.OutputTar, cfg.OutputFormat)
	}
	if len(cfg.FileTypes) == 0 {
		return nil, errors.New("fetcher: file_types must be non-empty")
	}
	return &Fetcher{client: c, dataDir: dataDir, cfg: cfg, manifest: m}, nil
}

// indexListing mirrors the shape of EDGAR's folder index.json.
type indexListing struct {
	Directory struct {
		Item []struct {
			Name string `json:"name"`
		} `json:"item"`
	} `json:"directory"`
}

type candidateFile struct {
	Name string
	URL  string
}

// enumerate lists a filing folder's files, preferring index.json and falling
// back to the HTML directory listing on any error or when index.json lists
// no named files (matches spec.md §4.3's
// fallback rule — EDGAR serves the same folder as both JSON and HTML).
func (f *Fetcher) enumerate(ctx context.Context, cik, accession string) ([]candidateFile, error) {
	folderURL := urls.FilingFolder(cik, accession)

	var listing indexListing
	if err := f.client.GetJSON(ctx, urls.FilingFolderIndexJSON(cik, accession), &listing); err == nil {
		out := make([]candidateFile, 0, len(listing.Directory.Item))
		for _, it := range listing.Directory.Item {
			if it.Name == "" {
				continue
			}
			out = append(out, candidateFile{Name: it.Name, URL: folderURL + it.Name})
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	names, err := f.client.GetHTMLListing(ctx, folderURL)
	if err != nil {
		return nil, err
	}
	out := make([]candidateFile, 0, len(names))
	for _, name := range names {
		out = append(out, candidateFile{Name: name, URL: folderURL + name})
	}
	return out, nil
}

// FetchOne runs the full 8-step protocol for a single filing row and always
// returns a FilingResult — errors are carried in the result, never returned,
// so a Scheduler fan-out never needs special-case error handling per task.
func (f *Fetcher) FetchOne(ctx context.Context, row model.FilingRow) model.FilingResult {
	accession := row.Accession()
	cik10 := entities.NormalizeCIK(row.CIK)

	outDir := layout.FilingDir(f.dataDir, row.FormType, cik10, accession, f.cfg.GroupLabel)
	tarPath := layout.FilingTarPath(f.dataDir, row.FormType, cik10, accession)

	result := model.FilingResult{
		Accession: accession,
		CIK:       row.CIK,
		FormType:  row.FormType,
		DateFiled: row.DateFiled,
	}

	if entry, ok := f.manifest.Get(accession); ok {
		switch f.cfg.OutputFormat {
		case model.OutputFiles:
			if entry.Strategy == model.StrategyIndex {
				if _, err := os.Stat(outDir); err == nil {
					result.Status = model.StatusSkipped
					result.OutputPath = outDir
					return result
				}
			}
		case model.OutputTar:
			if entry.Strategy == model.StrategyIndexTar {
				if _, err := os.Stat(tarPath); err == nil {
					result.Status = model.StatusSkipped
					result.OutputPath = tarPath
					return result
				}
			}
		}
	}

	tmpDir := outDir + ".tmp"
	tmpTar := strings.TrimSuffix(tarPath, ".tar") + ".tmp"

	cleanup := func() {
		os.RemoveAll(tmpDir)
		os.Remove(tmpTar)
	}

	fail := func(err error) model.FilingResult {
		cleanup()
		result.Status = model.StatusError
		result.Error = err.Error()
		return result
	}

	os.RemoveAll(tmpDir)
	os.Remove(tmpTar)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fail(err)
	}

	files, err := f.enumerate(ctx, row.CIK, accession)
	if err != nil {
		return fail(err)
	}

	var selected []candidateFile
	for _, c := range files {
		if matchFileType(c.Name, f.cfg.FileTypes) {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		return fail(&SelectionEmptyError{Accession: accession, FileTypes: f.cfg.FileTypes})
	}

	for _, c := range selected {
		content, err := f.client.GetBytes(ctx, c.URL)
		if err != nil {
			return fail(err)
		}
		if err := os.WriteFile(filepath.Join(tmpDir, c.Name), content, 0o644); err != nil {
			return fail(err)
		}
	}

	var strategy, outputPath string
	if f.cfg.OutputFormat == model.OutputFiles {
		if err := os.MkdirAll(filepath.Dir(outDir), 0o755); err != nil {
			return fail(err)
		}
		os.RemoveAll(outDir)
		if err := os.Rename(tmpDir, outDir); err != nil {
			return fail(err)
		}
		outputPath = outDir
		strategy = model.StrategyIndex
	} else {
		names := make([]string, 0, len(selected))
		for _, c := range selected {
			names = append(names, c.Name)
		}
		if err := writeTar(tmpTar, tarMetadata{
			Accession: accession,
			CIK:       cik10,
			FormType:  row.FormType,
			DateFiled: row.DateFiled,
			Files:     names,
		}, tmpDir); err != nil {
			return fail(err)
		}
		if err := os.MkdirAll(filepath.Dir(tarPath), 0o755); err != nil {
			return fail(err)
		}
		os.Remove(tarPath)
		if err := os.Rename(tmpTar, tarPath); err != nil {
			return fail(err)
		}
		os.RemoveAll(tmpDir)
		outputPath = tarPath
		strategy = model.StrategyIndexTar
	}

	f.manifest.Upsert(model.ManifestEntry{
		Accession: accession,
		FormType:  row.FormType,
		CIK:       cik10,
		DateFiled: row.DateFiled.Format("2006-01-02"),
		Strategy:  strategy,
	})

	result.Status = model.StatusDownloaded
	result.OutputPath = outputPath
	return result
}

