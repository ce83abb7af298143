// Package masterindex fetches and parses SEC EDGAR's quarterly master
// index, the authoritative per-quarter list of filings.
package masterindex

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ultrarare-tech/secfetch/internal/entities"
	"github.com/ultrarare-tech/secfetch/internal/model"
	"github.com/ultrarare-tech/secfetch/internal/urls"
)

// ParseError is returned when master.idx cannot be parsed.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("masterindex: %s", e.Reason)
}

const header = "CIK|Company Name|Form Type|Date Filed|Filename"

// URL returns the canonical URL for a quarter's master.idx.
func URL(year, quarter int) string {
	return urls.MasterIndex(year, quarter)
}

// CachePath returns the on-disk cache location for a quarter's master.idx.
func CachePath(dataDir string, year, quarter int) string {
	return filepath.Join(dataDir, "index", "master", strconv.Itoa(year), fmt.Sprintf("QTR%d", quarter), "master.idx")
}

// getter is the subset of httpclient.Client that Fetch needs, kept as an
// interface so masterindex never imports httpclient directly.
type getter interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Fetch downloads and caches the master index for (year, quarter). If the
// cache file already exists and force is false, no network call is made.
func Fetch(ctx context.Context, client getter, dataDir string, year, quarter int, force bool) (string, error) {
	cachePath := CachePath(dataDir, year, quarter)
	if !force {
		if _, err := os.Stat(cachePath); err == nil {
			return cachePath, nil
		}
	}

	content, err := client.GetBytes(ctx, URL(year, quarter))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(cachePath, content, 0o644); err != nil {
		return "", err
	}
	return cachePath, nil
}

// Load reads and parses a cached master.idx file.
func Load(path string) ([]model.FilingRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse consumes master.idx text and produces FilingRows. The parser enters
// data mode after the literal header line followed by a dash-rule line;
// blank lines in data mode are skipped; each data line must split on '|'
// into exactly five fields.
func Parse(r io.Reader) ([]model.FilingRow, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sawHeader := false
	inData := false
	var rows []model.FilingRow

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")

		if !inData {
			if strings.HasPrefix(line, header) {
				sawHeader = true
				continue
			}
			if sawHeader && strings.HasPrefix(strings.TrimSpace(line), "----") {
				inData = true
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) != 5 {
			return nil, &ParseError{Reason: fmt.Sprintf("unexpected master.idx row format: %q", line)}
		}

		dt, err := time.Parse("2006-01-02", strings.TrimSpace(parts[3]))
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid date in master.idx row: %q", parts[3])}
		}

		rows = append(rows, model.FilingRow{
			CIK:         entities.NormalizeCIK(parts[0]),
			CompanyName: strings.TrimSpace(parts[1]),
			FormType:    strings.TrimSpace(parts[2]),
			DateFiled:   dt,
			Filename:    strings.TrimSpace(parts[4]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &ParseError{Reason: "no rows parsed from master.idx (header not found?)"}
	}
	return rows, nil
}

// Dedup yields rows in input order, keeping only the first occurrence of
// each accession number.
func Dedup(rows []model.FilingRow) []model.FilingRow {
	seen := make(map[string]struct{}, len(rows))
	out := make([]model.FilingRow, 0, len(rows))
	for _, r := range rows {
		acc := r.Accession()
		if _, ok := seen[acc]; ok {
			continue
		}
		seen[acc] = struct{}{}
		out = append(out, r)
	}
	return out
}
