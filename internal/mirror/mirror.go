// Package mirror implements the datamule tar-mirror collaborator: it fetches
// a pre-built tar per accession directly (bypassing index.json enumeration)
// and optionally unpacks it into the canonical filing layout.
package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ultrarare-tech/secfetch/internal/entities"
	"github.com/ultrarare-tech/secfetch/internal/layout"
	"github.com/ultrarare-tech/secfetch/internal/model"
	"github.com/ultrarare-tech/secfetch/internal/urls"
)

// ProviderError reports an invalid tar provider selection.
type ProviderError struct {
	Provider string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mirror: tar_provider must be \"datamule\" or \"local\", got %q", e.Provider)
}

const (
	ProviderDatamule = "datamule"
	ProviderLocal    = "local"
)

// Client fetches datamule mirror tars over plain net/http: this endpoint is
// unauthenticated-by-default, bearer-optional, and outside EDGAR's own rate
// policy, so it deliberately does not share internal/httpclient's EDGAR
// retry/backoff contract.
type Client struct {
	httpClient *http.Client
	apiKey     string
}

// NewClient builds a mirror Client. apiKey may be empty; when set it is sent
// as a bearer token.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
	}
}

// FetchTars downloads one tar per row into outDir, skipping rows whose tar
// already exists, bounded by concurrency concurrent transfers.
func (c *Client) FetchTars(ctx context.Context, rows []model.FilingRow, outDir string, concurrency int) ([]model.FilingResult, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]model.FilingResult, len(rows))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, row := range rows {
		i, row := i, row
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = c.fetchOne(ctx, row, outDir)
		}()
	}
	wg.Wait()
	return results, nil
}

func (c *Client) fetchOne(ctx context.Context, row model.FilingRow, outDir string) model.FilingResult {
	accession := row.Accession()
	tarPath := filepath.Join(outDir, urls.AccessionNoDash(accession)+".tar")

	result := model.FilingResult{
		Accession: accession,
		CIK:       row.CIK,
		FormType:  row.FormType,
		DateFiled: row.DateFiled,
	}

	if _, err := os.Stat(tarPath); err == nil {
		result.Status = model.StatusSkipped
		result.OutputPath = tarPath
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urls.MirrorTar(accession), nil)
	if err != nil {
		result.Status = model.StatusError
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Status = model.StatusError
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		result.Status = model.StatusError
		result.Error = fmt.Sprintf("mirror: %s returned status %d", req.URL, resp.StatusCode)
		return result
	}

	f, err := os.Create(tarPath)
	if err != nil {
		result.Status = model.StatusError
		result.Error = err.Error()
		return result
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tarPath)
		result.Status = model.StatusError
		result.Error = err.Error()
		return result
	}
	f.Close()

	result.Status = model.StatusDownloaded
	result.OutputPath = tarPath
	return result
}

// isAccessionDirComponent reports whether a leading path component is a dash-less
// 18- or 20-digit accession number, the shape the datamule tars nest their
// content under.
func isAccessionDirComponent(name string) bool {
	noDash := strings.ReplaceAll(name, "-", "")
	if len(noDash) != 18 && len(noDash) != 20 {
		return false
	}
	for _, r := range noDash {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ExtractAndCleanup unpacks each non-error result's tar into the canonical
// FilingDir (using groupLabel for the ticker/CIK grouping key exactly like
// FilingFetcher's own directory-mode commit), rewrites result.OutputPath to
// the extracted directory, deletes the source tar, and finally removes
// tarDir itself. Errors extracting an individual tar degrade that single
// result to an error rather than aborting the batch.
func ExtractAndCleanup(dataDir, tarDir, groupLabel string, results []model.FilingResult) []model.FilingResult {
	out := make([]model.FilingResult, len(results))
	for i, r := range results {
		if r.Status == model.StatusError || r.OutputPath == "" || !strings.EqualFold(filepath.Ext(r.OutputPath), ".tar") {
			out[i] = r
			continue
		}
		cik10 := entities.NormalizeCIK(r.CIK)
		dest := layout.FilingDir(dataDir, r.FormType, cik10, r.Accession, groupLabel)
		if err := extractTar(r.OutputPath, dest); err != nil {
			r.Status = model.StatusError
			r.Error = err.Error()
			out[i] = r
			continue
		}
		os.Remove(r.OutputPath)
		r.OutputPath = dest
		out[i] = r
	}
	os.RemoveAll(tarDir)
	return out
}
