// Package secfetch is the public façade over SEC EDGAR's bulk filing
// acquisition pipeline: index fetch, filter, bounded-parallel download, and
// atomic on-disk commit, with an optional pre-packaged tar mirror path.
package secfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ultrarare-tech/secfetch/internal/contact"
	"github.com/ultrarare-tech/secfetch/internal/entities"
	"github.com/ultrarare-tech/secfetch/internal/fetcher"
	"github.com/ultrarare-tech/secfetch/internal/filter"
	formcatalog "github.com/ultrarare-tech/secfetch/internal/forms"
	"github.com/ultrarare-tech/secfetch/internal/httpclient"
	"github.com/ultrarare-tech/secfetch/internal/manifest"
	"github.com/ultrarare-tech/secfetch/internal/masterindex"
	"github.com/ultrarare-tech/secfetch/internal/mirror"
	"github.com/ultrarare-tech/secfetch/internal/model"
	"github.com/ultrarare-tech/secfetch/internal/ratelimit"
	"github.com/ultrarare-tech/secfetch/internal/scheduler"
	"github.com/ultrarare-tech/secfetch/internal/urls"
)

// ConfigError reports a request that is malformed before any network call is
// made. DownloadQuarter/DownloadLatest also return other run-level errors
// directly (unknown form types, a missing contact user-agent, a failed
// master-index or submissions fetch, an unreadable manifest); per-filing
// failures are carried in the result slice instead.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("secfetch: %s", e.Reason)
}

var defaultFileTypes = []string{".htm", ".html", ".xml", ".xbrl", ".pdf"}

// config is the resolved set of options a run executes with.
type config struct {
	dataDir        string
	fileTypes      []string
	includeAmended bool
	cik            []string
	ticker         []string
	concurrency    int
	concurrencySet bool
	userAgent      string
	manifestPath   string
	outputFormat   string
	observer       model.Observer
	tarProvider    string
	datamuleAPIKey string
	extract        bool
	refreshTickers bool
}

func newConfig(opts []Option) *config {
	c := &config{
		dataDir:      "data",
		fileTypes:    defaultFileTypes,
		outputFormat: model.OutputFiles,
		tarProvider:  mirror.ProviderDatamule,
		extract:      true,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures a DownloadQuarter/DownloadLatest run.
type Option func(*config)

func WithDataDir(dir string) Option          { return func(c *config) { c.dataDir = dir } }
func WithFileTypes(types []string) Option    { return func(c *config) { c.fileTypes = types } }
func WithIncludeAmended(b bool) Option       { return func(c *config) { c.includeAmended = b } }
func WithCIK(ciks ...string) Option          { return func(c *config) { c.cik = ciks } }
func WithTicker(tickers ...string) Option    { return func(c *config) { c.ticker = tickers } }
func WithUserAgent(ua string) Option         { return func(c *config) { c.userAgent = ua } }
func WithManifestPath(path string) Option    { return func(c *config) { c.manifestPath = path } }
func WithOutputFormat(format string) Option  { return func(c *config) { c.outputFormat = format } }
func WithObserver(o model.Observer) Option   { return func(c *config) { c.observer = o } }
func WithTarProvider(provider string) Option { return func(c *config) { c.tarProvider = provider } }
func WithDatamuleAPIKey(key string) Option   { return func(c *config) { c.datamuleAPIKey = key } }
func WithExtract(b bool) Option              { return func(c *config) { c.extract = b } }

// WithOnlineTickerRefresh replaces the packaged ticker->CIK snapshot with a
// live fetch of SEC's own company_tickers.json before resolving WithTicker,
// rather than relying on the bundled CSV.
func WithOnlineTickerRefresh(b bool) Option { return func(c *config) { c.refreshTickers = b } }

func WithConcurrency(n int) Option {
	return func(c *config) { c.concurrency = n; c.concurrencySet = true }
}

func (c *config) resolvedConcurrency() int {
	if c.concurrencySet && c.concurrency > 0 {
		return c.concurrency
	}
	if c.outputFormat == model.OutputTar && c.tarProvider == mirror.ProviderDatamule {
		return 20
	}
	return 6
}

func (c *config) buildClient() (*httpclient.Client, error) {
	ua := contact.ResolveUserAgent(c.userAgent, c.dataDir)
	limiter, err := ratelimit.New(ratelimit.DefaultRate)
	if err != nil {
		return nil, err
	}
	return httpclient.New(ua, limiter)
}

// DownloadQuarter downloads every filing in (year, quarter) matching forms
// (and, optionally, an entity filter from WithCIK/WithTicker), returning one
// FilingResult per matched filing. A non-nil error means no filing was
// attempted: a *ConfigError for invalid options, a *forms.ValidationError for
// unknown form types, a *httpclient.MissingUserAgentError, or an error
// fetching/parsing the master index or loading the manifest.
func DownloadQuarter(ctx context.Context, year, quarter int, forms []string, opts ...Option) ([]model.FilingResult, error) {
	if quarter < 1 || quarter > 4 {
		return nil, &ConfigError{Reason: fmt.Sprintf("quarter must be 1-4, got %d", quarter)}
	}
	if len(forms) == 0 {
		return nil, &ConfigError{Reason: "forms must be non-empty"}
	}

	cfg := newConfig(opts)
	normalizedTypes, err := fetcher.NormalizeFileTypes(cfg.fileTypes)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	if cfg.outputFormat != model.OutputFiles && cfg.outputFormat != model.OutputTar {
		return nil, &ConfigError{Reason: fmt.Sprintf("output_format must be %q or %q", model.OutputFiles, model.OutputTar)}
	}
	if cfg.tarProvider != mirror.ProviderDatamule && cfg.tarProvider != mirror.ProviderLocal {
		return nil, &ConfigError{Reason: (&mirror.ProviderError{Provider: cfg.tarProvider}).Error()}
	}

	rows, cachePath, err := loadMatchedRows(ctx, cfg, year, quarter, forms)
	if err != nil {
		return nil, err
	}

	if cfg.outputFormat == model.OutputTar && cfg.tarProvider == mirror.ProviderDatamule {
		return runMirror(ctx, cfg, rows, cachePath)
	}

	client, err := cfg.buildClient()
	if err != nil {
		return nil, err
	}
	return runLocal(ctx, cfg, client, rows, normalizedTypes, cachePath)
}

// DownloadLatest downloads only the most recent filing for a single entity,
// bypassing the quarterly index entirely via EDGAR's submissions API.
// WithCIK or WithTicker must resolve to at least one CIK; when several
// resolve, only the first in sorted order is used.
func DownloadLatest(ctx context.Context, opts ...Option) ([]model.FilingResult, error) {
	cfg := newConfig(opts)
	normalizedTypes, err := fetcher.NormalizeFileTypes(cfg.fileTypes)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	if cfg.outputFormat != model.OutputFiles && cfg.outputFormat != model.OutputTar {
		return nil, &ConfigError{Reason: fmt.Sprintf("output_format must be %q or %q", model.OutputFiles, model.OutputTar)}
	}
	if cfg.tarProvider != mirror.ProviderDatamule && cfg.tarProvider != mirror.ProviderLocal {
		return nil, &ConfigError{Reason: (&mirror.ProviderError{Provider: cfg.tarProvider}).Error()}
	}

	client, err := cfg.buildClient()
	if err != nil {
		return nil, err
	}
	if cfg.refreshTickers {
		if err := entities.RefreshFromCompanyTickers(ctx, client); err != nil {
			return nil, err
		}
	}

	cikSet := entities.ResolveCIKFilter(cfg.cik, cfg.ticker)
	if len(cikSet) == 0 {
		return nil, &ConfigError{Reason: "latest mode requires WithCIK or WithTicker to resolve to at least one entity"}
	}
	chosenCIK := firstSorted(cikSet)

	row, err := latestRowForEntity(ctx, client, chosenCIK)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	rows := []model.FilingRow{*row}

	if cfg.outputFormat == model.OutputTar && cfg.tarProvider == mirror.ProviderDatamule {
		return runMirror(ctx, cfg, rows, "")
	}
	return runLocal(ctx, cfg, client, rows, normalizedTypes, "")
}

func loadMatchedRows(ctx context.Context, cfg *config, year, quarter int, requestedForms []string) ([]model.FilingRow, string, error) {
	accepted, err := formcatalog.LoadAccepted(cfg.dataDir)
	if err != nil {
		return nil, "", err
	}
	validForms, err := formcatalog.Validate(requestedForms, accepted)
	if err != nil {
		return nil, "", err
	}

	client, err := cfg.buildClient()
	if err != nil {
		return nil, "", err
	}

	if cfg.refreshTickers {
		if err := entities.RefreshFromCompanyTickers(ctx, client); err != nil {
			return nil, "", err
		}
	}

	cachePath, err := masterindex.Fetch(ctx, client, cfg.dataDir, year, quarter, false)
	if err != nil {
		return nil, "", err
	}
	allRows, err := masterindex.Load(cachePath)
	if err != nil {
		return nil, "", err
	}

	flt := filter.New(validForms, cfg.includeAmended)
	cikAllow := entities.ResolveCIKFilter(cfg.cik, cfg.ticker)
	matched := filter.Apply(allRows, flt, cikAllow)
	return matched, cachePath, nil
}

func runLocal(ctx context.Context, cfg *config, client *httpclient.Client, rows []model.FilingRow, fileTypes []string, masterIndexCachePath string) ([]model.FilingResult, error) {
	m, err := openManifest(cfg)
	if err != nil {
		return nil, err
	}

	groupLabel := entities.ResolveOutputGroupLabel(cfg.cik, cfg.ticker)
	f, err := fetcher.New(client, cfg.dataDir, fetcher.Config{
		FileTypes:    fileTypes,
		OutputFormat: cfg.outputFormat,
		GroupLabel:   groupLabel,
	}, m)
	if err != nil {
		return nil, err
	}

	cacheDir := ""
	if masterIndexCachePath != "" {
		cacheDir = dirOf(masterIndexCachePath)
	}
	results := scheduler.Run(ctx, f, rows, cfg.resolvedConcurrency(), m, cfg.observer, cacheDir)
	return results, nil
}

// runMirror implements the tar_provider="datamule" path: rows are fetched as
// pre-built tars directly from the mirror, bypassing index.json enumeration
// entirely (file_types filtering does not apply in this mode).
func runMirror(ctx context.Context, cfg *config, rows []model.FilingRow, masterIndexCachePath string) ([]model.FilingResult, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	outDir := joinPath(cfg.dataDir, "filings_tar")

	mc := mirror.NewClient(cfg.datamuleAPIKey)
	results, err := mc.FetchTars(ctx, rows, outDir, cfg.resolvedConcurrency())
	if err != nil {
		return nil, err
	}

	if cfg.extract {
		groupLabel := entities.ResolveOutputGroupLabel(cfg.cik, cfg.ticker)
		results = mirror.ExtractAndCleanup(cfg.dataDir, outDir, groupLabel, results)
	}

	if masterIndexCachePath != "" && allSucceeded(results) {
		removeAll(dirOf(masterIndexCachePath))
	}
	return results, nil
}

func openManifest(cfg *config) (*manifest.Manifest, error) {
	path := cfg.manifestPath
	if path == "" {
		path = manifest.DefaultPath(cfg.dataDir)
	}
	m := manifest.New(path)
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func latestRowForEntity(ctx context.Context, client *httpclient.Client, cik string) (*model.FilingRow, error) {
	cik10 := entities.NormalizeCIK(cik)

	var payload struct {
		Name    string `json:"name"`
		Filings struct {
			Recent struct {
				AccessionNumber []string `json:"accessionNumber"`
				Form            []string `json:"form"`
				FilingDate      []string `json:"filingDate"`
			} `json:"recent"`
		} `json:"filings"`
	}
	if err := client.GetJSON(ctx, urls.Submissions(cik10), &payload); err != nil {
		return nil, err
	}

	recent := payload.Filings.Recent
	if len(recent.AccessionNumber) == 0 {
		return nil, nil
	}
	accession := recent.AccessionNumber[0]
	form := "UNKNOWN"
	if len(recent.Form) > 0 {
		form = recent.Form[0]
	}
	filedAt := time.Now()
	if len(recent.FilingDate) > 0 {
		if t, err := time.Parse("2006-01-02", recent.FilingDate[0]); err == nil {
			filedAt = t
		}
	}

	return &model.FilingRow{
		CIK:         cik10,
		CompanyName: payload.Name,
		FormType:    form,
		DateFiled:   filedAt,
		Filename:    fmt.Sprintf("edgar/data/%s/%s/%s.txt", trimLeadingZeros(cik10), urls.AccessionNoDash(accession), accession),
	}, nil
}

func firstSorted(set map[string]struct{}) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}

func allSucceeded(results []model.FilingResult) bool {
	for _, r := range results {
		if r.Status == model.StatusError {
			return false
		}
	}
	return true
}

// MarshalResults renders results as indented JSON, the shape cmd/secfetch
// prints to stdout.
func MarshalResults(results []model.FilingResult) ([]byte, error) {
	return json.MarshalIndent(results, "", "  ")
}
