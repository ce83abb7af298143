// Package entities normalizes entity identifiers (CIKs) and resolves
// ticker symbols to their CIK set through a packaged mapping.
package entities

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/ultrarare-tech/secfetch/internal/urls"
)

//go:embed resources/tickers.csv
var packagedTickers []byte

var (
	tickerMapOnce sync.Once
	tickerMapMu   sync.RWMutex
	tickerMap     map[string]map[string]struct{}
)

// NormalizeCIK strips whitespace and, if the value is purely numeric,
// zero-pads it to width 10. Non-numeric values are returned zero-padded
// on the left to width 10 as well, matching the Python reference's
// str.zfill(10) fallback.
func NormalizeCIK(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return ""
	}
	if _, err := strconv.Atoi(s); err == nil {
		n, _ := strconv.Atoi(s)
		return zeroPad(strconv.Itoa(n), 10)
	}
	return zeroPad(s, 10)
}

func zeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// loadTickerMap parses the packaged ticker->CIK-set CSV once, process-wide,
// on first access. RefreshFromCompanyTickers may later replace it wholesale
// with a live fetch; both paths go through tickerMapMu.
func loadTickerMap() map[string]map[string]struct{} {
	tickerMapOnce.Do(func() {
		tickerMapMu.Lock()
		tickerMap = parseTickerCSV(packagedTickers)
		tickerMapMu.Unlock()
	})
	tickerMapMu.RLock()
	defer tickerMapMu.RUnlock()
	return tickerMap
}

func parseTickerCSV(raw []byte) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{})
	r := csv.NewReader(bytes.NewReader(raw))
	header, err := r.Read()
	if err != nil {
		return out
	}
	cikIdx, tickerIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "cik":
			cikIdx = i
		case "ticker":
			tickerIdx = i
		}
	}
	if cikIdx < 0 || tickerIdx < 0 {
		return out
	}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(row) <= cikIdx || len(row) <= tickerIdx {
			continue
		}
		cik := NormalizeCIK(row[cikIdx])
		ticker := strings.ToUpper(strings.TrimSpace(row[tickerIdx]))
		if cik == "" || ticker == "" {
			continue
		}
		if out[ticker] == nil {
			out[ticker] = make(map[string]struct{})
		}
		out[ticker][cik] = struct{}{}
	}
	return out
}

// tickerGetter is the subset of httpclient.Client RefreshFromCompanyTickers
// needs, kept as an interface so entities never imports httpclient directly.
type tickerGetter interface {
	GetJSON(ctx context.Context, url string, v interface{}) error
}

// companyTickerRecord mirrors one entry of SEC's company_tickers.json.
type companyTickerRecord struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
}

// RefreshFromCompanyTickers replaces the in-memory ticker->CIK mapping with a
// live fetch of urls.CompanyTickers, the online equivalent of the packaged
// CSV snapshot. Safe to call concurrently with ResolveCIKFilter lookups.
func RefreshFromCompanyTickers(ctx context.Context, client tickerGetter) error {
	var raw map[string]companyTickerRecord
	if err := client.GetJSON(ctx, urls.CompanyTickers, &raw); err != nil {
		return err
	}

	fresh := make(map[string]map[string]struct{}, len(raw))
	for _, rec := range raw {
		ticker := strings.ToUpper(strings.TrimSpace(rec.Ticker))
		if ticker == "" || rec.CIK <= 0 {
			continue
		}
		cik := zeroPad(strconv.Itoa(rec.CIK), 10)
		if fresh[ticker] == nil {
			fresh[ticker] = make(map[string]struct{})
		}
		fresh[ticker][cik] = struct{}{}
	}

	tickerMapOnce.Do(func() {}) // ensure the lazy packaged load never races past us
	tickerMapMu.Lock()
	tickerMap = fresh
	tickerMapMu.Unlock()
	return nil
}

// ResolveCIKFilter returns the union of the 10-digit normalizations of cik
// and ticker (tickers looked up through the packaged mapping). A nil/empty
// result means "no filter".
func ResolveCIKFilter(cik []string, ticker []string) map[string]struct{} {
	out := make(map[string]struct{})

	for _, v := range cik {
		if norm := NormalizeCIK(v); norm != "" {
			out[norm] = struct{}{}
		}
	}

	if len(ticker) > 0 {
		mapping := loadTickerMap()
		for _, t := range ticker {
			key := strings.ToUpper(strings.TrimSpace(t))
			if key == "" {
				continue
			}
			for cik := range mapping[key] {
				out[cik] = struct{}{}
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// ResolveOutputGroupLabel derives the optional label used to group output
// by ticker or single CIK when exactly one is provided.
func ResolveOutputGroupLabel(cik []string, ticker []string) string {
	if len(ticker) > 0 {
		var cleaned []string
		for _, t := range ticker {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t != "" {
				cleaned = append(cleaned, t)
			}
		}
		if len(cleaned) == 1 {
			return cleaned[0]
		}
	}
	if len(cik) > 0 {
		var cleaned []string
		for _, c := range cik {
			if norm := NormalizeCIK(c); norm != "" {
				cleaned = append(cleaned, norm)
			}
		}
		if len(cleaned) == 1 {
			return cleaned[0]
		}
	}
	return ""
}
