// Package scheduler fans a batch of filing rows out across a bounded pool
// of goroutines, aggregates progress, and owns the end-of-run manifest save
// and quarter-cache cleanup.
package scheduler

import (
	"context"
	"os"
	"sync"

	"github.com/ultrarare-tech/secfetch/internal/manifest"
	"github.com/ultrarare-tech/secfetch/internal/model"
)

// Fetcher is the subset of fetcher.Fetcher the scheduler drives.
type Fetcher interface {
	FetchOne(ctx context.Context, row model.FilingRow) model.FilingResult
}

// Run fans rows out across concurrency workers (a buffered channel used as a
// semaphore), publishes progress through observer after every state change,
// saves the manifest once at the end, and — only if every result succeeded —
// removes masterIndexCacheDir (the quarter's master.idx cache directory) so a
// later run refetches a clean copy. Results are returned in input order.
func Run(ctx context.Context, f Fetcher, rows []model.FilingRow, concurrency int, m *manifest.Manifest, observer model.Observer, masterIndexCacheDir string) []model.FilingResult {
	if concurrency < 1 {
		concurrency = 1
	}
	total := len(rows)
	results := make([]model.FilingResult, total)

	if observer != nil && total > 0 {
		observer.Notify(model.Progress{Completed: 0, Total: total, InProgress: 0})
	}

	var (
		mu         sync.Mutex
		completed  int
		inProgress int
		wg         sync.WaitGroup
	)
	sem := make(chan struct{}, concurrency)

	for i, row := range rows {
		i, row := i, row
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			inProgress++
			if observer != nil {
				observer.Notify(model.Progress{Completed: completed, Total: total, InProgress: inProgress})
			}
			mu.Unlock()

			result := f.FetchOne(ctx, row)

			mu.Lock()
			inProgress--
			completed++
			results[i] = result
			if observer != nil {
				r := result
				observer.Notify(model.Progress{Completed: completed, Total: total, InProgress: inProgress, Last: &r})
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if m != nil {
		m.Save()
	}

	if masterIndexCacheDir != "" && allSucceeded(results) {
		cleanupQuarterCache(masterIndexCacheDir)
	}

	return results
}

func allSucceeded(results []model.FilingResult) bool {
	for _, r := range results {
		if r.Status == model.StatusError {
			return false
		}
	}
	return true
}

// cleanupQuarterCache removes the quarter's master.idx cache directory
// (the QTR{n} directory itself, e.g. {data}/index/master/2024/QTR1/).
// Best-effort: a failure here must never fail the run.
func cleanupQuarterCache(dir string) {
	if _, err := os.Stat(dir); err == nil {
		os.RemoveAll(dir)
	}
}
