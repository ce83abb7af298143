package scheduler_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrarare-tech/secfetch/internal/manifest"
	"github.com/ultrarare-tech/secfetch/internal/model"
	"github.com/ultrarare-tech/secfetch/internal/scheduler"
)

type scriptedFetcher struct {
	fail map[string]bool
}

func (f *scriptedFetcher) FetchOne(ctx context.Context, row model.FilingRow) model.FilingResult {
	time.Sleep(time.Millisecond) // encourage interleaving across goroutines
	acc := row.Accession()
	if f.fail[acc] {
		return model.FilingResult{Accession: acc, Status: model.StatusError, Error: "boom"}
	}
	return model.FilingResult{Accession: acc, Status: model.StatusDownloaded}
}

func rowWithAccession(acc string) model.FilingRow {
	return model.FilingRow{
		CIK:      "0000000001",
		FormType: "10-K",
		Filename: "edgar/data/1/" + acc + ".txt",
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []model.Progress
}

func (o *recordingObserver) Notify(p model.Progress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, p)
}

func TestRun_PreservesInputOrder(t *testing.T) {
	rows := []model.FilingRow{
		rowWithAccession("acc-1"),
		rowWithAccession("acc-2"),
		rowWithAccession("acc-3"),
		rowWithAccession("acc-4"),
	}
	f := &scriptedFetcher{}
	results := scheduler.Run(context.Background(), f, rows, 2, nil, nil, "")

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, rows[i].Accession(), r.Accession)
	}
}

func TestRun_SavesManifestAtEndOfRun(t *testing.T) {
	dir := t.TempDir()
	m := manifest.New(filepath.Join(dir, "manifest.json"))
	f := &scriptedFetcher{}
	rows := []model.FilingRow{rowWithAccession("acc-1")}

	scheduler.Run(context.Background(), f, rows, 1, m, nil, "")

	_, err := os.Stat(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
}

func TestRun_CleansQuarterCacheOnlyWhenAllSucceed(t *testing.T) {
	cacheDirOK := t.TempDir()
	f := &scriptedFetcher{}
	rows := []model.FilingRow{rowWithAccession("acc-1"), rowWithAccession("acc-2")}

	scheduler.Run(context.Background(), f, rows, 2, nil, nil, cacheDirOK)
	_, err := os.Stat(cacheDirOK)
	assert.True(t, os.IsNotExist(err), "cache dir must be removed when every result succeeds")

	cacheDirFail := t.TempDir()
	failing := &scriptedFetcher{fail: map[string]bool{"acc-2": true}}
	scheduler.Run(context.Background(), failing, rows, 2, nil, nil, cacheDirFail)
	_, err = os.Stat(cacheDirFail)
	assert.NoError(t, err, "cache dir must be retained when any result errors")
}

func TestRun_PublishesMonotonicProgress(t *testing.T) {
	obs := &recordingObserver{}
	f := &scriptedFetcher{}
	rows := []model.FilingRow{rowWithAccession("acc-1"), rowWithAccession("acc-2"), rowWithAccession("acc-3")}

	results := scheduler.Run(context.Background(), f, rows, 2, nil, obs, "")
	require.Len(t, results, 3)

	require.NotEmpty(t, obs.events)
	for i := 1; i < len(obs.events); i++ {
		assert.GreaterOrEqual(t, obs.events[i].Completed, obs.events[i-1].Completed, "completed must never decrease")
	}
	last := obs.events[len(obs.events)-1]
	assert.Equal(t, 3, last.Completed)
	assert.Equal(t, 3, last.Total)
	assert.Equal(t, 0, last.InProgress)
}

func TestRun_ClampsNonPositiveConcurrency(t *testing.T) {
	f := &scriptedFetcher{}
	rows := []model.FilingRow{rowWithAccession("acc-1")}
	results := scheduler.Run(context.Background(), f, rows, 0, nil, nil, "")
	require.Len(t, results, 1)
	assert.Equal(t, model.StatusDownloaded, results[0].Status)
}
