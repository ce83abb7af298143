package mirror_test

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrarare-tech/secfetch/internal/mirror"
	"github.com/ultrarare-tech/secfetch/internal/model"
)

func TestFetchTars_SkipsRowsWhoseTarAlreadyExists(t *testing.T) {
	outDir := t.TempDir()
	row := model.FilingRow{
		CIK:      "0000320193",
		FormType: "10-K",
		Filename: "edgar/data/320193/0000320193-24-000001.txt",
	}
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "000032019324000001.tar"), []byte("existing"), 0o644))

	c := mirror.NewClient("")
	results, err := c.FetchTars(context.Background(), []model.FilingRow{row}, outDir, 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.StatusSkipped, results[0].Status)
}

func writeFixtureTar(t *testing.T, path, memberName, body string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	tw := tar.NewWriter(f)
	defer tw.Close()
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: memberName, Mode: 0o644, Size: int64(len(body))}))
	_, err = tw.Write([]byte(body))
	require.NoError(t, err)
}

func TestExtractAndCleanup_UnpacksIntoFilingDirAndRemovesTar(t *testing.T) {
	dataDir := t.TempDir()
	tarDir := t.TempDir()
	tarPath := filepath.Join(tarDir, "000032019324000001.tar")
	writeFixtureTar(t, tarPath, "000032019324000001/primary_doc.xml", "<xml/>")

	results := []model.FilingResult{
		{
			Accession:  "0000320193-24-000001",
			CIK:        "0000320193",
			FormType:   "10-K",
			Status:     model.StatusDownloaded,
			OutputPath: tarPath,
		},
	}

	out := mirror.ExtractAndCleanup(dataDir, tarDir, "AAPL", results)
	require.Len(t, out, 1)
	assert.Equal(t, model.StatusDownloaded, out[0].Status)

	content, err := os.ReadFile(filepath.Join(out[0].OutputPath, "primary_doc.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<xml/>", string(content))

	_, err = os.Stat(tarDir)
	assert.True(t, os.IsNotExist(err), "tarDir must be removed after extraction")
}

func TestExtractAndCleanup_SkipsErrorResultsUntouched(t *testing.T) {
	dataDir := t.TempDir()
	tarDir := t.TempDir()

	results := []model.FilingResult{
		{Accession: "acc-1", Status: model.StatusError, Error: "download failed"},
	}
	out := mirror.ExtractAndCleanup(dataDir, tarDir, "", results)
	require.Len(t, out, 1)
	assert.Equal(t, model.StatusError, out[0].Status)
	assert.Equal(t, "download failed", out[0].Error)
}
