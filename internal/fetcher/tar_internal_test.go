package fetcher

import (
	"archive/tar"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTar_MetadataIsFirstMemberWithISODate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "primary_doc.xml"), []byte("<xml/>"), 0o644))

	tarPath := filepath.Join(dir, "out.tar")
	meta := tarMetadata{
		Accession: "0000320193-24-000001",
		CIK:       "0000320193",
		FormType:  "10-K",
		DateFiled: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Files:     []string{"primary_doc.xml"},
	}
	require.NoError(t, writeTar(tarPath, meta, dir))

	f, err := os.Open(tarPath)
	require.NoError(t, err)
	defer f.Close()

	tr := tar.NewReader(f)

	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "metadata.json", hdr.Name)

	var decoded tarMetadataJSON
	require.NoError(t, json.NewDecoder(tr).Decode(&decoded))
	assert.Equal(t, "2024-01-15", decoded.DateFiled)
	assert.Equal(t, "0000320193-24-000001", decoded.Accession)

	hdr, err = tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "primary_doc.xml", hdr.Name)
}
