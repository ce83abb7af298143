package fetcher

import (
	"archive/tar"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// tarMetadata is the first member written to every tar output, describing
// the filing it packages.
type tarMetadata struct {
	Accession string    `json:"accession"`
	CIK       string    `json:"cik"`
	FormType  string    `json:"form_type"`
	DateFiled time.Time `json:"date_filed"`
	Files     []string  `json:"files"`
}

// tarMetadataJSON mirrors tarMetadata but serializes DateFiled the way the
// Python reference does (date.isoformat(), no time component).
type tarMetadataJSON struct {
	Accession string   `json:"accession"`
	CIK       string   `json:"cik"`
	FormType  string   `json:"form_type"`
	DateFiled string   `json:"date_filed"`
	Files     []string `json:"files"`
}

// writeTar packages meta.Files (read from srcDir) plus a metadata.json first
// member into an uncompressed tar at path. Member sizes are exact.
func writeTar(path string, meta tarMetadata, srcDir string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	defer tw.Close()

	metaJSON, err := json.Marshal(tarMetadataJSON{
		Accession: meta.Accession,
		CIK:       meta.CIK,
		FormType:  meta.FormType,
		DateFiled: meta.DateFiled.Format("2006-01-02"),
		Files:     meta.Files,
	})
	if err != nil {
		return err
	}
	if err := tw.WriteHeader(&tar.Header{
		Name: "metadata.json",
		Mode: 0o644,
		Size: int64(len(metaJSON)),
	}); err != nil {
		return err
	}
	if _, err := tw.Write(metaJSON); err != nil {
		return err
	}

	for _, name := range meta.Files {
		content, err := os.ReadFile(filepath.Join(srcDir, name))
		if err != nil {
			return err
		}
		if err := tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}); err != nil {
			return err
		}
		if _, err := tw.Write(content); err != nil {
			return err
		}
	}

	return tw.Close()
}
