package mirror

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractTar unpacks tarPath into targetDir. Each member's path is cleaned
// and, if its first path component looks like a dash-less 18- or 20-digit
// accession directory (the shape datamule tars nest content under), that
// component is stripped before joining against targetDir. Any member whose
// resolved path would land outside targetDir is rejected — the
// path-traversal guard a tar we did not produce ourselves requires.
func extractTar(tarPath, targetDir string) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}
	f, err := os.Open(tarPath)
	if err != nil {
		return err
	}
	defer f.Close()

	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return err
	}

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := strings.TrimPrefix(filepath.ToSlash(hdr.Name), "/")
		parts := make([]string, 0, 4)
		for _, p := range strings.Split(name, "/") {
			if p == "" || p == "." {
				continue
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			continue
		}
		if len(parts) > 1 && isAccessionDirComponent(parts[0]) {
			parts = parts[1:]
		}

		rel := filepath.Join(parts...)
		outPath := filepath.Join(targetDir, rel)
		absOut, err := filepath.Abs(outPath)
		if err != nil {
			return err
		}
		if absOut != absTarget && !strings.HasPrefix(absOut, absTarget+string(filepath.Separator)) {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(absOut), 0o755); err != nil {
			return err
		}
		out, err := os.Create(absOut)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("mirror: extracting %s: %w", hdr.Name, err)
		}
		out.Close()
	}
	return nil
}
