package secfetch

import (
	"os"
	"path/filepath"
	"strings"
)

func dirOf(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Dir(path)
}

func joinPath(elems ...string) string {
	return filepath.Join(elems...)
}

func removeAll(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err == nil {
		os.RemoveAll(path)
	}
}

func trimLeadingZeros(cik string) string {
	s := strings.TrimLeft(cik, "0")
	if s == "" {
		return "0"
	}
	return s
}
