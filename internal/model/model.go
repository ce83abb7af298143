// Package model holds the data shapes shared across secfetch's internal packages.
package model

import (
	"path"
	"strings"
	"time"
)

// FilingRow is one parsed line from a quarterly master index.
type FilingRow struct {
	CIK         string // 10-digit zero-padded decimal string
	CompanyName string
	FormType    string
	DateFiled   time.Time
	Filename    string // edgar/data/{cik}/{accession_no_dash}/{accession}.txt
}

// Accession derives the accession number from the archive path basename.
func (r FilingRow) Accession() string {
	name := path.Base(r.Filename)
	name = strings.TrimSuffix(name, ".txt")
	name = strings.TrimSuffix(name, ".idx")
	return name
}

// AccessionNoDash returns the accession number with dashes removed.
func (r FilingRow) AccessionNoDash() string {
	return strings.ReplaceAll(r.Accession(), "-", "")
}

// FilingFile is one entry in a FilingFolder listing.
type FilingFile struct {
	Name string
	URL  string
}

// FilingFolder is the remote directory enumeration result for one accession.
type FilingFolder struct {
	BaseURL string
	Files   []FilingFile
}

// Status values for a FilingResult.
const (
	StatusDownloaded = "downloaded"
	StatusSkipped    = "skipped"
	StatusError      = "error"
)

// FilingResult is the outcome of one acquisition attempt.
type FilingResult struct {
	Accession  string
	CIK        string
	FormType   string
	DateFiled  time.Time
	Status     string
	Error      string
	OutputPath string
}

// Output-mode / strategy values.
const (
	OutputFiles = "files"
	OutputTar   = "tar"

	StrategyIndex    = "index"
	StrategyIndexTar = "index_tar"
)

// ManifestEntry is the persisted per-accession commit record.
type ManifestEntry struct {
	Accession string `json:"accession"`
	FormType  string `json:"form_type"`
	CIK       string `json:"cik"`
	DateFiled string `json:"date_filed"` // ISO-8601
	Strategy  string `json:"strategy"`
}

// Progress is published to an Observer as the Scheduler makes headway.
type Progress struct {
	Completed  int
	Total      int
	InProgress int
	Last       *FilingResult
}

// Observer receives progress notifications. Absence of an observer is a no-op.
type Observer interface {
	Notify(p Progress)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(p Progress)

// Notify implements Observer.
func (f ObserverFunc) Notify(p Progress) { f(p) }
