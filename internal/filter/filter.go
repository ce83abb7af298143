// Package filter selects master-index rows by form type, amendment policy,
// and an optional entity allow-set.
package filter

import (
	"strings"

	"github.com/ultrarare-tech/secfetch/internal/entities"
	"github.com/ultrarare-tech/secfetch/internal/masterindex"
	"github.com/ultrarare-tech/secfetch/internal/model"
)

// Filter is an immutable selection criterion over master-index rows.
type Filter struct {
	Forms          map[string]struct{}
	IncludeAmended bool
}

// New builds a Filter from a requested form-type list.
func New(forms []string, includeAmended bool) Filter {
	set := make(map[string]struct{}, len(forms))
	for _, f := range forms {
		set[f] = struct{}{}
	}
	return Filter{Forms: set, IncludeAmended: includeAmended}
}

// Match reports whether row passes the filter: its form is in the set AND
// (the form does not contain "/A" OR IncludeAmended is true).
func (f Filter) Match(row model.FilingRow) bool {
	if _, ok := f.Forms[row.FormType]; !ok {
		return false
	}
	if !f.IncludeAmended && strings.Contains(row.FormType, "/A") {
		return false
	}
	return true
}

// Apply dedups rows (keeping first occurrence per accession), applies f,
// and optionally restricts to a non-empty CIK allow-set.
func Apply(rows []model.FilingRow, f Filter, cikAllow map[string]struct{}) []model.FilingRow {
	unique := masterindex.Dedup(rows)
	out := make([]model.FilingRow, 0, len(unique))
	for _, row := range unique {
		if !f.Match(row) {
			continue
		}
		if len(cikAllow) > 0 {
			if _, ok := cikAllow[entities.NormalizeCIK(row.CIK)]; !ok {
				continue
			}
		}
		out = append(out, row)
	}
	return out
}
