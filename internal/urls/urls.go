// Package urls centralizes the SEC EDGAR (and mirror) URL templates used
// across the acquisition pipeline.
package urls

import (
	"fmt"
	"strconv"
	"strings"
)

// AccessionNoDash strips the dashes from an accession number.
func AccessionNoDash(accession string) string {
	return strings.ReplaceAll(accession, "-", "")
}

// FilingFolder returns the base folder URL for a filing:
// https://www.sec.gov/Archives/edgar/data/{int(cik)}/{accession_no_dash}/
func FilingFolder(cik, accession string) string {
	n, _ := strconv.Atoi(strings.TrimLeft(cik, "0"))
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%d/%s/", n, AccessionNoDash(accession))
}

// FilingFolderIndexJSON returns the folder's index.json listing URL.
func FilingFolderIndexJSON(cik, accession string) string {
	return FilingFolder(cik, accession) + "index.json"
}

// MasterIndex returns the canonical master.idx URL for a quarter.
func MasterIndex(year, quarter int) string {
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/full-index/%d/QTR%d/master.idx", year, quarter)
}

// MirrorTar returns the optional third-party mirror's tar URL for an
// accession, zero-padded to 18 dash-less digits.
func MirrorTar(accession string) string {
	noDash := AccessionNoDash(accession)
	for len(noDash) < 18 {
		noDash = "0" + noDash
	}
	return "https://sec-library.tar.datamule.xyz/" + noDash + ".tar"
}

// Submissions returns the entity submissions JSON URL for a 10-digit CIK.
func Submissions(cik10 string) string {
	return "https://data.sec.gov/submissions/CIK" + cik10 + ".json"
}

// CompanyTickers is SEC's own ticker-to-CIK mapping endpoint. The packaged
// EntityResolver ships a static CSV snapshot by default; this URL backs
// entities.RefreshFromCompanyTickers, the live-refresh path.
const CompanyTickers = "https://www.sec.gov/files/company_tickers.json"
