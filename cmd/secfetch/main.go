// Command secfetch is the CLI collaborator over the secfetch library: it
// parses flags, renders a terminal progress line, and prints results as
// JSON. All acquisition logic lives in the library itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ultrarare-tech/secfetch"
	"github.com/ultrarare-tech/secfetch/internal/model"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "quarter":
		runQuarter(os.Args[2:])
	case "latest":
		runLatest(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "secfetch: unknown subcommand %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <quarter|latest> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  quarter -year 2024 -quarter 1 -forms 10-K,10-Q\n")
	fmt.Fprintf(os.Stderr, "  latest  -ticker MSTR\n")
}

type commonFlags struct {
	dataDir      *string
	fileTypes    *string
	amended      *bool
	cik          *string
	ticker       *string
	concurrency  *int
	userAgent    *string
	outputFormat *string
	tarProvider  *string
	datamuleKey  *string
	extract      *bool
	refreshTick  *bool
	quiet        *bool
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		dataDir:      fs.String("data-dir", "data", "local data directory"),
		fileTypes:    fs.String("file-types", ".htm,.html,.xml,.xbrl,.pdf", "comma-separated file extensions to download"),
		amended:      fs.Bool("include-amended", false, "include /A amendment form types"),
		cik:          fs.String("cik", "", "comma-separated CIK filter"),
		ticker:       fs.String("ticker", "", "comma-separated ticker filter"),
		concurrency:  fs.Int("concurrency", 0, "max in-flight filings (0 = library default)"),
		userAgent:    fs.String("user-agent", "", "contact user-agent, e.g. \"Acme Research contact@example.com\""),
		outputFormat: fs.String("output-format", model.OutputFiles, "\"files\" or \"tar\""),
		tarProvider:  fs.String("tar-provider", "datamule", "\"datamule\" or \"local\" (only used when output-format=tar)"),
		datamuleKey:  fs.String("datamule-api-key", "", "bearer token for the datamule mirror (or $DATAMULE_API_KEY)"),
		extract:      fs.Bool("extract", true, "extract mirror tars into the filings tree after download"),
		refreshTick:  fs.Bool("refresh-tickers", false, "fetch SEC's live company_tickers.json before resolving -ticker instead of the packaged snapshot"),
		quiet:        fs.Bool("quiet", false, "suppress the progress line"),
	}
}

func (c *commonFlags) options() []secfetch.Option {
	opts := []secfetch.Option{
		secfetch.WithDataDir(*c.dataDir),
		secfetch.WithFileTypes(splitCSV(*c.fileTypes)),
		secfetch.WithIncludeAmended(*c.amended),
		secfetch.WithUserAgent(*c.userAgent),
		secfetch.WithOutputFormat(*c.outputFormat),
		secfetch.WithTarProvider(*c.tarProvider),
		secfetch.WithDatamuleAPIKey(*c.datamuleKey),
		secfetch.WithExtract(*c.extract),
		secfetch.WithOnlineTickerRefresh(*c.refreshTick),
	}
	if ciks := splitCSV(*c.cik); len(ciks) > 0 {
		opts = append(opts, secfetch.WithCIK(ciks...))
	}
	if tickers := splitCSV(*c.ticker); len(tickers) > 0 {
		opts = append(opts, secfetch.WithTicker(tickers...))
	}
	if *c.concurrency > 0 {
		opts = append(opts, secfetch.WithConcurrency(*c.concurrency))
	}
	if !*c.quiet {
		opts = append(opts, secfetch.WithObserver(model.ObserverFunc(printProgress)))
	}
	return opts
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printProgress(p model.Progress) {
	if p.Total == 0 {
		return
	}
	last := ""
	if p.Last != nil {
		last = fmt.Sprintf(" last=%s(%s)", p.Last.Accession, p.Last.Status)
	}
	fmt.Fprintf(os.Stderr, "\rdownloading filings [%d/%d] in_progress=%d%s", p.Completed, p.Total, p.InProgress, last)
	if p.Completed >= p.Total {
		fmt.Fprintln(os.Stderr)
	}
}

func runQuarter(args []string) {
	fs := flag.NewFlagSet("quarter", flag.ExitOnError)
	year := fs.Int("year", 0, "calendar year (required)")
	quarter := fs.Int("quarter", 0, "quarter 1-4 (required)")
	formsFlag := fs.String("forms", "", "comma-separated form types (required)")
	common := bindCommon(fs)
	fs.Parse(args)

	if *year == 0 || *quarter == 0 || strings.TrimSpace(*formsFlag) == "" {
		log.Fatalf("secfetch quarter: -year, -quarter, and -forms are all required")
	}

	results, err := secfetch.DownloadQuarter(context.Background(), *year, *quarter, splitCSV(*formsFlag), common.options()...)
	if err != nil {
		log.Fatalf("secfetch quarter: %v", err)
	}
	printResults(results)
}

func runLatest(args []string) {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	common := bindCommon(fs)
	fs.Parse(args)

	results, err := secfetch.DownloadLatest(context.Background(), common.options()...)
	if err != nil {
		log.Fatalf("secfetch latest: %v", err)
	}
	printResults(results)
}

func printResults(results []model.FilingResult) {
	data, err := secfetch.MarshalResults(results)
	if err != nil {
		log.Fatalf("secfetch: encoding results: %v", err)
	}
	fmt.Println(string(data))
	// Exit code is always 0 here: per-filing errors are reported in the
	// JSON, not via the process exit code.
}
