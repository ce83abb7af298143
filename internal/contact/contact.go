// Package contact resolves the contact User-Agent string SEC EDGAR requires,
// following the same precedence as the original client: an explicit value,
// then SEC_USER_AGENT, then a synthesized address from {data}/config/email.json
// (falling back to a packaged default, never creating the config folder).
package contact

import (
	_ "embed"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

//go:embed resources/email.json
var packagedEmailJSON []byte

type emailsFile struct {
	Emails []string `json:"emails"`
}

// ResolveUserAgent returns explicit if non-empty, else the SEC_USER_AGENT
// environment variable if set, else a synthesized "sec-fetcher {email}"
// built from {dataDir}/config/email.json (or the packaged default when that
// file doesn't exist). Returns "" if no email address is available anywhere,
// in which case the caller (httpclient.New) will surface MissingUserAgentError.
func ResolveUserAgent(explicit, dataDir string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("SEC_USER_AGENT"); env != "" {
		return env
	}
	return fromEmailJSON(dataDir)
}

func fromEmailJSON(dataDir string) string {
	raw := packagedEmailJSON
	if dataDir != "" {
		if b, err := os.ReadFile(filepath.Join(dataDir, "config", "email.json")); err == nil {
			raw = b
		}
	}

	var data emailsFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}
	var valid []string
	for _, e := range data.Emails {
		if strings.Contains(e, "@") {
			valid = append(valid, e)
		}
	}
	if len(valid) == 0 {
		return ""
	}
	return "sec-fetcher " + valid[rand.Intn(len(valid))]
}
