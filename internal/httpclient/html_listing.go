package httpclient

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// GetHTMLListing recovers a folder's file names from the classic HTML
// directory-listing page SEC still serves for older filings, used when a
// folder's index.json is unavailable (e.g. a 404). It selects every anchor
// inside the directory-listing table and skips parent-directory and
// sub-directory links, recovering the same names index.json would have given.
func (c *Client) GetHTMLListing(ctx context.Context, folderURL string) ([]string, error) {
	resp, err := c.request(ctx, folderURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var names []string
	doc.Find("table tr td.filename a, table a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		name := strings.TrimSpace(sel.Text())
		if name == "" {
			name = href
		}
		name = strings.TrimSuffix(name, "/")
		if name == "" || name == ".." || strings.HasPrefix(href, "..") || strings.HasSuffix(href, "/") {
			return
		}
		// index.json-equivalent names are plain file names, not full URLs.
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		names = append(names, name)
	})
	return names, nil
}
