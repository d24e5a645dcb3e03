package sites

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"redgrab/pkg/errors"
	"redgrab/pkg/fetch"
)

// fetchDocument fetches a page and parses it into a goquery document.
// Page scrapes get no retry budget: a flaky page fetch fails the adapter.
func fetchDocument(ctx context.Context, client *fetch.Fetcher, pageURL string) (*goquery.Document, error) {
	body, err := client.Fetch(ctx, pageURL, 0)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.ForURL(errors.KindSite, pageURL, "failed to parse page HTML: "+err.Error())
	}
	return doc, nil
}

// scrapeVideoPage extracts the true media URL from a video host's page
// by reading its ld+json metadata block. The page must carry exactly one
// block with a contentUrl; anything else means the site changed its
// markup and the scrape fails closed.
func scrapeVideoPage(ctx context.Context, client *fetch.Fetcher, pageURL string) (string, error) {
	doc, err := fetchDocument(ctx, client, pageURL)
	if err != nil {
		return "", err
	}

	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if strings.Contains(text, "contentUrl") {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) != 1 {
		return "", errors.Newf(errors.KindSite,
			"expected exactly one ld+json media block on %s, found %d", pageURL, len(blocks))
	}

	var meta struct {
		ContentURL string `json:"contentUrl"`
	}
	if err := json.Unmarshal([]byte(blocks[0]), &meta); err != nil {
		return "", errors.ForURL(errors.KindSite, pageURL, "unparsable ld+json block: "+err.Error())
	}
	if meta.ContentURL == "" {
		return "", errors.ForURL(errors.KindSite, pageURL, "ld+json block carries no contentUrl")
	}
	return meta.ContentURL, nil
}

// mediaID extracts the bare media identifier from a watch-page URL: the
// last path segment, stripped of any extension and variant suffix.
func mediaID(rawurl string) string {
	s := Normalize(rawurl)
	s = strings.TrimSuffix(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, "."); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "-"); i >= 0 {
		s = s[:i]
	}
	return s
}
