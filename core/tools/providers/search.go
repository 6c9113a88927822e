package providers

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SearchHit is one ranked result from the search provider.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

const maxSearchHits = 10

// Search queries the DuckDuckGo HTML endpoint and returns ranked hits.
func (c *Client) Search(ctx context.Context, query string) ([]SearchHit, error) {
	urlValues := url.Values{}
	urlValues.Set("q", query)

	var hits []SearchHit
	err := c.get(ctx,
		(&url.URL{
			Scheme: "https",
			Host:   "html.duckduckgo.com", Path: "/html/",
			RawQuery: urlValues.Encode(),
		}).String(),
		func(body io.Reader) error {
			doc, err := goquery.NewDocumentFromReader(body)
			if err != nil {
				return fmt.Errorf("failed to parse search response: %w", err)
			}

			doc.Find(".result").EachWithBreak(func(_ int, selection *goquery.Selection) bool {
				link := selection.Find(".result__a").First()
				href, ok := link.Attr("href")
				if !ok {
					return true
				}

				hit := SearchHit{
					Title:   strings.TrimSpace(link.Text()),
					URL:     resolveResultURL(href),
					Snippet: strings.Join(strings.Fields(selection.Find(".result__snippet").Text()), " "),
				}
				if hit.URL == "" {
					return true
				}
				hits = append(hits, hit)
				return len(hits) < maxSearchHits
			})
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return hits, nil
}

// resolveResultURL unwraps the provider's redirect links (//duckduckgo.com/l/?uddg=...)
// to the target URL.
func resolveResultURL(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		return href
	}
	return ""
}
