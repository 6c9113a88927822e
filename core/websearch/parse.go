package websearch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const bodyLimit = 4000

type parsedPage struct {
	title   string
	snippet string
	body    string
}

func parsePage(data []byte) (parsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return parsedPage{}, fmt.Errorf("failed to parse html: %w", err)
	}

	page := parsedPage{
		title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if page.title == "" {
		if ogTitle, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			page.title = strings.TrimSpace(ogTitle)
		}
	}

	if description, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.snippet = strings.TrimSpace(description)
	}

	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, selection *goquery.Selection) bool {
		text := strings.Join(strings.Fields(selection.Text()), " ")
		if text == "" {
			return true
		}
		paragraphs = append(paragraphs, text)
		return len(strings.Join(paragraphs, "\n")) < bodyLimit
	})
	page.body = strings.Join(paragraphs, "\n")
	if len(page.body) > bodyLimit {
		page.body = page.body[:bodyLimit]
	}

	if page.snippet == "" && len(paragraphs) > 0 {
		page.snippet = paragraphs[0]
	}

	if page.title == "" && page.body == "" {
		return parsedPage{}, fmt.Errorf("no extractable content")
	}

	return page, nil
}
