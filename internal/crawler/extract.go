package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extraction is what the crawler reads out of an HTML page.
type Extraction struct {
	Title        string
	Text         string
	CanonicalURL string
	Keywords     []string
}

// IsHTML reports whether a Content-Type header names an HTML document.
func IsHTML(contentType string) bool {
	ct := strings.ToLower(contentType)

	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// ExtractHTML parses body and collects title, visible text, the canonical
// link (resolved against baseURL) and up to maxKeywords meta keywords.
func ExtractHTML(body []byte, baseURL string, maxKeywords int) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	ex := &Extraction{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Keywords: ExtractKeywords(doc, maxKeywords),
	}

	if href, ok := canonicalHref(doc); ok {
		ex.CanonicalURL = resolveURL(baseURL, href)
	}

	doc.Find("script, style, noscript, template").Remove()
	ex.Text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")

	return ex, nil
}

// ExtractKeywords reads <meta name="keywords">, splitting on commas,
// trimming, dropping empties and duplicates while keeping order.
// maxKeywords <= 0 means no keywords.
func ExtractKeywords(doc *goquery.Document, maxKeywords int) []string {
	keywords := []string{}
	if maxKeywords <= 0 {
		return keywords
	}

	seen := make(map[string]bool)

	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), "keywords") {
			return true
		}

		for _, kw := range strings.Split(s.AttrOr("content", ""), ",") {
			kw = strings.TrimSpace(kw)
			key := strings.ToLower(kw)

			if kw == "" || seen[key] {
				continue
			}

			seen[key] = true
			keywords = append(keywords, kw)

			if len(keywords) >= maxKeywords {
				return false
			}
		}

		return true
	})

	return keywords
}

func canonicalHref(doc *goquery.Document) (string, bool) {
	var href string

	doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "canonical" {
				href = strings.TrimSpace(s.AttrOr("href", ""))
				return false
			}
		}

		return true
	})

	return href, href != ""
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}

	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	return b.ResolveReference(r).String()
}
