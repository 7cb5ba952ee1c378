package search

import (
	"fmt"
	"net/url"
	"strings"

	"shodanx/config"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// anyLink is the last title strategy: any link inside the card.
const anyLink = "a[href]"

// Extractor turns a rendered results page into records.
type Extractor struct {
	sel config.ResultSelectors
}

// NewExtractor creates an extractor for the given result selectors.
func NewExtractor(sel config.ResultSelectors) *Extractor {
	return &Extractor{sel: sel}
}

// Extract parses the cards of one results page. pageURL resolves relative links.
func (e *Extractor) Extract(pageURL, htmlContent string) ([]ResultRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}
	base, _ := url.Parse(pageURL)

	cards := firstMatch(doc.Selection, e.sel.Cards)
	records := make([]ResultRecord, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		rec := e.record(card, base)
		if rec.Title == nil && rec.Banner == nil {
			return
		}
		records = append(records, rec)
	})
	return records, nil
}

// IsEmptyResultPage reports whether the page is the site's "no results" page
// rather than a page whose markup we failed to recognise.
func (e *Extractor) IsEmptyResultPage(htmlContent string) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return false, fmt.Errorf("parse results page: %w", err)
	}
	if firstMatch(doc.Selection, e.sel.NoResults).Length() > 0 {
		return true, nil
	}
	marker := strings.ToLower(e.sel.NoResultsText)
	return marker != "" && strings.Contains(strings.ToLower(doc.Find("body").Text()), marker), nil
}

func (e *Extractor) record(card *goquery.Selection, base *url.URL) ResultRecord {
	var rec ResultRecord

	titleStrategies := append(append([]string(nil), e.sel.Title...), anyLink)
	if link := firstMatch(card, titleStrategies).First(); link.Length() > 0 {
		rec.Title = trimmed(link.Text())
		if href, ok := link.Attr("href"); ok {
			rec.TitleURL = resolve(base, href)
		}
	}

	rec.Timestamp = trimmed(firstMatch(card, e.sel.Timestamp).First().Text())
	rec.Hostnames = texts(firstMatch(card, e.sel.Hostnames))
	rec.Tags = texts(firstMatch(card, e.sel.Tags))

	if banner := firstMatch(card, e.sel.Banner).First(); banner.Length() > 0 {
		rec.Banner = trimmed(nodeText(banner.Nodes[0]))
	}
	return rec
}

// firstMatch evaluates selectors in order and returns the first non-empty match.
func firstMatch(s *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := s.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return s.Slice(0, 0)
}

func trimmed(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func texts(s *goquery.Selection) []string {
	var out []string
	s.Each(func(_ int, item *goquery.Selection) {
		if t := strings.TrimSpace(item.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func resolve(base *url.URL, href string) *string {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return &href
	}
	abs := base.ResolveReference(ref).String()
	return &abs
}

// nodeText is like Selection.Text but keeps <br> as line breaks.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
