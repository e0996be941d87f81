// Package scraper implements the website crawl tier of the discovery
// cascade: a bounded same-domain crawl plus a context-aware regex price
// extractor. Everything here is best-effort; no function in this package
// panics or returns an error for "no price found".
package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rateright/backend/internal/textutil"
)

// priceRe locates currency-marked numeric tokens: £45, € 30,50, ₹2500.
var priceRe = regexp.MustCompile(`([£€$₹])\s*([0-9]{1,6})(?:[.,]([0-9]{1,2}))?`)

const currencySymbols = "£€$₹"

// maxContainerChars bounds the surrounding text of a price. Larger
// containers (whole sections, footers) are too unspecific to trust.
const maxContainerChars = 600

var currencyBySymbol = map[string]string{
	"€": "EUR",
	"£": "GBP",
	"$": "USD",
	"₹": "INR",
}

// CurrencyFromSymbol maps a currency sign to its ISO code, or "".
func CurrencyFromSymbol(sym string) string {
	return currencyBySymbol[sym]
}

// Hit is one currency-marked number found in raw text.
type Hit struct {
	Price    float64
	Currency string
	Position int
}

// ExtractPrices returns every currency-marked price in the text, in
// document order. It never errors; no match means an empty slice.
func ExtractPrices(text string) []Hit {
	var hits []Hit
	for _, idx := range priceRe.FindAllStringSubmatchIndex(text, -1) {
		m := priceRe.FindStringSubmatch(text[idx[0]:idx[1]])
		price, ok := parsePrice(m)
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			Price:    price,
			Currency: CurrencyFromSymbol(m[1]),
			Position: idx[0],
		})
	}
	return hits
}

func parsePrice(m []string) (float64, bool) {
	whole := m[2]
	frac := m[3]
	if frac == "" {
		frac = "0"
	}
	v, err := strconv.ParseFloat(whole+"."+frac, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

// PageHit is a price found in context on one page.
type PageHit struct {
	Price    float64
	Currency string
}

var noiseSelector = "script, style, nav, footer, header, noscript, svg"

var containerTags = map[string]bool{
	"div": true, "li": true, "article": true, "section": true, "main": true, "body": true,
}

// FindPriceInHTML applies the price regex restricted to containers whose
// surrounding text shares the query tokens: a price next to "AC repair"
// counts, a price in an unrelated footer does not. When several containers
// qualify, the tightest (shortest) context wins.
func FindPriceInHTML(html string, tokens []string) (PageHit, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageHit{}, false
	}
	doc.Find(noiseSelector).Remove()

	phrases := textutil.Phrases(tokens)
	if len(phrases) > 3 {
		phrases = phrases[:3]
	}

	containerMatches := func(textLower string) bool {
		for _, t := range tokens {
			if !strings.Contains(textLower, t) {
				return false
			}
		}
		if len(phrases) == 0 {
			return true
		}
		for _, p := range phrases {
			if textutil.PhrasePresent(textLower, p) {
				return true
			}
		}
		return false
	}

	best := PageHit{}
	bestCtxLen := -1

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if node == nil || !containerTags[node.Data] {
			return
		}
		ctx := strings.ToLower(normalizeSpace(sel.Text()))
		if len(ctx) > maxContainerChars || !strings.ContainsAny(ctx, currencySymbols) {
			return
		}
		if !containerMatches(ctx) {
			return
		}
		m := priceRe.FindStringSubmatch(ctx)
		if m == nil {
			return
		}
		price, ok := parsePrice(m)
		if !ok {
			return
		}
		if bestCtxLen == -1 || len(ctx) < bestCtxLen {
			best = PageHit{Price: price, Currency: CurrencyFromSymbol(m[1])}
			bestCtxLen = len(ctx)
		}
	})

	return best, bestCtxLen != -1
}

// FastHit short-circuits pages with no currency symbol or no full token
// overlap before paying for an HTML parse.
func FastHit(html string, tokens []string) (PageHit, bool) {
	if !strings.ContainsAny(html, currencySymbols) {
		return PageHit{}, false
	}
	low := strings.ToLower(html)
	for _, t := range tokens {
		if !strings.Contains(low, t) {
			return PageHit{}, false
		}
	}
	return FindPriceInHTML(html, tokens)
}

// HTMLToText strips noise tags and collapses whitespace, truncated for the
// semantic extraction tier.
func HTMLToText(html string, maxChars int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find(noiseSelector).Remove()
	text := normalizeSpace(doc.Text())
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}

var spaceRe = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
