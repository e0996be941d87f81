package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"rateright/backend/internal/textutil"
)

const (
	topLinks    = 3
	topSublinks = 2
	maxLLMText  = 8000

	fetchAttempts = 2
	retryBackoff  = 500 * time.Millisecond
	maxBodyBytes  = 2 << 20
)

var skipSubstrings = []string{
	"blog", "news", "about", "contact", "privacy", "terms",
	"login", "cart", "facebook", "instagram", ".pdf",
}

var pricePageKeywords = map[string]bool{
	"price": true, "pricing": true, "prices": true, "cost": true, "costs": true,
	"rate": true, "rates": true, "fee": true, "fees": true, "tariff": true,
	"tariffs": true, "labor": true, "labour": true, "service": true,
	"services": true, "repair": true, "repairs": true, "quote": true, "menu": true,
}

// CrawlResult is the outcome of one provider's website crawl.
type CrawlResult struct {
	// Hit is set when the regex tier found a contextual price.
	Hit     *PageHit
	HitURL  string
	// BestText/BestURL hold the most query-relevant page seen, fuel for
	// the semantic extraction tier when the regex tier found nothing.
	BestText    string
	BestURL     string
	BestOverlap int
}

// Crawler fetches a provider homepage plus a bounded set of same-domain
// links (1 + 3 + 3*2 = at most 10 pages) ranked by query-token overlap.
type Crawler struct {
	client  *http.Client
	limiter *rate.Limiter
}

func NewCrawler() *Crawler {
	return &Crawler{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		// Outbound fetch budget shared across all cascades in the process.
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
	}
}

// CrawlForPrice walks the provider's site looking for a contextual price.
// Single-page failures are skipped; the method itself only errors when the
// homepage is unreachable.
func (c *Crawler) CrawlForPrice(ctx context.Context, website, query string) (CrawlResult, error) {
	tokens := textutil.Tokenize(query)
	start := strings.TrimRight(website, "/")
	host := hostOf(start)

	res := CrawlResult{BestOverlap: -1}
	track := func(pageURL, html string) {
		if overlap := textutil.Overlap(html, tokens); overlap > res.BestOverlap {
			res.BestOverlap = overlap
			res.BestText = HTMLToText(html, maxLLMText)
			res.BestURL = pageURL
		}
	}

	homeHTML, err := c.fetch(ctx, start)
	if err != nil {
		return res, fmt.Errorf("homepage fetch failed: %w", err)
	}
	if hit, ok := FastHit(homeHTML, tokens); ok {
		res.Hit, res.HitURL = &hit, start
		return res, nil
	}
	track(start, homeHTML)

	for _, u1 := range topN(ExtractLinks(start, homeHTML, host, tokens), topLinks) {
		html1, err := c.fetch(ctx, u1)
		if err != nil {
			slog.DebugContext(ctx, "page fetch failed", "url", u1, "error", err)
			continue
		}
		if hit, ok := FastHit(html1, tokens); ok {
			res.Hit, res.HitURL = &hit, u1
			return res, nil
		}
		track(u1, html1)

		for _, u2 := range topN(ExtractLinks(u1, html1, host, tokens), topSublinks) {
			html2, err := c.fetch(ctx, u2)
			if err != nil {
				slog.DebugContext(ctx, "page fetch failed", "url", u2, "error", err)
				continue
			}
			if hit, ok := FastHit(html2, tokens); ok {
				res.Hit, res.HitURL = &hit, u2
				return res, nil
			}
			track(u2, html2)
		}
	}

	return res, nil
}

// fetch GETs one page with bounded retries. GETs are idempotent, so a
// retry cannot duplicate side effects.
func (c *Crawler) fetch(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; rateright-scraper/1.0)")
		req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("status %d for %s", resp.StatusCode, pageURL)
			continue
		}
		return string(body), nil
	}
	return "", lastErr
}

// ExtractLinks pulls same-site links out of a page, skips obvious
// non-price paths, and ranks the rest by path token overlap with the
// query (price-page keywords earn a bonus).
func ExtractLinks(pageURL, html, host string, tokens []string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		full := base.ResolveReference(ref)
		full.Fragment = ""
		link := full.String()
		if !sameSite(link, host) || seen[link] || shouldSkip(link) {
			return
		}
		seen[link] = true
		out = append(out, link)
	})

	sort.SliceStable(out, func(i, j int) bool {
		return scoreURL(out[i], tokens) > scoreURL(out[j], tokens)
	})
	return out
}

func topN(links []string, n int) []string {
	if len(links) > n {
		return links[:n]
	}
	return links
}

func hostOf(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// sameSite accepts the exact host, the registrable suffix, and its
// subdomains. Two-level public suffixes like co.uk keep three labels.
func sameSite(u, host string) bool {
	netloc := strings.ToLower(hostOf(u))
	h := strings.ToLower(host)
	if netloc == "" {
		return false
	}
	labels := strings.Split(h, ".")
	keep := 2
	if strings.HasSuffix(h, "co.uk") || strings.HasSuffix(h, "co.in") {
		keep = 3
	}
	suffix := h
	if len(labels) > keep {
		suffix = strings.Join(labels[len(labels)-keep:], ".")
	}
	return netloc == h || netloc == suffix || strings.HasSuffix(netloc, "."+suffix)
}

func shouldSkip(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return true
	}
	path := strings.ToLower(parsed.Path)
	for _, s := range skipSubstrings {
		if strings.Contains(path, s) {
			return true
		}
	}
	return false
}

var pathWordRe = regexp.MustCompile(`[a-z0-9]+`)

func scoreURL(u string, tokens []string) int {
	parsed, err := url.Parse(u)
	if err != nil {
		return 0
	}
	words := pathWordRe.FindAllString(strings.ToLower(parsed.Path), -1)
	tset := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tset[t] = true
	}
	overlap, extra, priceBonus := 0, 0, 0
	for _, w := range words {
		if tset[w] {
			overlap++
		} else {
			extra++
		}
		if pricePageKeywords[w] {
			priceBonus = 15
		}
	}
	return overlap*10 - extra + priceBonus
}
