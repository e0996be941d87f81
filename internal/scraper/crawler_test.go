package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameSite(t *testing.T) {
	assert.True(t, sameSite("https://example.com/prices", "example.com"))
	assert.True(t, sameSite("https://www.example.com/", "example.com"))
	assert.True(t, sameSite("https://shop.example.co.uk/x", "www.example.co.uk"))
	assert.False(t, sameSite("https://other.com/", "example.com"))
	assert.False(t, sameSite("relative/path", "example.com"))
}

func TestShouldSkip(t *testing.T) {
	assert.True(t, shouldSkip("https://example.com/blog/post"))
	assert.True(t, shouldSkip("https://example.com/privacy"))
	assert.True(t, shouldSkip("https://example.com/catalogue.pdf"))
	assert.False(t, shouldSkip("https://example.com/services/ac-repair"))
}

func TestScoreURL(t *testing.T) {
	tokens := []string{"car", "ac", "repair"}
	pricing := scoreURL("https://x.com/car-ac-repair-pricing", tokens)
	generic := scoreURL("https://x.com/our-team-and-history", tokens)
	assert.Greater(t, pricing, generic)
	// Price keywords earn the bonus even without token overlap.
	assert.Greater(t, scoreURL("https://x.com/prices", nil), scoreURL("https://x.com/gallery", nil))
}

func TestExtractLinks_RanksAndFilters(t *testing.T) {
	html := `<html><body>
		<a href="/car-ac-repair-prices">prices</a>
		<a href="/gallery">gallery</a>
		<a href="https://facebook.com/page">fb</a>
		<a href="/blog/news-item">blog</a>
		<a href="/car-ac-repair-prices">dup</a>
	</body></html>`

	links := ExtractLinks("https://example.com/", html, "example.com", []string{"car", "ac", "repair"})
	require.Len(t, links, 2)
	assert.Equal(t, "https://example.com/car-ac-repair-prices", links[0])
}

func TestCrawlForPrice_RegexHitOnSubpage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<p>Welcome to CoolCar, car ac repair specialists</p>
			<a href="/car-ac-repair-rates">rates</a>
		</body></html>`)
	})
	mux.HandleFunc("/car-ac-repair-rates", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div>Car AC repair regas ₹2500</div></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewCrawler()
	res, err := c.CrawlForPrice(context.Background(), srv.URL, "car ac repair")
	require.NoError(t, err)
	require.NotNil(t, res.Hit)
	assert.Equal(t, 2500.0, res.Hit.Price)
	assert.Equal(t, "INR", res.Hit.Currency)

	u, _ := url.Parse(res.HitURL)
	assert.Equal(t, "/car-ac-repair-rates", u.Path)
}

func TestCrawlForPrice_NoHitTracksBestPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>We do car ac repair, call for a quote.</p></body></html>`)
	}))
	defer srv.Close()

	c := NewCrawler()
	res, err := c.CrawlForPrice(context.Background(), srv.URL, "car ac repair")
	require.NoError(t, err)
	assert.Nil(t, res.Hit)
	assert.Equal(t, 3, res.BestOverlap)
	assert.Contains(t, res.BestText, "car ac repair")
}

func TestCrawlForPrice_HomepageUnreachable(t *testing.T) {
	c := NewCrawler()
	_, err := c.CrawlForPrice(context.Background(), "http://127.0.0.1:1/none", "car ac repair")
	assert.Error(t, err)
}
