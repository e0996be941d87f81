package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPrices(t *testing.T) {
	hits := ExtractPrices("MOT from £45, oil change € 30,50 and AC regas ₹2500")
	require.Len(t, hits, 3)
	assert.Equal(t, 45.0, hits[0].Price)
	assert.Equal(t, "GBP", hits[0].Currency)
	assert.Equal(t, 30.50, hits[1].Price)
	assert.Equal(t, "EUR", hits[1].Currency)
	assert.Equal(t, 2500.0, hits[2].Price)
	assert.Equal(t, "INR", hits[2].Currency)
	// Document order.
	assert.Less(t, hits[0].Position, hits[1].Position)
}

func TestExtractPrices_NoMatchNeverErrors(t *testing.T) {
	assert.Empty(t, ExtractPrices("no prices here"))
	assert.Empty(t, ExtractPrices(""))
	// A bare zero is not a price.
	assert.Empty(t, ExtractPrices("£0"))
}

func TestFindPriceInHTML_ContextAware(t *testing.T) {
	html := `<html><body>
		<div>Car AC repair — full regas ₹2500</div>
		<footer>Web design by studio — $9999</footer>
	</body></html>`

	hit, ok := FindPriceInHTML(html, []string{"car", "ac", "repair"})
	require.True(t, ok)
	assert.Equal(t, 2500.0, hit.Price)
	assert.Equal(t, "INR", hit.Currency)
}

func TestFindPriceInHTML_UnrelatedFooterRejected(t *testing.T) {
	html := `<html><body>
		<div>We fix bicycles.</div>
		<div>Hosting offer $5</div>
	</body></html>`

	_, ok := FindPriceInHTML(html, []string{"car", "ac", "repair"})
	assert.False(t, ok)
}

func TestFindPriceInHTML_PrefersTightestContainer(t *testing.T) {
	html := `<html><body>
		<div>Our car ac repair services. Spread over a longer description of
		 the car ac repair offer with a price of £80 somewhere in it.
			<li>car ac repair £60</li>
		</div>
	</body></html>`

	hit, ok := FindPriceInHTML(html, []string{"car", "ac", "repair"})
	require.True(t, ok)
	assert.Equal(t, 60.0, hit.Price)
}

func TestFastHit_ShortCircuits(t *testing.T) {
	_, ok := FastHit("<div>car ac repair but no currency marker</div>", []string{"car", "ac"})
	assert.False(t, ok)

	_, ok = FastHit("<div>£50 but wrong tokens</div>", []string{"car", "ac"})
	assert.False(t, ok)
}

func TestHTMLToText(t *testing.T) {
	html := `<html><head><script>var x=1;</script></head>
		<body><nav>menu</nav><p>Visible   text</p><footer>foot</footer></body></html>`
	text := HTMLToText(html, 100)
	assert.Equal(t, "Visible text", text)

	assert.Equal(t, "abc", HTMLToText("<p>abcdef</p>", 3))
}
