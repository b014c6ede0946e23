package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const bookPageHTML = `<!DOCTYPE html>
<html>
<body>
<ul class="breadcrumb">
  <li><a href="/">Home</a></li>
  <li><a href="/catalogue/category/books_1/index.html">Books</a></li>
  <li><a href="/catalogue/category/books/poetry_23/index.html">Poetry</a></li>
  <li class="active">A Light in the Attic</li>
</ul>
<div class="carousel">
  <div class="item active"><img src="../../media/cache/fe/72/light.jpg" alt=""/></div>
</div>
<div class="product_main">
  <h1>A Light in the Attic</h1>
  <p class="price_color">£51.77</p>
  <p class="availability">In stock (22 available)</p>
  <p class="star-rating Three"><i class="icon-star"></i></p>
</div>
<div id="product_description"><h2>Product Description</h2></div>
<p>A classic collection of poems and drawings.</p>
<table class="table table-striped">
  <tr><th>UPC</th><td>a897fe39b1053632</td></tr>
  <tr><th>Price (excl. tax)</th><td>£51.77</td></tr>
  <tr><th>Price (incl. tax)</th><td>£51.77</td></tr>
  <tr><th>Availability</th><td>In stock (22 available)</td></tr>
  <tr><th>Number of reviews</th><td>3</td></tr>
</table>
</body>
</html>`

const listingPageHTML = `<!DOCTYPE html>
<html>
<body>
<article class="product_pod">
  <h3><a href="a-light-in-the-attic_1000/index.html" title="A Light in the Attic">A Light in ...</a></h3>
</article>
<article class="product_pod">
  <h3><a href="tipping-the-velvet_999/index.html" title="Tipping the Velvet">Tipping the Velvet</a></h3>
</article>
<ul class="pager">
  <li class="next"><a href="page-2.html">next</a></li>
</ul>
</body>
</html>`

func TestExtractBook(t *testing.T) {
	t.Parallel()

	p := NewParser(zap.NewNop())
	book, err := p.ExtractBook(
		[]byte(bookPageHTML),
		"https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html",
	)
	require.NoError(t, err)

	require.Equal(t, "A Light in the Attic", book.Title)
	require.Equal(t, "Poetry", book.Category)
	require.Equal(t, "A classic collection of poems and drawings.", book.Description)
	require.NotNil(t, book.PriceInclTax)
	require.InDelta(t, 51.77, *book.PriceInclTax, 0.001)
	require.NotNil(t, book.PriceExclTax)
	require.InDelta(t, 51.77, *book.PriceExclTax, 0.001)
	require.Equal(t, "In stock (22 available)", book.Availability)
	require.Equal(t, 3, book.NumReviews)
	require.NotNil(t, book.Rating)
	require.Equal(t, 3, *book.Rating)
	require.Equal(t, "https://books.toscrape.com/media/cache/fe/72/light.jpg", book.ImageURL)
	require.Equal(t, "fetched", book.Status)
}

func TestExtractBookMissingFieldsStayZero(t *testing.T) {
	t.Parallel()

	p := NewParser(zap.NewNop())
	book, err := p.ExtractBook([]byte("<html><body><p>nothing here</p></body></html>"), "https://example.com/x")
	require.NoError(t, err)

	require.Empty(t, book.Title)
	require.Empty(t, book.Category)
	require.Nil(t, book.PriceInclTax)
	require.Nil(t, book.PriceExclTax)
	require.Nil(t, book.Rating)
	require.Zero(t, book.NumReviews)
	require.Equal(t, "https://example.com/x", book.SourceURL)
}

func TestExtractListing(t *testing.T) {
	t.Parallel()

	p := NewParser(zap.NewNop())
	listing, err := p.ExtractListing([]byte(listingPageHTML), "https://books.toscrape.com/catalogue/page-1.html")
	require.NoError(t, err)

	require.Equal(t, []string{
		"https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html",
		"https://books.toscrape.com/catalogue/tipping-the-velvet_999/index.html",
	}, listing.ItemURLs)
	require.Equal(t, "https://books.toscrape.com/catalogue/page-2.html", listing.NextPageURL)
}

func TestExtractListingLastPageHasNoNext(t *testing.T) {
	t.Parallel()

	p := NewParser(zap.NewNop())
	listing, err := p.ExtractListing(
		[]byte(`<html><body><article class="product_pod"><h3><a href="b_1/index.html">B</a></h3></article></body></html>`),
		"https://books.toscrape.com/catalogue/page-50.html",
	)
	require.NoError(t, err)
	require.Len(t, listing.ItemURLs, 1)
	require.Empty(t, listing.NextPageURL)
}

func TestParsePriceHandlesThousandsSeparator(t *testing.T) {
	t.Parallel()

	v := parsePrice("£1,234.50")
	require.NotNil(t, v)
	require.InDelta(t, 1234.50, *v, 0.001)
	require.Nil(t, parsePrice(""))
	require.Nil(t, parsePrice("free"))
}
