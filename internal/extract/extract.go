// Package extract parses catalog markup into structured records.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/geoffreykithuku/books-crawler/internal/books"
)

var (
	priceRe = regexp.MustCompile(`([\d,.]+)`)

	ratingWords = map[string]int{
		"One":   1,
		"Two":   2,
		"Three": 3,
		"Four":  4,
		"Five":  5,
	}
)

// Parser implements books.Extractor over goquery documents. It never
// fails on malformed-but-parseable markup; fields it cannot locate are
// left at their zero values.
type Parser struct {
	logger *zap.Logger
}

// NewParser builds a Parser.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// ExtractBook parses a book detail page into a Book keyed by sourceURL.
func (p *Parser) ExtractBook(content []byte, sourceURL string) (books.Book, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return books.Book{}, fmt.Errorf("parse book page: %w", err)
	}

	b := books.Book{
		SourceURL: sourceURL,
		Status:    books.StatusFetched,
	}
	b.Title = strings.TrimSpace(doc.Find("div.product_main h1").First().Text())
	b.Description = strings.TrimSpace(doc.Find("#product_description ~ p").First().Text())

	crumbs := doc.Find("ul.breadcrumb li a")
	if crumbs.Length() >= 3 {
		b.Category = strings.TrimSpace(crumbs.Last().Text())
	}

	table := make(map[string]string)
	doc.Find("table.table.table-striped tr").Each(func(_ int, s *goquery.Selection) {
		key := strings.TrimSpace(s.Find("th").First().Text())
		if key != "" {
			table[key] = strings.TrimSpace(s.Find("td").First().Text())
		}
	})

	b.PriceInclTax = parsePrice(table["Price (incl. tax)"])
	b.PriceExclTax = parsePrice(table["Price (excl. tax)"])
	b.Availability = table["Availability"]
	if b.Availability == "" {
		b.Availability = strings.TrimSpace(doc.Find("p.availability").First().Text())
	}
	if n, convErr := strconv.Atoi(table["Number of reviews"]); convErr == nil {
		b.NumReviews = n
	}

	if src, ok := findImage(doc); ok {
		b.ImageURL = resolveRef(sourceURL, src)
	}
	if rating, ok := findRating(doc); ok {
		b.Rating = &rating
	}

	return b, nil
}

// Listing is the outcome of parsing one catalog listing page.
type Listing struct {
	// ItemURLs are the absolute book detail URLs found on the page.
	ItemURLs []string
	// NextPageURL is the absolute next listing page, or "" at the end
	// of the traversal.
	NextPageURL string
}

// ExtractListing pulls item links and the next-page reference from a
// listing page. Relative hrefs are resolved against pageURL.
func (p *Parser) ExtractListing(content []byte, pageURL string) (Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return Listing{}, fmt.Errorf("parse listing page: %w", err)
	}

	var listing Listing
	doc.Find("article.product_pod h3 a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		listing.ItemURLs = append(listing.ItemURLs, resolveRef(pageURL, href))
	})

	if href, ok := doc.Find("li.next a").First().Attr("href"); ok && href != "" {
		listing.NextPageURL = resolveRef(pageURL, href)
	}

	return listing, nil
}

func parsePrice(s string) *float64 {
	if s == "" {
		return nil
	}
	m := priceRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

func findImage(doc *goquery.Document) (string, bool) {
	for _, sel := range []string{"div.carousel img", "div.item.active img", "img"} {
		if src, ok := doc.Find(sel).First().Attr("src"); ok && src != "" {
			return src, true
		}
	}
	return "", false
}

func findRating(doc *goquery.Document) (int, bool) {
	classes, ok := doc.Find("p.star-rating").First().Attr("class")
	if !ok {
		return 0, false
	}
	for _, c := range strings.Fields(classes) {
		if rating, found := ratingWords[c]; found {
			return rating, true
		}
	}
	return 0, false
}

func resolveRef(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
