package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/geoffreykithuku/books-crawler/internal/books"
	"github.com/geoffreykithuku/books-crawler/internal/extract"
	"github.com/geoffreykithuku/books-crawler/internal/fingerprint"
	"github.com/geoffreykithuku/books-crawler/internal/notify"
	"github.com/geoffreykithuku/books-crawler/internal/store/memory"
)

const (
	page1URL = "https://example.test/catalogue/page-1.html"
	page2URL = "https://example.test/catalogue/page-2.html"
	book1URL = "https://example.test/catalogue/b1.html"
	book2URL = "https://example.test/catalogue/b2.html"
	book3URL = "https://example.test/catalogue/b3.html"
)

const page1HTML = `<html><body>
<article class="product_pod"><h3><a href="b1.html">B1</a></h3></article>
<article class="product_pod"><h3><a href="b2.html">B2</a></h3></article>
<ul class="pager"><li class="next"><a href="page-2.html">next</a></li></ul>
</body></html>`

const page2HTML = `<html><body>
<article class="product_pod"><h3><a href="b3.html">B3</a></h3></article>
</body></html>`

func bookHTML(title, price string) string {
	return fmt.Sprintf(`<html><body>
<div class="product_main"><h1>%s</h1></div>
<table class="table table-striped">
<tr><th>Price (incl. tax)</th><td>%s</td></tr>
<tr><th>Availability</th><td>In stock (5 available)</td></tr>
<tr><th>Number of reviews</th><td>0</td></tr>
</table>
</body></html>`, title, price)
}

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]int
	hits     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{
			page1URL: page1HTML,
			page2URL: page2HTML,
			book1URL: bookHTML("Book One", "£10.00"),
			book2URL: bookHTML("Book Two", "£20.00"),
			book3URL: bookHTML("Book Three", "£30.00"),
		},
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[url]++
	if f.failures[url] > 0 {
		f.failures[url]--
		return nil, errors.New("connection reset")
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("unexpected url %s", url)
	}
	return []byte(body), nil
}

func (f *fakeFetcher) hitCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[url]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newOrchestrator(t *testing.T, cfg Config, fetcher books.Fetcher, store books.Store, notifier books.Notifier, clock books.Clock) *Orchestrator {
	t.Helper()
	if cfg.RootURL == "" {
		cfg.RootURL = page1URL
	}
	if cfg.ItemRetryDelay == 0 {
		cfg.ItemRetryDelay = time.Millisecond
	}
	o, err := New(cfg, fetcher, fingerprint.New(), extract.NewParser(nil), store, notifier, clock, nil)
	require.NoError(t, err)
	return o
}

func TestRunCrawlsAllPagesAndResetsCheckpoint(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	store := memory.New()
	notifier := notify.NewMemoryNotifier()
	clock := &fakeClock{t: time.Unix(1700000000, 0).UTC()}

	o := newOrchestrator(t, Config{FailFast: true}, fetcher, store, notifier, clock)
	require.NoError(t, o.Run(context.Background()))

	for _, url := range []string{book1URL, book2URL, book3URL} {
		book, err := store.FindBook(context.Background(), url)
		require.NoError(t, err)
		require.NotEmpty(t, book.Fingerprint)
		require.NotEmpty(t, book.Title)
	}

	cp, err := store.LoadCheckpoint(context.Background(), "main")
	require.NoError(t, err)
	require.True(t, cp.Empty())

	sent := notifier.Sent()
	require.Len(t, sent, 3)
	for _, n := range sent {
		require.Equal(t, "new book discovered", n.Subject)
		require.Equal(t, books.SeverityInfo, n.Severity)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	store := memory.New()
	clock := &fakeClock{t: time.Unix(1700000000, 0).UTC()}

	require.NoError(t, store.SaveCheckpoint(context.Background(), books.Checkpoint{
		CrawlerID:   "main",
		NextPageURL: page2URL,
		Dispatched:  []string{book1URL, book2URL},
		UpdatedAt:   clock.Now(),
	}))

	o := newOrchestrator(t, Config{FailFast: true}, fetcher, store, notify.NewMemoryNotifier(), clock)
	require.NoError(t, o.Run(context.Background()))

	require.Zero(t, fetcher.hitCount(page1URL))
	require.Zero(t, fetcher.hitCount(book1URL))
	require.Zero(t, fetcher.hitCount(book2URL))
	require.Equal(t, 1, fetcher.hitCount(book3URL))

	_, err := store.FindBook(context.Background(), book3URL)
	require.NoError(t, err)
	_, err = store.FindBook(context.Background(), book1URL)
	require.ErrorIs(t, err, books.ErrNotFound)
}

func TestRunRetriesFailedItems(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.failures[book2URL] = 1
	store := memory.New()
	clock := &fakeClock{t: time.Unix(1700000000, 0).UTC()}

	o := newOrchestrator(t, Config{FailFast: true, ItemAttempts: 3}, fetcher, store, notify.NewMemoryNotifier(), clock)
	require.NoError(t, o.Run(context.Background()))

	require.Equal(t, 2, fetcher.hitCount(book2URL))
	_, err := store.FindBook(context.Background(), book2URL)
	require.NoError(t, err)
}

func TestRunFailFastPreservesCheckpoint(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.failures[book2URL] = 100
	store := memory.New()
	clock := &fakeClock{t: time.Unix(1700000000, 0).UTC()}

	o := newOrchestrator(t, Config{FailFast: true, ItemAttempts: 2}, fetcher, store, notify.NewMemoryNotifier(), clock)
	err := o.Run(context.Background())
	require.Error(t, err)

	cp, loadErr := store.LoadCheckpoint(context.Background(), "main")
	require.NoError(t, loadErr)
	require.False(t, cp.Empty())
	require.Contains(t, cp.Dispatched, book2URL)
}

func TestRunCollectModeCompletesDespiteFailures(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.failures[book2URL] = 100
	store := memory.New()
	clock := &fakeClock{t: time.Unix(1700000000, 0).UTC()}

	o := newOrchestrator(t, Config{FailFast: false, ItemAttempts: 2}, fetcher, store, notify.NewMemoryNotifier(), clock)
	require.NoError(t, o.Run(context.Background()))

	_, err := store.FindBook(context.Background(), book1URL)
	require.NoError(t, err)
	_, err = store.FindBook(context.Background(), book3URL)
	require.NoError(t, err)
	_, err = store.FindBook(context.Background(), book2URL)
	require.ErrorIs(t, err, books.ErrNotFound)

	cp, err := store.LoadCheckpoint(context.Background(), "main")
	require.NoError(t, err)
	require.True(t, cp.Empty())
}

func TestRunUnchangedContentTouchesTimestampOnly(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	store := memory.New()
	notifier := notify.NewMemoryNotifier()
	clock := &fakeClock{t: time.Unix(1700000000, 0).UTC()}

	o := newOrchestrator(t, Config{FailFast: true}, fetcher, store, notifier, clock)
	require.NoError(t, o.Run(context.Background()))

	first, err := store.FindBook(context.Background(), book1URL)
	require.NoError(t, err)

	clock.advance(time.Hour)
	require.NoError(t, o.Run(context.Background()))

	second, err := store.FindBook(context.Background(), book1URL)
	require.NoError(t, err)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.Equal(t, first.Fingerprint, second.Fingerprint)
	require.True(t, second.CrawledAt.After(first.CrawledAt))

	// Nothing new was discovered on the second pass.
	require.Len(t, notifier.Sent(), 3)
}
