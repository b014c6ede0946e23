// Package crawl orchestrates the paginated catalog traversal.
//
// Listing pages are walked sequentially; item pages fetch under a
// shared concurrency bound. After each page's items are dispatched the
// checkpoint is advanced to the next listing page, so an interrupted
// run resumes from the page it was on. Re-dispatching an already
// stored item is harmless because storage is an idempotent upsert
// keyed by source URL.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/geoffreykithuku/books-crawler/internal/books"
	"github.com/geoffreykithuku/books-crawler/internal/extract"
	"github.com/geoffreykithuku/books-crawler/internal/metrics"
)

// Default dispatch tuning.
const (
	DefaultConcurrency    = 8
	DefaultItemAttempts   = 3
	DefaultItemRetryDelay = 5 * time.Second
)

// PageParser extracts structured data from listing and detail pages.
type PageParser interface {
	books.Extractor
	ExtractListing(content []byte, pageURL string) (extract.Listing, error)
}

// Config tunes one orchestrator instance.
type Config struct {
	// RootURL is the first listing page of a fresh traversal.
	RootURL string
	// CrawlerID namespaces the persisted checkpoint.
	CrawlerID string
	// Concurrency bounds in-flight item fetches across all pages.
	Concurrency int
	// ItemAttempts is the total number of tries per item.
	ItemAttempts int
	// ItemRetryDelay is multiplied by the attempt number between tries.
	ItemRetryDelay time.Duration
	// FailFast aborts the run on the first exhausted item; otherwise
	// failures are counted and the run completes.
	FailFast bool
}

func (c Config) withDefaults() Config {
	if c.CrawlerID == "" {
		c.CrawlerID = "main"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ItemAttempts <= 0 {
		c.ItemAttempts = DefaultItemAttempts
	}
	if c.ItemRetryDelay <= 0 {
		c.ItemRetryDelay = DefaultItemRetryDelay
	}
	return c
}

// Orchestrator drives checkpointed catalog crawls.
type Orchestrator struct {
	cfg      Config
	fetcher  books.Fetcher
	hasher   books.Hasher
	parser   PageParser
	store    books.Store
	notifier books.Notifier
	clock    books.Clock
	logger   *zap.Logger
}

// New wires an orchestrator from its collaborators.
func New(cfg Config, fetcher books.Fetcher, hasher books.Hasher, parser PageParser, store books.Store, notifier books.Notifier, clock books.Clock, logger *zap.Logger) (*Orchestrator, error) {
	if cfg.RootURL == "" {
		return nil, fmt.Errorf("crawler root url is required")
	}
	if fetcher == nil || hasher == nil || parser == nil || store == nil || clock == nil {
		return nil, fmt.Errorf("fetcher, hasher, parser, store and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Orchestrator{
		cfg:      cfg.withDefaults(),
		fetcher:  fetcher,
		hasher:   hasher,
		parser:   parser,
		store:    store,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Run executes one crawl: resume from the stored checkpoint if one
// exists, walk listing pages to the end, then reset the checkpoint.
// A returned error means the run stopped early and the checkpoint was
// left in place for the next run to resume from.
func (o *Orchestrator) Run(ctx context.Context) error {
	cp, err := o.store.LoadCheckpoint(ctx, o.cfg.CrawlerID)
	if err != nil && !errors.Is(err, books.ErrNotFound) {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	pageURL := o.cfg.RootURL
	dispatched := make(map[string]struct{}, len(cp.Dispatched))
	for _, u := range cp.Dispatched {
		dispatched[u] = struct{}{}
	}
	if !cp.Empty() {
		if cp.NextPageURL != "" {
			pageURL = cp.NextPageURL
		}
		o.logger.Info("resuming crawl from checkpoint",
			zap.String("crawler_id", o.cfg.CrawlerID),
			zap.String("page_url", pageURL),
			zap.Int("dispatched", len(dispatched)),
		)
	} else {
		o.logger.Info("starting fresh crawl",
			zap.String("crawler_id", o.cfg.CrawlerID),
			zap.String("page_url", pageURL),
		)
	}

	var (
		group    *errgroup.Group
		groupCtx = ctx
	)
	if o.cfg.FailFast {
		group, groupCtx = errgroup.WithContext(ctx)
	} else {
		group = new(errgroup.Group)
	}
	sem := semaphore.NewWeighted(int64(o.cfg.Concurrency))

	var failures atomic.Int64
	order := make([]string, 0, len(cp.Dispatched))
	order = append(order, cp.Dispatched...)

	if err := o.walkPages(ctx, groupCtx, pageURL, dispatched, &order, group, sem, &failures); err != nil {
		// Workers already launched still need to finish before the
		// run can report, and a fail-fast worker error takes
		// precedence over the page-walk error it caused.
		if waitErr := group.Wait(); waitErr != nil {
			err = waitErr
		}
		metrics.ObserveRun("failed")
		return err
	}

	if err := group.Wait(); err != nil {
		metrics.ObserveRun("failed")
		return fmt.Errorf("item dispatch: %w", err)
	}
	if n := failures.Load(); n > 0 {
		o.logger.Warn("crawl completed with item failures", zap.Int64("failed_items", n))
	}

	reset := books.Checkpoint{CrawlerID: o.cfg.CrawlerID, UpdatedAt: o.clock.Now()}
	if err := o.store.SaveCheckpoint(ctx, reset); err != nil {
		metrics.ObserveRun("failed")
		return fmt.Errorf("reset checkpoint: %w", err)
	}

	metrics.ObserveRun("completed")
	o.logger.Info("crawl completed",
		zap.String("crawler_id", o.cfg.CrawlerID),
		zap.Int("items_dispatched", len(order)),
	)
	return nil
}

// walkPages traverses listing pages sequentially, dispatching item
// work and advancing the checkpoint after each page.
func (o *Orchestrator) walkPages(ctx, groupCtx context.Context, pageURL string, dispatched map[string]struct{}, order *[]string, group *errgroup.Group, sem *semaphore.Weighted, failures *atomic.Int64) error {
	for pageURL != "" {
		if err := groupCtx.Err(); err != nil {
			return err
		}

		body, err := o.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			metrics.ObserveFetch("listing", "error")
			return fmt.Errorf("fetch listing page %s: %w", pageURL, err)
		}
		metrics.ObserveFetch("listing", "ok")

		listing, err := o.parser.ExtractListing(body, pageURL)
		if err != nil {
			return fmt.Errorf("parse listing page %s: %w", pageURL, err)
		}

		for _, itemURL := range listing.ItemURLs {
			if _, seen := dispatched[itemURL]; seen {
				continue
			}
			dispatched[itemURL] = struct{}{}
			*order = append(*order, itemURL)

			group.Go(func() error {
				err := o.processItem(groupCtx, sem, itemURL)
				if err == nil {
					return nil
				}
				if o.cfg.FailFast {
					return err
				}
				failures.Add(1)
				o.logger.Error("item failed after all attempts",
					zap.String("url", itemURL), zap.Error(err))
				return nil
			})
		}

		cp := books.Checkpoint{
			CrawlerID:   o.cfg.CrawlerID,
			NextPageURL: listing.NextPageURL,
			Dispatched:  append([]string(nil), *order...),
			UpdatedAt:   o.clock.Now(),
		}
		if err := o.store.SaveCheckpoint(ctx, cp); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}

		o.logger.Debug("listing page dispatched",
			zap.String("page_url", pageURL),
			zap.Int("items", len(listing.ItemURLs)),
			zap.String("next_page_url", listing.NextPageURL),
		)
		pageURL = listing.NextPageURL
	}
	return nil
}

// processItem runs the fetch-hash-store pipeline for one item URL,
// retrying on any error with a linearly growing delay. The semaphore
// is held only while work is in flight, not while waiting to retry.
func (o *Orchestrator) processItem(ctx context.Context, sem *semaphore.Weighted, itemURL string) error {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.ItemAttempts; attempt++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		metrics.IncActiveItems()
		lastErr = o.fetchAndStore(ctx, itemURL)
		metrics.DecActiveItems()
		sem.Release(1)

		if lastErr == nil {
			return nil
		}
		o.logger.Warn("item attempt failed",
			zap.String("url", itemURL),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt < o.cfg.ItemAttempts {
			delay := time.Duration(attempt) * o.cfg.ItemRetryDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	metrics.ObserveItemFailure()
	return fmt.Errorf("item %s: %w", itemURL, lastErr)
}

func (o *Orchestrator) fetchAndStore(ctx context.Context, itemURL string) error {
	body, err := o.fetcher.Fetch(ctx, itemURL)
	if err != nil {
		metrics.ObserveFetch("detail", "error")
		return fmt.Errorf("fetch item: %w", err)
	}
	metrics.ObserveFetch("detail", "ok")

	now := o.clock.Now()
	fp := o.hasher.Hash(body)

	existing, err := o.store.FindBook(ctx, itemURL)
	switch {
	case err == nil && existing.Fingerprint == fp:
		// Content unchanged: refresh the crawl timestamp only.
		if err := o.store.TouchBook(ctx, itemURL, now); err != nil {
			return fmt.Errorf("touch unchanged item: %w", err)
		}
		metrics.ObserveItem("unchanged")
		return nil
	case err != nil && !errors.Is(err, books.ErrNotFound):
		return fmt.Errorf("look up item: %w", err)
	}

	book, err := o.parser.ExtractBook(body, itemURL)
	if err != nil {
		return fmt.Errorf("extract item: %w", err)
	}
	book.Fingerprint = fp
	book.RawSnapshot = string(body)
	book.CrawledAt = now

	inserted, err := o.store.UpsertBook(ctx, book)
	if err != nil {
		return fmt.Errorf("store item: %w", err)
	}
	if !inserted {
		metrics.ObserveItem("updated")
		return nil
	}
	metrics.ObserveItem("created")

	if o.notifier != nil {
		msg := fmt.Sprintf("%s (%s)", book.Title, book.SourceURL)
		if err := o.notifier.Notify(ctx, "new book discovered", msg, books.SeverityInfo); err != nil {
			o.logger.Warn("new item notification failed",
				zap.String("url", itemURL), zap.Error(err))
		}
	}
	return nil
}
