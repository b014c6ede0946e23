// Package detect re-fetches stored books and records content changes.
package detect

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geoffreykithuku/books-crawler/internal/books"
	"github.com/geoffreykithuku/books-crawler/internal/metrics"
)

// Default classification tuning.
const (
	DefaultAlertPriceDeltaPct = 10.0
	DefaultInStockMarker      = "In stock"
)

// Config tunes change-significance classification.
type Config struct {
	// AlertPriceDeltaPct is the absolute price change percentage at or
	// above which a change is significant.
	AlertPriceDeltaPct float64
	// InStockMarker is the availability substring whose appearance
	// marks a restock.
	InStockMarker string
}

func (c Config) withDefaults() Config {
	if c.AlertPriceDeltaPct <= 0 {
		c.AlertPriceDeltaPct = DefaultAlertPriceDeltaPct
	}
	if c.InStockMarker == "" {
		c.InStockMarker = DefaultInStockMarker
	}
	return c
}

// Detector scans every stored book, compares the live fingerprint
// against the stored one, and writes an audit record for each change.
type Detector struct {
	cfg      Config
	fetcher  books.Fetcher
	hasher   books.Hasher
	parser   books.Extractor
	store    books.Store
	notifier books.Notifier
	clock    books.Clock
	logger   *zap.Logger
}

// New wires a detector from its collaborators.
func New(cfg Config, fetcher books.Fetcher, hasher books.Hasher, parser books.Extractor, store books.Store, notifier books.Notifier, clock books.Clock, logger *zap.Logger) (*Detector, error) {
	if fetcher == nil || hasher == nil || parser == nil || store == nil || clock == nil {
		return nil, fmt.Errorf("fetcher, hasher, parser, store and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Detector{
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

// Run performs one sequential scan over all stored books. Fetch
// failures are logged and skipped so one dead page cannot stall the
// scan; persistence failures abort it.
func (d *Detector) Run(ctx context.Context) error {
	stored, err := d.store.ListBooks(ctx, books.BookFilter{})
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}

	var changed, skipped int
	for _, old := range stored {
		if err := ctx.Err(); err != nil {
			return err
		}
		didChange, err := d.checkBook(ctx, old)
		if err != nil {
			return err
		}
		if didChange {
			changed++
		} else {
			skipped++
		}
	}

	d.logger.Info("change scan completed",
		zap.Int("scanned", len(stored)),
		zap.Int("changed", changed),
		zap.Int("unchanged", skipped),
	)
	return nil
}

func (d *Detector) checkBook(ctx context.Context, old books.Book) (bool, error) {
	body, err := d.fetcher.Fetch(ctx, old.SourceURL)
	if err != nil {
		metrics.ObserveFetch("detail", "error")
		d.logger.Warn("fetch failed during change scan, skipping",
			zap.String("url", old.SourceURL), zap.Error(err))
		return false, nil
	}
	metrics.ObserveFetch("detail", "ok")

	fp := d.hasher.Hash(body)
	if fp == old.Fingerprint {
		return false, nil
	}

	updated, err := d.parser.ExtractBook(body, old.SourceURL)
	if err != nil {
		d.logger.Warn("extraction failed during change scan, skipping",
			zap.String("url", old.SourceURL), zap.Error(err))
		return false, nil
	}
	now := d.clock.Now()
	updated.Fingerprint = fp
	updated.RawSnapshot = string(body)
	updated.CrawledAt = now
	updated.CreatedAt = old.CreatedAt

	if _, err := d.store.UpsertBook(ctx, updated); err != nil {
		return false, fmt.Errorf("store updated book %s: %w", old.SourceURL, err)
	}

	deltaPct := priceDeltaPct(old.PriceInclTax, updated.PriceInclTax)
	tags := changeTags(old, updated)
	restocked := !strings.Contains(old.Availability, d.cfg.InStockMarker) &&
		strings.Contains(updated.Availability, d.cfg.InStockMarker)
	significant := math.Abs(deltaPct) >= d.cfg.AlertPriceDeltaPct || restocked

	rec := books.ChangeRecord{
		ID:             uuid.NewString(),
		SourceURL:      old.SourceURL,
		ChangedAt:      now,
		OldFingerprint: old.Fingerprint,
		NewFingerprint: fp,
		Old:            old,
		New:            updated,
		Changes:        tags,
	}
	if err := d.store.InsertChange(ctx, rec); err != nil {
		return false, fmt.Errorf("record change for %s: %w", old.SourceURL, err)
	}
	metrics.ObserveChange(significant)

	d.logger.Info("book changed",
		zap.String("url", old.SourceURL),
		zap.Strings("changes", tags),
		zap.Float64("price_delta_pct", deltaPct),
		zap.Bool("significant", significant),
	)

	if significant && d.notifier != nil {
		msg := fmt.Sprintf("%s (%s): price delta %.2f%%, availability %q -> %q",
			updated.Title, old.SourceURL, deltaPct, old.Availability, updated.Availability)
		if err := d.notifier.Notify(ctx, "significant book change", msg, books.SeverityWarning); err != nil {
			d.logger.Warn("change alert delivery failed",
				zap.String("url", old.SourceURL), zap.Error(err))
		} else {
			metrics.ObserveAlert()
		}
	}
	return true, nil
}

// priceDeltaPct is the relative price movement in percent. An absent
// or zero old price yields zero, never a division by zero.
func priceDeltaPct(oldPrice, newPrice *float64) float64 {
	var o, n float64
	if oldPrice != nil {
		o = *oldPrice
	}
	if newPrice != nil {
		n = *newPrice
	}
	if o == 0 {
		return 0
	}
	return (n - o) / o * 100
}

func changeTags(old, updated books.Book) []string {
	var tags []string
	if priceValue(old.PriceInclTax) != priceValue(updated.PriceInclTax) {
		tags = append(tags, books.ChangePrice)
	}
	if old.Availability != updated.Availability {
		tags = append(tags, books.ChangeAvailability)
	}
	return tags
}

func priceValue(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
