package books

import (
	"context"
	"time"
)

// Fetcher retrieves the raw body of a single page. Implementations
// retry transport-level failures internally; HTTP status errors
// propagate immediately.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Hasher computes the content fingerprint used as change-detection identity.
type Hasher interface {
	Hash(data []byte) string
}

// Extractor turns a book detail page into structured attributes.
// It is pure: no network access, and malformed-but-parseable input
// never returns an error (absent fields stay zero).
type Extractor interface {
	ExtractBook(content []byte, sourceURL string) (Book, error)
}

// Store is the persistence surface. All operations are atomic at
// single-record granularity; a unique index on the book source URL is
// a hard precondition for upsert idempotency.
type Store interface {
	// UpsertBook inserts or updates the record keyed by SourceURL and
	// reports whether an insert took place. Inserts set CreatedAt;
	// updates leave it untouched.
	UpsertBook(ctx context.Context, book Book) (inserted bool, err error)
	// FindBook returns ErrNotFound for an unknown source URL.
	FindBook(ctx context.Context, sourceURL string) (Book, error)
	// TouchBook advances only the crawl timestamp of an existing record.
	TouchBook(ctx context.Context, sourceURL string, at time.Time) error
	ListBooks(ctx context.Context, filter BookFilter) ([]Book, error)

	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	// LoadCheckpoint returns ErrNotFound when no checkpoint exists for
	// the crawler identity.
	LoadCheckpoint(ctx context.Context, crawlerID string) (Checkpoint, error)

	InsertChange(ctx context.Context, rec ChangeRecord) error
	// ChangesBetween returns records with ChangedAt in [from, to),
	// ordered descending by ChangedAt.
	ChangesBetween(ctx context.Context, from, to time.Time) ([]ChangeRecord, error)
}

// Notifier delivers alerts for new-item discovery and significant
// changes. Delivery failures must never abort the calling pipeline;
// callers log and continue.
type Notifier interface {
	Notify(ctx context.Context, subject, message string, severity Severity) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
