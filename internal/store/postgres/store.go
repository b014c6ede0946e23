// Package postgres provides the Postgres-backed Store implementation.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geoffreykithuku/books-crawler/internal/books"
)

// Expected schema. The unique key on books.source_url is a hard
// precondition: checkpoint writes run ahead of item completion, which
// is only safe because the upsert below is idempotent by key.
//
//	CREATE TABLE books (
//		source_url        TEXT PRIMARY KEY,
//		title             TEXT NOT NULL DEFAULT '',
//		description       TEXT NOT NULL DEFAULT '',
//		category          TEXT NOT NULL DEFAULT '',
//		price_incl_tax    DOUBLE PRECISION,
//		price_excl_tax    DOUBLE PRECISION,
//		availability      TEXT NOT NULL DEFAULT '',
//		num_reviews       INTEGER NOT NULL DEFAULT 0,
//		rating            INTEGER,
//		image_url         TEXT NOT NULL DEFAULT '',
//		status            TEXT NOT NULL DEFAULT 'fetched',
//		fingerprint       TEXT NOT NULL DEFAULT '',
//		raw_html_snapshot TEXT NOT NULL DEFAULT '',
//		crawl_timestamp   TIMESTAMPTZ NOT NULL,
//		created_at        TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE crawl_checkpoints (
//		crawler_id    TEXT PRIMARY KEY,
//		next_page_url TEXT NOT NULL DEFAULT '',
//		dispatched    JSONB NOT NULL DEFAULT '[]',
//		updated_at    TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE book_changes (
//		id              UUID PRIMARY KEY,
//		source_url      TEXT NOT NULL,
//		changed_at      TIMESTAMPTZ NOT NULL,
//		old_fingerprint TEXT NOT NULL DEFAULT '',
//		new_fingerprint TEXT NOT NULL DEFAULT '',
//		old_doc         JSONB NOT NULL,
//		new_doc         JSONB NOT NULL,
//		changes         JSONB NOT NULL DEFAULT '[]'
//	);
//	CREATE INDEX book_changes_changed_at_idx ON book_changes (changed_at DESC);

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements books.Store over pgx.
type Store struct {
	pool dbConn
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool dbConn) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertBookSQL = `
INSERT INTO books (
	source_url, title, description, category,
	price_incl_tax, price_excl_tax, availability, num_reviews,
	rating, image_url, status, fingerprint, raw_html_snapshot,
	crawl_timestamp, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14
)
ON CONFLICT (source_url) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	category = EXCLUDED.category,
	price_incl_tax = EXCLUDED.price_incl_tax,
	price_excl_tax = EXCLUDED.price_excl_tax,
	availability = EXCLUDED.availability,
	num_reviews = EXCLUDED.num_reviews,
	rating = EXCLUDED.rating,
	image_url = EXCLUDED.image_url,
	status = EXCLUDED.status,
	fingerprint = EXCLUDED.fingerprint,
	raw_html_snapshot = EXCLUDED.raw_html_snapshot,
	crawl_timestamp = EXCLUDED.crawl_timestamp
RETURNING (xmax = 0)`

// UpsertBook inserts or updates a record keyed by SourceURL and reports
// whether an insert took place. The insert path sets created_at to the
// crawl timestamp; the update path never touches it.
func (s *Store) UpsertBook(ctx context.Context, book books.Book) (bool, error) {
	var inserted bool
	err := s.pool.QueryRow(ctx, upsertBookSQL,
		book.SourceURL,
		book.Title,
		book.Description,
		book.Category,
		book.PriceInclTax,
		book.PriceExclTax,
		book.Availability,
		book.NumReviews,
		book.Rating,
		book.ImageURL,
		book.Status,
		book.Fingerprint,
		book.RawSnapshot,
		book.CrawledAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert book: %w", err)
	}
	return inserted, nil
}

const selectBookColumns = `
	source_url, title, description, category,
	price_incl_tax, price_excl_tax, availability, num_reviews,
	rating, image_url, status, fingerprint, raw_html_snapshot,
	crawl_timestamp, created_at`

// FindBook fetches a record by source URL.
func (s *Store) FindBook(ctx context.Context, sourceURL string) (books.Book, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+selectBookColumns+` FROM books WHERE source_url = $1`, sourceURL)
	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return books.Book{}, books.ErrNotFound
		}
		return books.Book{}, fmt.Errorf("find book: %w", err)
	}
	return book, nil
}

// TouchBook advances only the crawl timestamp of an existing record.
func (s *Store) TouchBook(ctx context.Context, sourceURL string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE books SET crawl_timestamp = $2 WHERE source_url = $1`, sourceURL, at)
	if err != nil {
		return fmt.Errorf("touch book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return books.ErrNotFound
	}
	return nil
}

// ListBooks returns records matching the filter.
func (s *Store) ListBooks(ctx context.Context, filter books.BookFilter) ([]books.Book, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = "+arg(filter.Category))
	}
	if filter.Rating != nil {
		clauses = append(clauses, "rating = "+arg(*filter.Rating))
	}
	if filter.MinPrice != nil {
		clauses = append(clauses, "price_incl_tax >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		clauses = append(clauses, "price_incl_tax <= "+arg(*filter.MaxPrice))
	}

	query := `SELECT` + selectBookColumns + ` FROM books`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	switch filter.SortBy {
	case books.SortByPrice:
		query += " ORDER BY price_incl_tax ASC NULLS LAST"
	case books.SortByReviews:
		query += " ORDER BY num_reviews DESC"
	default:
		query += " ORDER BY rating DESC NULLS LAST"
	}
	if filter.PerPage > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", arg(filter.PerPage), arg((page-1)*filter.PerPage))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	out := make([]books.Book, 0)
	for rows.Next() {
		book, scanErr := scanBook(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan book row: %w", scanErr)
		}
		out = append(out, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list books rows: %w", err)
	}
	return out, nil
}

// SaveCheckpoint upserts the checkpoint for its crawler identity.
func (s *Store) SaveCheckpoint(ctx context.Context, cp books.Checkpoint) error {
	dispatched, err := json.Marshal(cp.Dispatched)
	if err != nil {
		return fmt.Errorf("marshal dispatched set: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO crawl_checkpoints (crawler_id, next_page_url, dispatched, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (crawler_id) DO UPDATE SET
	next_page_url = EXCLUDED.next_page_url,
	dispatched = EXCLUDED.dispatched,
	updated_at = EXCLUDED.updated_at`,
		cp.CrawlerID, cp.NextPageURL, dispatched, cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint fetches the checkpoint for a crawler identity.
func (s *Store) LoadCheckpoint(ctx context.Context, crawlerID string) (books.Checkpoint, error) {
	var (
		cp         books.Checkpoint
		dispatched []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT crawler_id, next_page_url, dispatched, updated_at FROM crawl_checkpoints WHERE crawler_id = $1`,
		crawlerID,
	).Scan(&cp.CrawlerID, &cp.NextPageURL, &dispatched, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return books.Checkpoint{}, books.ErrNotFound
		}
		return books.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if err := json.Unmarshal(dispatched, &cp.Dispatched); err != nil {
		return books.Checkpoint{}, fmt.Errorf("unmarshal dispatched set: %w", err)
	}
	return cp, nil
}

// InsertChange appends an audit entry. Rows are never updated or deleted.
func (s *Store) InsertChange(ctx context.Context, rec books.ChangeRecord) error {
	oldDoc, err := json.Marshal(rec.Old)
	if err != nil {
		return fmt.Errorf("marshal old snapshot: %w", err)
	}
	newDoc, err := json.Marshal(rec.New)
	if err != nil {
		return fmt.Errorf("marshal new snapshot: %w", err)
	}
	changes, err := json.Marshal(rec.Changes)
	if err != nil {
		return fmt.Errorf("marshal change tags: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO book_changes (
	id, source_url, changed_at, old_fingerprint, new_fingerprint, old_doc, new_doc, changes
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.SourceURL, rec.ChangedAt, rec.OldFingerprint, rec.NewFingerprint, oldDoc, newDoc, changes)
	if err != nil {
		return fmt.Errorf("insert change record: %w", err)
	}
	return nil
}

// ChangesBetween returns audit entries with changed_at in [from, to),
// newest first.
func (s *Store) ChangesBetween(ctx context.Context, from, to time.Time) ([]books.ChangeRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, source_url, changed_at, old_fingerprint, new_fingerprint, old_doc, new_doc, changes
FROM book_changes
WHERE changed_at >= $1 AND changed_at < $2
ORDER BY changed_at DESC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query change records: %w", err)
	}
	defer rows.Close()

	out := make([]books.ChangeRecord, 0)
	for rows.Next() {
		var (
			rec                     books.ChangeRecord
			oldDoc, newDoc, changes []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.SourceURL, &rec.ChangedAt,
			&rec.OldFingerprint, &rec.NewFingerprint,
			&oldDoc, &newDoc, &changes,
		); err != nil {
			return nil, fmt.Errorf("scan change row: %w", err)
		}
		if err := json.Unmarshal(oldDoc, &rec.Old); err != nil {
			return nil, fmt.Errorf("unmarshal old snapshot: %w", err)
		}
		if err := json.Unmarshal(newDoc, &rec.New); err != nil {
			return nil, fmt.Errorf("unmarshal new snapshot: %w", err)
		}
		if err := json.Unmarshal(changes, &rec.Changes); err != nil {
			return nil, fmt.Errorf("unmarshal change tags: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("change record rows: %w", err)
	}
	return out, nil
}

func scanBook(row pgx.Row) (books.Book, error) {
	var b books.Book
	err := row.Scan(
		&b.SourceURL, &b.Title, &b.Description, &b.Category,
		&b.PriceInclTax, &b.PriceExclTax, &b.Availability, &b.NumReviews,
		&b.Rating, &b.ImageURL, &b.Status, &b.Fingerprint, &b.RawSnapshot,
		&b.CrawledAt, &b.CreatedAt,
	)
	if err != nil {
		return books.Book{}, err
	}
	return b, nil
}
