// Package books defines core types shared across subsystems.
package books

import "time"

// StatusFetched is the status assigned to a book record on a successful fetch.
const StatusFetched = "fetched"

// Book is the record persisted for each distinct catalog URL.
// SourceURL is the unique key; a record is created on the first
// successful fetch and only ever updated after that.
type Book struct {
	SourceURL    string     `json:"source_url"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Category     string     `json:"category,omitempty"`
	PriceInclTax *float64   `json:"price_including_tax,omitempty"`
	PriceExclTax *float64   `json:"price_excluding_tax,omitempty"`
	Availability string     `json:"availability,omitempty"`
	NumReviews   int        `json:"num_reviews"`
	Rating       *int       `json:"rating,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	Status       string     `json:"status"`
	Fingerprint  string     `json:"fingerprint,omitempty"`
	RawSnapshot  string     `json:"raw_html_snapshot,omitempty"`
	CrawledAt    time.Time  `json:"crawl_timestamp"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
}

// Checkpoint is the persisted traversal position for one crawler identity.
// An empty NextPageURL means the next run starts a fresh traversal.
type Checkpoint struct {
	CrawlerID   string    `json:"crawler_id"`
	NextPageURL string    `json:"next_page_url,omitempty"`
	Dispatched  []string  `json:"dispatched"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Empty reports whether the checkpoint describes a fresh traversal.
func (c Checkpoint) Empty() bool {
	return c.NextPageURL == "" && len(c.Dispatched) == 0
}

// Changed-field tags recorded on a ChangeRecord.
const (
	ChangePrice        = "price"
	ChangeAvailability = "availability"
)

// ChangeRecord is an append-only audit entry written when a book's
// content fingerprint changes. It is never mutated or deleted.
type ChangeRecord struct {
	ID             string    `json:"id"`
	SourceURL      string    `json:"source_url"`
	ChangedAt      time.Time `json:"changed_at"`
	OldFingerprint string    `json:"old_fingerprint"`
	NewFingerprint string    `json:"new_fingerprint"`
	Old            Book      `json:"old"`
	New            Book      `json:"new"`
	Changes        []string  `json:"changes"`
}

// SortField selects the ordering of a book listing.
type SortField string

// Supported listing sort orders.
const (
	SortByPrice   SortField = "price"
	SortByRating  SortField = "rating"
	SortByReviews SortField = "reviews"
)

// BookFilter narrows and pages a book listing.
// Zero values mean "no constraint"; Page is 1-based.
type BookFilter struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
	Rating   *int
	SortBy   SortField
	Page     int
	PerPage  int
}

// Severity classifies a notification.
type Severity string

// Notification severities.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)
