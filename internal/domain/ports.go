package domain

import (
	"context"
	"time"
)

// Provider translates one external review source into the normalized
// review/metadata shape. Implementations are stateless per call.
type Provider interface {
	Source() string
	// Fetch pulls all pages of reviews for a place or data id.
	Fetch(ctx context.Context, id string) (FetchResult, error)
	// LookupBusiness resolves a free-text query (or a raw place id) into a
	// metadata preview. Nothing is persisted.
	LookupBusiness(ctx context.Context, query string) (Location, error)
}

type FetchResult struct {
	Reviews []Review
	Meta    Location
}

type ReviewRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*Review, error)
	// Upsert looks up by external id and updates in place, or inserts with
	// the incoming publication timestamp (current time when zero).
	Upsert(ctx context.Context, r Review) (UpsertOutcome, error)
	List(ctx context.Context, q ReviewQuery) ([]Review, error)
	Count(ctx context.Context, q ReviewQuery) (int, error)
	SetHidden(ctx context.Context, externalID string, hidden bool) error
	SetPhotoObject(ctx context.Context, externalID, object string) error
	DeleteByPlace(ctx context.Context, placeID string) (int, error)
}

// ReviewQuery drives listing and counting. Hidden reviews are excluded
// unless IncludeHidden is set.
type ReviewQuery struct {
	PlaceID       string
	MinRating     float64 // inclusive lower bound, 0 = no filter
	WithTextOnly  bool
	IncludeHidden bool
	Sort          string // newest (default) | oldest | rating_desc | rating_asc | random
	Limit         int
	Offset        int
}

type LocationSummary struct {
	PlaceID     string `json:"place_id"`
	Name        string `json:"name"`
	ReviewCount int    `json:"review_count"`
}

type Stats struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}

type LocationRepository interface {
	Get(ctx context.Context, placeID string) (Location, error)
	// Merge applies merge-if-present semantics field by field and always
	// refreshes the updated timestamp.
	Merge(ctx context.Context, placeID string, incoming Location) error
	List(ctx context.Context) ([]LocationSummary, error)
	Delete(ctx context.Context, placeID string) error
	// LiveStats computes count/average over locally stored visible reviews,
	// optionally filtered to one place (placeID == "" means all).
	LiveStats(ctx context.Context, placeID string) (Stats, error)
}

// StateStore persists small operational values such as the global
// last-synced timestamp.
type StateStore interface {
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, keys ...string) error
}

// Notifier dispatches one summary notification for newly inserted reviews.
type Notifier interface {
	SendNewReviews(ctx context.Context, reviews []Review) error
}

// ImageStore holds sideloaded avatar blobs.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// RemovePlace deletes every object under the place's prefix and returns
	// how many were removed.
	RemovePlace(ctx context.Context, placeID string) (int, error)
}
