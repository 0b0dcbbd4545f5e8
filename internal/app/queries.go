package app

import (
	"context"
	"strings"
	"time"

	"place_reviews/internal/domain"
)

const cacheKeyLocations = "locations"

func statsKey(placeID string) string  { return "stats:" + placeID }
func schemaKey(placeID string) string { return "schema:" + placeID }

// ReviewsPage is one page of a review listing.
type ReviewsPage struct {
	Items   []domain.Review `json:"items"`
	Total   int             `json:"total"`
	HasMore bool            `json:"has_more"`
}

type QueryService struct {
	reviews   domain.ReviewRepository
	locations domain.LocationRepository
	state     domain.StateStore
	cache     domain.Cache
	cacheTTL  time.Duration
}

func NewQueryService(r domain.ReviewRepository, l domain.LocationRepository, st domain.StateStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{reviews: r, locations: l, state: st, cache: c, cacheTTL: ttl}
}

// ListReviews pages through stored reviews. Listings are served straight
// from the store; the query space is unbounded so they are never cached.
func (s *QueryService) ListReviews(ctx context.Context, q domain.ReviewQuery) (ReviewsPage, error) {
	items, err := s.reviews.List(ctx, q)
	if err != nil {
		return ReviewsPage{}, err
	}
	total, err := s.reviews.Count(ctx, q)
	if err != nil {
		return ReviewsPage{}, err
	}
	if items == nil {
		items = []domain.Review{}
	}
	return ReviewsPage{
		Items:   items,
		Total:   total,
		HasMore: q.Offset+len(items) < total,
	}, nil
}

// ExportReviews dumps every stored review, hidden ones included, for
// backup. The output round-trips through ImportReviews.
func (s *QueryService) ExportReviews(ctx context.Context) ([]domain.Review, error) {
	items, err := s.reviews.List(ctx, domain.ReviewQuery{IncludeHidden: true})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Review{}
	}
	return items, nil
}

// Stats returns the aggregate rating for one place (or all places when
// placeID is empty). A provider-reported aggregate wins over the local
// computation because the provider sees reviews we never stored.
func (s *QueryService) Stats(ctx context.Context, placeID string) (domain.Stats, error) {
	key := statsKey(placeID)
	var st domain.Stats
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &st); ok {
			return st, nil
		}
	}

	st, err := s.computeStats(ctx, placeID)
	if err != nil {
		return domain.Stats{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, st, int(s.cacheTTL.Seconds()))
	}
	return st, nil
}

func (s *QueryService) computeStats(ctx context.Context, placeID string) (domain.Stats, error) {
	if placeID != "" {
		loc, err := s.locations.Get(ctx, placeID)
		if err == nil && loc.ReviewCount != nil && *loc.ReviewCount > 0 && loc.Rating != nil {
			return domain.Stats{Count: *loc.ReviewCount, AverageRating: *loc.Rating}, nil
		}
		if err != nil && err != domain.ErrNotFound {
			return domain.Stats{}, err
		}
	}
	return s.locations.LiveStats(ctx, placeID)
}

func (s *QueryService) Location(ctx context.Context, placeID string) (domain.Location, error) {
	return s.locations.Get(ctx, placeID)
}

func (s *QueryService) Locations(ctx context.Context) ([]domain.LocationSummary, error) {
	var out []domain.LocationSummary
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, cacheKeyLocations, &out); ok {
			return out, nil
		}
	}
	out, err := s.locations.List(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.LocationSummary{}
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKeyLocations, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

// LastSynced returns the zero time when no run has completed yet.
func (s *QueryService) LastSynced(ctx context.Context) (time.Time, error) {
	t, err := s.state.GetTime(ctx, domain.StateLastSynced)
	if err == domain.ErrNotFound {
		return time.Time{}, nil
	}
	return t, err
}

// Schema builds a schema.org LocalBusiness document for the place,
// suitable for embedding as JSON-LD.
func (s *QueryService) Schema(ctx context.Context, placeID string) (map[string]any, error) {
	key := schemaKey(placeID)
	var doc map[string]any
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &doc); ok {
			return doc, nil
		}
	}

	loc, err := s.locations.Get(ctx, placeID)
	if err != nil {
		return nil, err
	}
	st, err := s.computeStats(ctx, placeID)
	if err != nil {
		return nil, err
	}

	doc = map[string]any{
		"@context": "https://schema.org",
		"@type":    "LocalBusiness",
		"name":     loc.Name,
	}
	if loc.Address != "" {
		doc["address"] = loc.Address
	}
	if loc.Phone != "" {
		doc["telephone"] = loc.Phone
	}
	if loc.Website != "" {
		doc["url"] = loc.Website
	}
	if loc.Lat != nil && loc.Lng != nil {
		doc["geo"] = map[string]any{
			"@type":     "GeoCoordinates",
			"latitude":  *loc.Lat,
			"longitude": *loc.Lng,
		}
	}
	if loc.PriceLevel != nil && *loc.PriceLevel > 0 {
		doc["priceRange"] = strings.Repeat("$", *loc.PriceLevel)
	}
	if len(loc.Hours) > 0 {
		hours := make([]string, 0, len(loc.Hours))
		for _, dh := range loc.Hours {
			hours = append(hours, dh.Day+" "+dh.Hours)
		}
		doc["openingHours"] = hours
	}
	if st.Count > 0 {
		doc["aggregateRating"] = map[string]any{
			"@type":       "AggregateRating",
			"ratingValue": st.AverageRating,
			"reviewCount": st.Count,
		}
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, doc, int(s.cacheTTL.Seconds()))
	}
	return doc, nil
}
