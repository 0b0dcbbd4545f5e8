package app

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"place_reviews/internal/domain"
)

const (
	sideloadTimeout = 10 * time.Second
	sideloadMaxSize = 5 << 20
)

// Sideloader mirrors reviewer avatars into local object storage so the
// rendered output never hotlinks a provider CDN. Every failure is logged
// and swallowed; a review without a stored avatar just keeps its URL.
type Sideloader struct {
	images  domain.ImageStore
	reviews domain.ReviewRepository
	sem     *semaphore.Weighted
	client  *http.Client
}

func NewSideloader(images domain.ImageStore, reviews domain.ReviewRepository, concurrency int64) *Sideloader {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Sideloader{
		images:  images,
		reviews: reviews,
		sem:     semaphore.NewWeighted(concurrency),
		client:  &http.Client{Timeout: sideloadTimeout},
	}
}

// Sideload downloads avatars for the given reviews, bounded by the
// configured concurrency. Blocks until every download settles.
func (s *Sideloader) Sideload(ctx context.Context, reviews []domain.Review) {
	if s.images == nil {
		return
	}
	var wg sync.WaitGroup
	for _, r := range reviews {
		if !r.HasPhoto() {
			continue
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			// context gone; stop launching but still wait for in-flight downloads
			break
		}
		wg.Add(1)
		go func(r domain.Review) {
			defer wg.Done()
			defer s.sem.Release(1)
			s.fetchOne(ctx, r)
		}(r)
	}
	wg.Wait()
}

func (s *Sideloader) fetchOne(ctx context.Context, r domain.Review) {
	ctx, cancel := context.WithTimeout(ctx, sideloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.PhotoURL, nil)
	if err != nil {
		log.Warn().Err(err).Str("external_id", r.ExternalID).Msg("avatar request build failed")
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("external_id", r.ExternalID).Msg("avatar fetch failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("external_id", r.ExternalID).Msg("avatar fetch rejected")
		return
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, sideloadMaxSize))
	if err != nil {
		log.Warn().Err(err).Str("external_id", r.ExternalID).Msg("avatar read failed")
		return
	}

	contentType := resp.Header.Get("Content-Type")
	key := avatarKey(r, ext(contentType))
	if err := s.images.Put(ctx, key, data, contentType); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("avatar store failed")
		return
	}
	if err := s.reviews.SetPhotoObject(ctx, r.ExternalID, key); err != nil {
		log.Warn().Err(err).Str("external_id", r.ExternalID).Msg("avatar link failed")
	}
}

func avatarKey(r domain.Review, ext string) string {
	place := r.PlaceID
	if place == "" {
		place = "unassigned"
	}
	return "avatars/" + place + "/" + r.ExternalID + "." + ext
}

func ext(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}
