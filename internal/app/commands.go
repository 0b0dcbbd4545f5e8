package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"place_reviews/internal/adapters/observability"
	"place_reviews/internal/domain"
)

// SyncConfig is the slice of runtime settings the sync service acts on.
type SyncConfig struct {
	Source          string // google|serpapi|scrapingdog|manual
	FallbackPlaceID string // used when no locations are stored yet
	FallbackFetchID string
	EmailAlerts     bool
}

type SyncService struct {
	providers  domain.Providers
	reviews    domain.ReviewRepository
	locations  domain.LocationRepository
	state      domain.StateStore
	notifier   domain.Notifier
	cache      domain.Cache
	sideloader *Sideloader
	cfg        SyncConfig
}

func NewSyncService(
	providers domain.Providers,
	reviews domain.ReviewRepository,
	locations domain.LocationRepository,
	state domain.StateStore,
	notifier domain.Notifier,
	cache domain.Cache,
	sideloader *Sideloader,
	cfg SyncConfig,
) *SyncService {
	return &SyncService{
		providers:  providers,
		reviews:    reviews,
		locations:  locations,
		state:      state,
		notifier:   notifier,
		cache:      cache,
		sideloader: sideloader,
		cfg:        cfg,
	}
}

// syncTarget is one place to pull during a run.
type syncTarget struct {
	placeID string
	fetchID string // identifier the provider wants (place id or data id)
}

// Run executes one full sync pass: fetch every tracked location from the
// configured source, upsert reviews, merge place metadata, sideload new
// avatars, and notify about inserts. A fetch failure aborts the run;
// persistence failures on individual reviews are logged and skipped.
func (s *SyncService) Run(ctx context.Context) (domain.SyncResult, error) {
	res := domain.SyncResult{
		RunID:    uuid.NewString(),
		PerPlace: map[string]domain.PlaceCounts{},
	}

	if s.cfg.Source == "" || s.cfg.Source == domain.SourceManual {
		res.Manual = true
		observability.ObserveSyncRun("manual")
		log.Info().Str("run_id", res.RunID).Msg("manual mode, nothing to fetch")
		return res, nil
	}

	provider, err := s.providers.For(s.cfg.Source)
	if err != nil {
		observability.ObserveSyncRun("error")
		return res, err
	}

	targets, err := s.resolveTargets(ctx)
	if err != nil {
		observability.ObserveSyncRun("error")
		return res, err
	}

	for _, t := range targets {
		fetched, err := provider.Fetch(ctx, t.fetchID)
		if err != nil {
			observability.ObserveSyncRun("error")
			return res, err
		}

		counts := res.PerPlace[t.placeID]
		for _, r := range fetched.Reviews {
			if r.PlaceID == "" {
				r.PlaceID = t.placeID
			}
			outcome, uerr := s.reviews.Upsert(ctx, r)
			if uerr != nil {
				log.Warn().Err(uerr).
					Str("run_id", res.RunID).
					Str("external_id", r.ExternalID).
					Msg("review skipped")
				continue
			}
			if outcome == domain.Inserted {
				counts.Inserted++
				res.NewReviews = append(res.NewReviews, r)
			} else {
				counts.Updated++
			}
		}
		res.PerPlace[t.placeID] = counts

		if t.placeID != "" && !fetched.Meta.IsEmpty() {
			if merr := s.locations.Merge(ctx, t.placeID, fetched.Meta); merr != nil {
				log.Warn().Err(merr).Str("place_id", t.placeID).Msg("metadata merge failed")
			}
		}
	}

	if s.sideloader != nil {
		s.sideloader.Sideload(ctx, res.NewReviews)
	}

	if len(res.NewReviews) > 0 && s.cfg.EmailAlerts && s.notifier != nil {
		if nerr := s.notifier.SendNewReviews(ctx, res.NewReviews); nerr != nil {
			log.Warn().Err(nerr).Str("run_id", res.RunID).Msg("notification failed")
		}
	}

	res.LastSynced = time.Now().UTC()
	if serr := s.state.SetTime(ctx, domain.StateLastSynced, res.LastSynced); serr != nil {
		log.Warn().Err(serr).Msg("last synced stamp failed")
	}

	s.invalidate(ctx, placeIDs(targets))

	observability.ObserveSyncRun("ok")
	observability.ObserveSyncReviews("inserted", res.TotalInserted())
	observability.ObserveSyncReviews("updated", res.TotalUpdated())
	log.Info().
		Str("run_id", res.RunID).
		Int("inserted", res.TotalInserted()).
		Int("updated", res.TotalUpdated()).
		Msg("sync complete")
	return res, nil
}

// resolveTargets lists stored locations, falling back to the configured
// place when the store is empty.
func (s *SyncService) resolveTargets(ctx context.Context) ([]syncTarget, error) {
	sums, err := s.locations.List(ctx)
	if err != nil {
		return nil, err
	}

	if len(sums) == 0 {
		if s.cfg.FallbackPlaceID == "" && s.cfg.FallbackFetchID == "" {
			return nil, domain.ErrNoLocations
		}
		fetchID := s.cfg.FallbackFetchID
		if fetchID == "" {
			fetchID = s.cfg.FallbackPlaceID
		}
		return []syncTarget{{placeID: s.cfg.FallbackPlaceID, fetchID: fetchID}}, nil
	}

	targets := make([]syncTarget, 0, len(sums))
	for _, sum := range sums {
		loc, gerr := s.locations.Get(ctx, sum.PlaceID)
		if gerr != nil {
			return nil, gerr
		}
		targets = append(targets, syncTarget{placeID: loc.PlaceID, fetchID: fetchIDFor(s.cfg.Source, loc)})
	}
	return targets, nil
}

// fetchIDFor picks the identifier the source keys on. Scraping providers
// key on the data id when one is stored.
func fetchIDFor(source string, loc domain.Location) string {
	if source != domain.SourceGoogle && loc.DataID != "" {
		return loc.DataID
	}
	return loc.PlaceID
}

func placeIDs(targets []syncTarget) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t.placeID != "" {
			out = append(out, t.placeID)
		}
	}
	return out
}

// LookupBusiness previews business metadata from the configured source
// without persisting anything.
func (s *SyncService) LookupBusiness(ctx context.Context, query string) (domain.Location, error) {
	if s.cfg.Source == "" || s.cfg.Source == domain.SourceManual {
		return domain.Location{}, &domain.ConfigError{Msg: "no remote data source configured"}
	}
	provider, err := s.providers.For(s.cfg.Source)
	if err != nil {
		return domain.Location{}, err
	}
	return provider.LookupBusiness(ctx, query)
}

// ConfirmLocation persists admin-confirmed metadata for a place and then
// pulls its reviews from the configured source. In manual mode only the
// metadata is stored.
func (s *SyncService) ConfirmLocation(ctx context.Context, loc domain.Location) (domain.PlaceCounts, error) {
	var counts domain.PlaceCounts
	if loc.PlaceID == "" {
		return counts, &domain.ConfigError{Msg: "place id required"}
	}

	if err := s.locations.Merge(ctx, loc.PlaceID, loc); err != nil {
		return counts, err
	}
	s.invalidate(ctx, []string{loc.PlaceID})

	if s.cfg.Source == "" || s.cfg.Source == domain.SourceManual {
		return counts, nil
	}
	provider, err := s.providers.For(s.cfg.Source)
	if err != nil {
		return counts, err
	}

	fetched, err := provider.Fetch(ctx, fetchIDFor(s.cfg.Source, loc))
	if err != nil {
		return counts, err
	}

	var inserted []domain.Review
	for _, r := range fetched.Reviews {
		if r.PlaceID == "" {
			r.PlaceID = loc.PlaceID
		}
		outcome, uerr := s.reviews.Upsert(ctx, r)
		if uerr != nil {
			log.Warn().Err(uerr).Str("external_id", r.ExternalID).Msg("review skipped")
			continue
		}
		if outcome == domain.Inserted {
			counts.Inserted++
			inserted = append(inserted, r)
		} else {
			counts.Updated++
		}
	}

	if !fetched.Meta.IsEmpty() {
		if merr := s.locations.Merge(ctx, loc.PlaceID, fetched.Meta); merr != nil {
			log.Warn().Err(merr).Str("place_id", loc.PlaceID).Msg("metadata merge failed")
		}
	}
	if s.sideloader != nil {
		s.sideloader.Sideload(ctx, inserted)
	}
	s.invalidate(ctx, []string{loc.PlaceID})
	return counts, nil
}

// DeleteOutcome reports what a location removal took with it.
type DeleteOutcome struct {
	ReviewsDeleted int `json:"reviews_deleted"`
	ImagesDeleted  int `json:"images_deleted"`
}

// DeleteLocation removes the place, its stored reviews, and its sideloaded
// avatars. Image cleanup is best effort.
func (s *SyncService) DeleteLocation(ctx context.Context, placeID string) (DeleteOutcome, error) {
	var out DeleteOutcome

	if _, err := s.locations.Get(ctx, placeID); err != nil {
		return out, err
	}

	n, err := s.reviews.DeleteByPlace(ctx, placeID)
	if err != nil {
		return out, err
	}
	out.ReviewsDeleted = n

	if s.sideloader != nil && s.sideloader.images != nil {
		removed, ierr := s.sideloader.images.RemovePlace(ctx, placeID)
		out.ImagesDeleted = removed
		if ierr != nil {
			log.Warn().Err(ierr).Str("place_id", placeID).Msg("avatar cleanup incomplete")
		}
	}

	if err := s.locations.Delete(ctx, placeID); err != nil {
		return out, err
	}
	s.invalidate(ctx, []string{placeID})
	return out, nil
}

// ImportStats summarizes an import run.
type ImportStats struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// ImportReviews restores a previously exported batch. Reviews already
// stored (matched by external id) are skipped, never overwritten; records
// missing an external id or author count as errors.
func (s *SyncService) ImportReviews(ctx context.Context, batch []domain.Review) (ImportStats, error) {
	var st ImportStats
	places := map[string]struct{}{}

	for _, rv := range batch {
		if rv.ExternalID == "" || rv.Author == "" {
			st.Errors++
			continue
		}
		existing, err := s.reviews.FindByExternalID(ctx, rv.ExternalID)
		if err != nil {
			return st, err
		}
		if existing != nil {
			st.Skipped++
			continue
		}
		if rv.Rating == 0 {
			rv.Rating = 5
		}
		if rv.Source == "" {
			rv.Source = domain.SourceManual
		}
		if _, uerr := s.reviews.Upsert(ctx, rv); uerr != nil {
			log.Warn().Err(uerr).Str("external_id", rv.ExternalID).Msg("import skipped review")
			st.Errors++
			continue
		}
		if rv.PlaceID != "" {
			places[rv.PlaceID] = struct{}{}
		}
		st.Imported++
	}

	if st.Imported > 0 {
		pids := make([]string, 0, len(places))
		for pid := range places {
			pids = append(pids, pid)
		}
		s.invalidate(ctx, pids)
	}
	log.Info().
		Int("imported", st.Imported).
		Int("skipped", st.Skipped).
		Int("errors", st.Errors).
		Msg("review import complete")
	return st, nil
}

// SetVisibility hides or unhides one review by its external id.
func (s *SyncService) SetVisibility(ctx context.Context, externalID string, hidden bool) error {
	r, err := s.reviews.FindByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if r == nil {
		return domain.ErrNotFound
	}
	if err := s.reviews.SetHidden(ctx, externalID, hidden); err != nil {
		return err
	}
	s.invalidate(ctx, []string{r.PlaceID})
	return nil
}

// invalidate drops the bounded cache keys touched by a write: the location
// listing plus per-place stats and schema snapshots. Review listings are
// not cached, so nothing else can go stale.
func (s *SyncService) invalidate(ctx context.Context, placeIDs []string) {
	if s.cache == nil {
		return
	}
	keys := []string{cacheKeyLocations, statsKey("")}
	for _, pid := range placeIDs {
		if pid == "" {
			continue
		}
		keys = append(keys, statsKey(pid), schemaKey(pid))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		log.Warn().Err(err).Msg("cache invalidation failed")
	}
}
