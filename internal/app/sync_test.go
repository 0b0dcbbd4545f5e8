package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"place_reviews/internal/app"
	"place_reviews/internal/domain"
)

// ---- fakes ----

type fakeProvider struct {
	source  string
	result  domain.FetchResult
	err     error
	fetches []string
}

func (f *fakeProvider) Source() string { return f.source }
func (f *fakeProvider) Fetch(ctx context.Context, id string) (domain.FetchResult, error) {
	f.fetches = append(f.fetches, id)
	return f.result, f.err
}
func (f *fakeProvider) LookupBusiness(ctx context.Context, query string) (domain.Location, error) {
	return f.result.Meta, f.err
}

type fakeReviews struct {
	byExternalID map[string]domain.Review
	upsertErrOn  string // external id that fails to persist
	hidden       map[string]bool
	photoObjects map[string]string
	deleted      int
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{
		byExternalID: map[string]domain.Review{},
		hidden:       map[string]bool{},
		photoObjects: map[string]string{},
	}
}

func (f *fakeReviews) FindByExternalID(ctx context.Context, id string) (*domain.Review, error) {
	r, ok := f.byExternalID[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeReviews) Upsert(ctx context.Context, r domain.Review) (domain.UpsertOutcome, error) {
	if r.ExternalID == f.upsertErrOn {
		return domain.Inserted, errors.New("constraint violation")
	}
	_, exists := f.byExternalID[r.ExternalID]
	f.byExternalID[r.ExternalID] = r
	if exists {
		return domain.Updated, nil
	}
	return domain.Inserted, nil
}

func (f *fakeReviews) List(ctx context.Context, q domain.ReviewQuery) ([]domain.Review, error) {
	var out []domain.Review
	for _, r := range f.byExternalID {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeReviews) Count(ctx context.Context, q domain.ReviewQuery) (int, error) {
	return len(f.byExternalID), nil
}

func (f *fakeReviews) SetHidden(ctx context.Context, id string, hidden bool) error {
	if _, ok := f.byExternalID[id]; !ok {
		return domain.ErrNotFound
	}
	f.hidden[id] = hidden
	return nil
}

func (f *fakeReviews) SetPhotoObject(ctx context.Context, id, object string) error {
	f.photoObjects[id] = object
	return nil
}

func (f *fakeReviews) DeleteByPlace(ctx context.Context, placeID string) (int, error) {
	n := 0
	for id, r := range f.byExternalID {
		if r.PlaceID == placeID {
			delete(f.byExternalID, id)
			n++
		}
	}
	f.deleted += n
	return n, nil
}

type fakeLocations struct {
	byPlaceID map[string]domain.Location
	merges    int
	live      domain.Stats
}

func newFakeLocations() *fakeLocations {
	return &fakeLocations{byPlaceID: map[string]domain.Location{}}
}

func (f *fakeLocations) Get(ctx context.Context, placeID string) (domain.Location, error) {
	l, ok := f.byPlaceID[placeID]
	if !ok {
		return domain.Location{}, domain.ErrNotFound
	}
	return l, nil
}

func (f *fakeLocations) Merge(ctx context.Context, placeID string, incoming domain.Location) error {
	existing := f.byPlaceID[placeID]
	merged := domain.MergeLocation(existing, incoming)
	merged.PlaceID = placeID
	f.byPlaceID[placeID] = merged
	f.merges++
	return nil
}

func (f *fakeLocations) List(ctx context.Context) ([]domain.LocationSummary, error) {
	var out []domain.LocationSummary
	for id, l := range f.byPlaceID {
		out = append(out, domain.LocationSummary{PlaceID: id, Name: l.Name})
	}
	return out, nil
}

func (f *fakeLocations) Delete(ctx context.Context, placeID string) error {
	delete(f.byPlaceID, placeID)
	return nil
}

func (f *fakeLocations) LiveStats(ctx context.Context, placeID string) (domain.Stats, error) {
	return f.live, nil
}

type fakeState struct {
	times map[string]time.Time
}

func (f *fakeState) GetTime(ctx context.Context, key string) (time.Time, error) {
	if f.times == nil {
		return time.Time{}, domain.ErrNotFound
	}
	t, ok := f.times[key]
	if !ok {
		return time.Time{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeState) SetTime(ctx context.Context, key string, t time.Time) error {
	if f.times == nil {
		f.times = map[string]time.Time{}
	}
	f.times[key] = t
	return nil
}

type fakeNotifier struct {
	sent [][]domain.Review
}

func (f *fakeNotifier) SendNewReviews(ctx context.Context, rs []domain.Review) error {
	f.sent = append(f.sent, rs)
	return nil
}

type fakeCache struct {
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) { return false, nil }
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	return nil
}
func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.dels = append(c.dels, keys...)
	return nil
}

// ---- helpers ----

func newSync(p domain.Provider, reviews *fakeReviews, locations *fakeLocations, state *fakeState, notifier *fakeNotifier, cfg app.SyncConfig) *app.SyncService {
	providers := domain.NewProviders(p)
	return app.NewSyncService(providers, reviews, locations, state, notifier, &fakeCache{}, nil, cfg)
}

func rev(id string, rating float64) domain.Review {
	return domain.Review{ExternalID: id, Author: "Ana", Rating: rating, Source: "serpapi"}
}

// ---- tests ----

func TestRun_FirstSyncInsertsEverything(t *testing.T) {
	p := &fakeProvider{source: "serpapi", result: domain.FetchResult{
		Reviews: []domain.Review{rev("r1", 5), rev("r2", 4)},
		Meta:    domain.Location{Name: "Test Cafe"},
	}}
	reviews := newFakeReviews()
	locations := newFakeLocations()
	locations.byPlaceID["p1"] = domain.Location{PlaceID: "p1", DataID: "d1"}
	state := &fakeState{}
	notifier := &fakeNotifier{}

	svc := newSync(p, reviews, locations, state, notifier, app.SyncConfig{Source: "serpapi", EmailAlerts: true})
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if res.Manual {
		t.Fatalf("should not be a manual run")
	}
	if got := res.PerPlace["p1"]; got.Inserted != 2 || got.Updated != 0 {
		t.Fatalf("expected {2 0}, got %+v", got)
	}
	if len(p.fetches) != 1 || p.fetches[0] != "d1" {
		t.Fatalf("expected fetch by data id, got %v", p.fetches)
	}
	if len(notifier.sent) != 1 || len(notifier.sent[0]) != 2 {
		t.Fatalf("expected one notification with 2 reviews, got %+v", notifier.sent)
	}
	if _, err := state.GetTime(context.Background(), domain.StateLastSynced); err != nil {
		t.Fatalf("last synced not stamped: %v", err)
	}
	if locations.byPlaceID["p1"].Name != "Test Cafe" {
		t.Fatalf("metadata not merged: %+v", locations.byPlaceID["p1"])
	}
}

func TestRun_RepeatSyncUpdatesAndNotifiesOnlyInserts(t *testing.T) {
	p := &fakeProvider{source: "serpapi", result: domain.FetchResult{
		Reviews: []domain.Review{rev("r1", 5), rev("r2", 4), rev("r3", 3)},
	}}
	reviews := newFakeReviews()
	reviews.byExternalID["r1"] = rev("r1", 5)
	reviews.byExternalID["r2"] = rev("r2", 4)
	locations := newFakeLocations()
	locations.byPlaceID["p1"] = domain.Location{PlaceID: "p1"}
	notifier := &fakeNotifier{}

	svc := newSync(p, reviews, locations, &fakeState{}, notifier, app.SyncConfig{Source: "serpapi", EmailAlerts: true})
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if got := res.PerPlace["p1"]; got.Inserted != 1 || got.Updated != 2 {
		t.Fatalf("expected {1 2}, got %+v", got)
	}
	if len(notifier.sent) != 1 || len(notifier.sent[0]) != 1 || notifier.sent[0][0].ExternalID != "r3" {
		t.Fatalf("notification should carry only the new review: %+v", notifier.sent)
	}
}

func TestRun_ManualModeFetchesNothing(t *testing.T) {
	p := &fakeProvider{source: "serpapi"}
	notifier := &fakeNotifier{}
	state := &fakeState{}

	svc := newSync(p, newFakeReviews(), newFakeLocations(), state, notifier, app.SyncConfig{Source: "manual"})
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !res.Manual {
		t.Fatalf("expected manual run")
	}
	if len(p.fetches) != 0 {
		t.Fatalf("manual run must not fetch")
	}
	if _, err := state.GetTime(context.Background(), domain.StateLastSynced); err == nil {
		t.Fatalf("manual run must not stamp last synced")
	}
}

func TestRun_NoLocationsAndNoFallback(t *testing.T) {
	p := &fakeProvider{source: "serpapi"}
	svc := newSync(p, newFakeReviews(), newFakeLocations(), &fakeState{}, &fakeNotifier{}, app.SyncConfig{Source: "serpapi"})
	if _, err := svc.Run(context.Background()); !errors.Is(err, domain.ErrNoLocations) {
		t.Fatalf("expected ErrNoLocations, got %v", err)
	}
}

func TestRun_FallbackPlaceWhenStoreEmpty(t *testing.T) {
	p := &fakeProvider{source: "serpapi", result: domain.FetchResult{
		Reviews: []domain.Review{rev("r1", 5)},
	}}
	svc := newSync(p, newFakeReviews(), newFakeLocations(), &fakeState{}, &fakeNotifier{},
		app.SyncConfig{Source: "serpapi", FallbackPlaceID: "pX", FallbackFetchID: "dX"})
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(p.fetches) != 1 || p.fetches[0] != "dX" {
		t.Fatalf("expected fallback fetch id, got %v", p.fetches)
	}
	if got := res.PerPlace["pX"]; got.Inserted != 1 {
		t.Fatalf("expected insert under fallback place, got %+v", res.PerPlace)
	}
}

func TestRun_FetchFailureAbortsRun(t *testing.T) {
	p := &fakeProvider{source: "serpapi", err: &domain.ProviderError{Source: "serpapi", Msg: "quota"}}
	locations := newFakeLocations()
	locations.byPlaceID["p1"] = domain.Location{PlaceID: "p1"}
	state := &fakeState{}

	svc := newSync(p, newFakeReviews(), locations, state, &fakeNotifier{}, app.SyncConfig{Source: "serpapi"})
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected fetch error to surface")
	}
	if _, err := state.GetTime(context.Background(), domain.StateLastSynced); err == nil {
		t.Fatalf("failed run must not stamp last synced")
	}
}

func TestRun_PersistenceFailureSkipsReview(t *testing.T) {
	p := &fakeProvider{source: "serpapi", result: domain.FetchResult{
		Reviews: []domain.Review{rev("bad", 5), rev("good", 4)},
	}}
	reviews := newFakeReviews()
	reviews.upsertErrOn = "bad"
	locations := newFakeLocations()
	locations.byPlaceID["p1"] = domain.Location{PlaceID: "p1"}

	svc := newSync(p, reviews, locations, &fakeState{}, &fakeNotifier{}, app.SyncConfig{Source: "serpapi"})
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("a single bad review must not fail the run: %v", err)
	}
	if got := res.PerPlace["p1"]; got.Inserted != 1 {
		t.Fatalf("expected the good review inserted, got %+v", got)
	}
}

func TestRun_EmptyMetaSkipsMerge(t *testing.T) {
	p := &fakeProvider{source: "serpapi", result: domain.FetchResult{
		Reviews: []domain.Review{rev("r1", 5)},
	}}
	locations := newFakeLocations()
	locations.byPlaceID["p1"] = domain.Location{PlaceID: "p1", Name: "Kept"}

	svc := newSync(p, newFakeReviews(), locations, &fakeState{}, &fakeNotifier{}, app.SyncConfig{Source: "serpapi"})
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("err: %v", err)
	}
	if locations.merges != 0 {
		t.Fatalf("empty metadata must not trigger a merge")
	}
	if locations.byPlaceID["p1"].Name != "Kept" {
		t.Fatalf("existing metadata must survive")
	}
}

func TestRun_NoAlertsMeansNoNotification(t *testing.T) {
	p := &fakeProvider{source: "serpapi", result: domain.FetchResult{
		Reviews: []domain.Review{rev("r1", 5)},
	}}
	locations := newFakeLocations()
	locations.byPlaceID["p1"] = domain.Location{PlaceID: "p1"}
	notifier := &fakeNotifier{}

	svc := newSync(p, newFakeReviews(), locations, &fakeState{}, notifier, app.SyncConfig{Source: "serpapi", EmailAlerts: false})
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("alerts disabled, nothing should be sent")
	}
}

func TestConfirmLocation_PersistsMetaThenFetches(t *testing.T) {
	p := &fakeProvider{source: "serpapi", result: domain.FetchResult{
		Reviews: []domain.Review{rev("r1", 5)},
		Meta:    domain.Location{Rating: fptr(4.4)},
	}}
	reviews := newFakeReviews()
	locations := newFakeLocations()

	svc := newSync(p, reviews, locations, &fakeState{}, &fakeNotifier{}, app.SyncConfig{Source: "serpapi"})
	counts, err := svc.ConfirmLocation(context.Background(), domain.Location{
		PlaceID:    "p1",
		DataID:     "d1",
		Name:       "Manual Name",
		PriceLevel: iptr(3),
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if counts.Inserted != 1 {
		t.Fatalf("expected one insert, got %+v", counts)
	}
	loc := locations.byPlaceID["p1"]
	if loc.Name != "Manual Name" || loc.PriceLevel == nil || *loc.PriceLevel != 3 {
		t.Fatalf("manual metadata lost: %+v", loc)
	}
	// sparse provider meta merged on top without clobbering manual fields
	if loc.Rating == nil || *loc.Rating != 4.4 {
		t.Fatalf("provider rating not merged: %+v", loc)
	}
}

func TestConfirmLocation_ManualModeStoresWithoutFetch(t *testing.T) {
	p := &fakeProvider{source: "serpapi"}
	locations := newFakeLocations()

	svc := newSync(p, newFakeReviews(), locations, &fakeState{}, &fakeNotifier{}, app.SyncConfig{Source: "manual"})
	counts, err := svc.ConfirmLocation(context.Background(), domain.Location{PlaceID: "p1", Name: "Cafe"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if counts.Inserted != 0 || counts.Updated != 0 {
		t.Fatalf("manual confirm must not touch reviews: %+v", counts)
	}
	if len(p.fetches) != 0 {
		t.Fatalf("manual confirm must not fetch")
	}
	if locations.byPlaceID["p1"].Name != "Cafe" {
		t.Fatalf("metadata not stored")
	}
}

func TestDeleteLocation_ReportsCounts(t *testing.T) {
	reviews := newFakeReviews()
	r1 := rev("r1", 5)
	r1.PlaceID = "p1"
	r2 := rev("r2", 4)
	r2.PlaceID = "p1"
	r3 := rev("r3", 3)
	r3.PlaceID = "other"
	reviews.byExternalID["r1"] = r1
	reviews.byExternalID["r2"] = r2
	reviews.byExternalID["r3"] = r3
	locations := newFakeLocations()
	locations.byPlaceID["p1"] = domain.Location{PlaceID: "p1"}

	svc := newSync(&fakeProvider{source: "serpapi"}, reviews, locations, &fakeState{}, &fakeNotifier{}, app.SyncConfig{Source: "serpapi"})
	out, err := svc.DeleteLocation(context.Background(), "p1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if out.ReviewsDeleted != 2 {
		t.Fatalf("expected 2 reviews deleted, got %d", out.ReviewsDeleted)
	}
	if _, ok := locations.byPlaceID["p1"]; ok {
		t.Fatalf("location should be gone")
	}
	if _, ok := reviews.byExternalID["r3"]; !ok {
		t.Fatalf("other place's reviews must survive")
	}
}

func TestDeleteLocation_UnknownPlace(t *testing.T) {
	svc := newSync(&fakeProvider{source: "serpapi"}, newFakeReviews(), newFakeLocations(), &fakeState{}, &fakeNotifier{}, app.SyncConfig{})
	if _, err := svc.DeleteLocation(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetVisibility(t *testing.T) {
	reviews := newFakeReviews()
	r := rev("r1", 5)
	r.PlaceID = "p1"
	reviews.byExternalID["r1"] = r

	svc := newSync(&fakeProvider{source: "serpapi"}, reviews, newFakeLocations(), &fakeState{}, &fakeNotifier{}, app.SyncConfig{})
	if err := svc.SetVisibility(context.Background(), "r1", true); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !reviews.hidden["r1"] {
		t.Fatalf("review not hidden")
	}
	if err := svc.SetVisibility(context.Background(), "missing", true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImportReviews_SkipsExistingAndCountsErrors(t *testing.T) {
	reviews := newFakeReviews()
	reviews.byExternalID["r1"] = rev("r1", 5)

	svc := newSync(&fakeProvider{source: "serpapi"}, reviews, newFakeLocations(), &fakeState{}, &fakeNotifier{}, app.SyncConfig{})
	batch := []domain.Review{
		rev("r1", 4),                             // already stored, must not be overwritten
		{ExternalID: "r2", Author: "Bo"},         // new, rating and source defaulted
		{ExternalID: "", Author: "Nobody"},       // no external id
		{ExternalID: "r3", Author: "", Text: "x"}, // no author
	}

	st, err := svc.ImportReviews(context.Background(), batch)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if st.Imported != 1 || st.Skipped != 1 || st.Errors != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if got := reviews.byExternalID["r1"].Rating; got != 5 {
		t.Fatalf("existing review overwritten: rating %v", got)
	}
	imported := reviews.byExternalID["r2"]
	if imported.Rating != 5 || imported.Source != domain.SourceManual {
		t.Fatalf("defaults not applied: %+v", imported)
	}
}

func TestImportReviews_PersistenceFailureCountsError(t *testing.T) {
	reviews := newFakeReviews()
	reviews.upsertErrOn = "bad"

	svc := newSync(&fakeProvider{source: "serpapi"}, reviews, newFakeLocations(), &fakeState{}, &fakeNotifier{}, app.SyncConfig{})
	st, err := svc.ImportReviews(context.Background(), []domain.Review{
		rev("bad", 5), rev("ok", 4),
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if st.Imported != 1 || st.Errors != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func fptr(f float64) *float64 { return &f }
func iptr(n int) *int         { return &n }
