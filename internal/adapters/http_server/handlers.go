package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"place_reviews/internal/app"
	"place_reviews/internal/domain"
)

// ListDefaults are the panel-managed listing settings applied when the
// corresponding query parameter is absent.
type ListDefaults struct {
	Limit     int
	Sort      string
	MinRating float64
}

type Handlers struct {
	Sync     *app.SyncService
	Q        *app.QueryService
	Defaults ListDefaults
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/sync", h.runSync)
	s.mux.Get("/v1/business", h.lookupBusiness)
	s.mux.Post("/v1/locations", h.confirmLocation)
	s.mux.Get("/v1/locations", h.listLocations)
	s.mux.Get("/v1/locations/{placeID}", h.getLocation)
	s.mux.Delete("/v1/locations/{placeID}", h.deleteLocation)
	s.mux.Get("/v1/locations/{placeID}/schema", h.getSchema)
	s.mux.Get("/v1/reviews", h.listReviews)
	s.mux.Get("/v1/reviews/export", h.exportReviews)
	s.mux.Post("/v1/reviews/import", h.importReviews)
	s.mux.Patch("/v1/reviews/{externalID}/visibility", h.setVisibility)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem+json statuses.
func writeError(w http.ResponseWriter, err error) {
	var pe *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrNoLocations):
		writeProblem(w, http.StatusConflict, "No Locations", err.Error())
	case errors.Is(err, domain.ErrUnknownSource), domain.IsConfigError(err):
		writeProblem(w, http.StatusUnprocessableEntity, "Configuration", err.Error())
	case errors.As(err, &pe):
		writeProblem(w, http.StatusBadGateway, "Upstream", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal", "internal error")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCachedJSON writes v with an ETag, honoring If-None-Match.
func writeCachedJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// ---- view models ----

type reviewView struct {
	ExternalID  string  `json:"external_id"`
	PlaceID     string  `json:"place_id,omitempty"`
	Author      string  `json:"author"`
	AuthorURL   string  `json:"author_url,omitempty"`
	PhotoURL    string  `json:"photo_url,omitempty"`
	PhotoObject string  `json:"photo_object,omitempty"`
	Rating      float64 `json:"rating"`
	Text        string  `json:"text,omitempty"`
	Source      string  `json:"source"`
	Hidden      bool    `json:"hidden"`
	PublishedAt string  `json:"published_at"`
}

func toReviewView(r domain.Review) reviewView {
	return reviewView{
		ExternalID:  r.ExternalID,
		PlaceID:     r.PlaceID,
		Author:      r.Author,
		AuthorURL:   r.AuthorURL,
		PhotoURL:    r.PhotoURL,
		PhotoObject: r.PhotoObject,
		Rating:      r.Rating,
		Text:        r.Text,
		Source:      r.Source,
		Hidden:      r.Hidden,
		PublishedAt: r.PublishedAt.UTC().Format(time.RFC3339),
	}
}

type hoursView struct {
	Day   string `json:"day"`
	Hours string `json:"hours"`
}

type locationView struct {
	PlaceID     string      `json:"place_id"`
	DataID      string      `json:"data_id,omitempty"`
	Name        string      `json:"name"`
	Address     string      `json:"address,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Lat         *float64    `json:"lat,omitempty"`
	Lng         *float64    `json:"lng,omitempty"`
	PriceLevel  *int        `json:"price_level,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`
	ReviewCount *int        `json:"review_count,omitempty"`
	MapsURL     string      `json:"maps_url,omitempty"`
	Website     string      `json:"website,omitempty"`
	Hours       []hoursView `json:"hours,omitempty"`
	Updated     string      `json:"updated,omitempty"`
}

func toLocationView(l domain.Location) locationView {
	v := locationView{
		PlaceID:     l.PlaceID,
		DataID:      l.DataID,
		Name:        l.Name,
		Address:     l.Address,
		Phone:       l.Phone,
		Lat:         l.Lat,
		Lng:         l.Lng,
		PriceLevel:  l.PriceLevel,
		Rating:      l.Rating,
		ReviewCount: l.ReviewCount,
		MapsURL:     l.MapsURL,
		Website:     l.Website,
	}
	for _, dh := range l.Hours {
		v.Hours = append(v.Hours, hoursView{Day: dh.Day, Hours: dh.Hours})
	}
	if !l.Updated.IsZero() {
		v.Updated = l.Updated.UTC().Format(time.RFC3339)
	}
	return v
}

// ---- handlers ----

type syncResponse struct {
	RunID      string                        `json:"run_id"`
	Manual     bool                          `json:"manual"`
	Inserted   int                           `json:"inserted"`
	Updated    int                           `json:"updated"`
	PerPlace   map[string]domain.PlaceCounts `json:"per_place"`
	LastSynced string                        `json:"last_synced,omitempty"`
}

func (h *Handlers) runSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.Sync.Run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := syncResponse{
		RunID:    res.RunID,
		Manual:   res.Manual,
		Inserted: res.TotalInserted(),
		Updated:  res.TotalUpdated(),
		PerPlace: res.PerPlace,
	}
	if !res.LastSynced.IsZero() {
		out.LastSynced = res.LastSynced.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) lookupBusiness(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		query = r.URL.Query().Get("place_id")
	}
	if query == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "query or place_id is required")
		return
	}
	loc, err := h.Sync.LookupBusiness(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLocationView(loc))
}

type confirmRequest struct {
	PlaceID     string      `json:"place_id"`
	DataID      string      `json:"data_id"`
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	Phone       string      `json:"phone"`
	Lat         *float64    `json:"lat"`
	Lng         *float64    `json:"lng"`
	PriceLevel  *int        `json:"price_level"`
	Rating      *float64    `json:"rating"`
	ReviewCount *int        `json:"review_count"`
	MapsURL     string      `json:"maps_url"`
	Website     string      `json:"website"`
	Hours       []hoursView `json:"hours"`
}

func (h *Handlers) confirmLocation(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "malformed JSON")
		return
	}
	if req.PlaceID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "place_id is required")
		return
	}
	if req.PriceLevel != nil && (*req.PriceLevel < 0 || *req.PriceLevel > 4) {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "price_level must be between 0 and 4")
		return
	}

	loc := domain.Location{
		PlaceID:     req.PlaceID,
		DataID:      req.DataID,
		Name:        req.Name,
		Address:     req.Address,
		Phone:       req.Phone,
		Lat:         req.Lat,
		Lng:         req.Lng,
		PriceLevel:  req.PriceLevel,
		Rating:      req.Rating,
		ReviewCount: req.ReviewCount,
		MapsURL:     req.MapsURL,
		Website:     req.Website,
	}
	for _, dh := range req.Hours {
		loc.Hours = append(loc.Hours, domain.DayHours{Day: dh.Day, Hours: dh.Hours})
	}

	counts, err := h.Sync.ConfirmLocation(r.Context(), loc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, counts)
}

type locationsResponse struct {
	Items      []domain.LocationSummary `json:"items"`
	LastSynced string                   `json:"last_synced,omitempty"`
}

func (h *Handlers) listLocations(w http.ResponseWriter, r *http.Request) {
	items, err := h.Q.Locations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := locationsResponse{Items: items}
	if ts, terr := h.Q.LastSynced(r.Context()); terr == nil && !ts.IsZero() {
		out.LastSynced = ts.UTC().Format(time.RFC3339)
	}
	writeCachedJSON(w, r, out)
}

func (h *Handlers) getLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.Q.Location(r.Context(), chi.URLParam(r, "placeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCachedJSON(w, r, toLocationView(loc))
}

func (h *Handlers) deleteLocation(w http.ResponseWriter, r *http.Request) {
	out, err := h.Sync.DeleteLocation(r.Context(), chi.URLParam(r, "placeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getSchema(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Q.Schema(r.Context(), chi.URLParam(r, "placeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	etag, body := calcETagAndBody(doc)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/ld+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write schema body")
	}
}

var validSorts = map[string]bool{
	"": true, "newest": true, "oldest": true,
	"rating_desc": true, "rating_asc": true, "random": true,
}

type reviewsResponse struct {
	Items   []reviewView `json:"items"`
	Total   int          `json:"total"`
	HasMore bool         `json:"has_more"`
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	q := domain.ReviewQuery{
		PlaceID:   r.URL.Query().Get("place_id"),
		Sort:      h.Defaults.Sort,
		Limit:     h.Defaults.Limit,
		MinRating: h.Defaults.MinRating,
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if s := r.URL.Query().Get("sort"); s != "" {
		if !validSorts[s] {
			writeProblem(w, http.StatusBadRequest, "Invalid sort", "sort must be newest, oldest, rating_desc, rating_asc or random")
			return
		}
		q.Sort = s
	}
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		q.Limit = l
	}
	if os := r.URL.Query().Get("offset"); os != "" {
		o, err := strconv.Atoi(os)
		if err != nil || o < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid offset", "offset must be a non-negative integer")
			return
		}
		q.Offset = o
	}
	if ms := r.URL.Query().Get("min_rating"); ms != "" {
		m, err := strconv.ParseFloat(ms, 64)
		if err != nil || m < 0 || m > 5 {
			writeProblem(w, http.StatusBadRequest, "Invalid min_rating", "min_rating must be between 0 and 5")
			return
		}
		q.MinRating = m
	}

	page, err := h.Q.ListReviews(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	out := reviewsResponse{
		Items:   make([]reviewView, 0, len(page.Items)),
		Total:   page.Total,
		HasMore: page.HasMore,
	}
	for _, item := range page.Items {
		out.Items = append(out.Items, toReviewView(item))
	}
	writeCachedJSON(w, r, out)
}

// exportReviews dumps every stored review, hidden included, as a backup
// payload the import endpoint accepts unchanged.
func (h *Handlers) exportReviews(w http.ResponseWriter, r *http.Request) {
	items, err := h.Q.ExportReviews(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]reviewView, 0, len(items))
	for _, item := range items {
		out = append(out, toReviewView(item))
	}
	writeJSON(w, http.StatusOK, out)
}

// importReview mirrors reviewView minus photo_object: local object keys
// are not portable across installations.
type importReview struct {
	ExternalID  string  `json:"external_id"`
	PlaceID     string  `json:"place_id"`
	Author      string  `json:"author"`
	AuthorURL   string  `json:"author_url"`
	PhotoURL    string  `json:"photo_url"`
	Rating      float64 `json:"rating"`
	Text        string  `json:"text"`
	Source      string  `json:"source"`
	Hidden      bool    `json:"hidden"`
	PublishedAt string  `json:"published_at"`
}

func (h *Handlers) importReviews(w http.ResponseWriter, r *http.Request) {
	var in []importReview
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "a JSON array of reviews is required")
		return
	}

	batch := make([]domain.Review, 0, len(in))
	for _, v := range in {
		rv := domain.Review{
			ExternalID: v.ExternalID,
			PlaceID:    v.PlaceID,
			Author:     v.Author,
			AuthorURL:  v.AuthorURL,
			PhotoURL:   v.PhotoURL,
			Rating:     v.Rating,
			Text:       v.Text,
			Source:     v.Source,
			Hidden:     v.Hidden,
		}
		if v.PublishedAt != "" {
			if t, perr := time.Parse(time.RFC3339, v.PublishedAt); perr == nil {
				rv.PublishedAt = t
			}
		}
		batch = append(batch, rv)
	}

	st, err := h.Sync.ImportReviews(r.Context(), batch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type visibilityRequest struct {
	Hidden *bool `json:"hidden"`
}

func (h *Handlers) setVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Hidden == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "hidden boolean is required")
		return
	}
	externalID := chi.URLParam(r, "externalID")
	if err := h.Sync.SetVisibility(r.Context(), externalID, *req.Hidden); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"external_id": externalID, "hidden": *req.Hidden})
}
