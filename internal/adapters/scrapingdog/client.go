// Package scrapingdog pulls Google Maps reviews through the ScrapingDog
// proxy. Same continuation-token pagination as serpapi, with a lower page
// cap, and the richest business-lookup payload of the three sources (price
// level, opening hours, maps URL, data id).
package scrapingdog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"place_reviews/internal/adapters/normalize"
	"place_reviews/internal/adapters/observability"
	"place_reviews/internal/domain"
)

const defaultBase = "https://api.scrapingdog.com"

const maxPageCap = 20

type Client struct {
	base     string
	hc       *http.Client
	key      string
	locale   string
	maxPages int
	rl       *rate.Limiter
}

func New(base, key, locale string, maxPages int) *Client {
	if base == "" {
		base = defaultBase
	}
	if maxPages < 1 {
		maxPages = 1
	}
	if maxPages > maxPageCap {
		maxPages = maxPageCap
	}
	return &Client{
		base:     base,
		hc:       &http.Client{Timeout: 20 * time.Second},
		key:      key,
		locale:   locale,
		maxPages: maxPages,
		rl:       rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (c *Client) Source() string { return "scrapingdog" }

type reviewsPayload struct {
	Error           string `json:"error"`
	Message         string `json:"message"`
	LocationDetails *struct {
		Title   string  `json:"title"`
		Address string  `json:"address"`
		Rating  float64 `json:"rating"`
		Reviews int     `json:"reviews"`
	} `json:"locationDetails"`
	Reviews    []dogReview `json:"reviews_results"`
	Pagination struct {
		NextPageToken string `json:"next_page_token"`
	} `json:"pagination"`
}

type dogReview struct {
	ReviewID string  `json:"review_id"`
	Rating   float64 `json:"rating"`
	Snippet  string  `json:"snippet"`
	Body     string  `json:"body"`
	Date     string  `json:"date"` // usually relative: "2 months ago"
	User     struct {
		Name      string `json:"name"`
		Link      string `json:"link"`
		Thumbnail string `json:"thumbnail"`
	} `json:"user"`
}

func (c *Client) Fetch(ctx context.Context, id string) (domain.FetchResult, error) {
	if c.key == "" {
		return domain.FetchResult{}, &domain.ConfigError{Msg: "missing ScrapingDog API key"}
	}
	if id == "" {
		return domain.FetchResult{}, &domain.ConfigError{Msg: "missing data id"}
	}

	var out domain.FetchResult
	token := ""

	for page := 0; page < c.maxPages; page++ {
		if err := c.rl.Wait(ctx); err != nil {
			return domain.FetchResult{}, err
		}

		q := url.Values{}
		q.Set("api_key", c.key)
		q.Set("data_id", id)
		if token != "" {
			q.Set("next_page_token", token)
		}

		var body reviewsPayload
		if err := c.get(ctx, c.base+"/google_maps/reviews?"+q.Encode(), &body); err != nil {
			if page == 0 {
				return domain.FetchResult{}, err
			}
			log.Warn().Err(err).Int("page", page+1).Msg("scrapingdog page failed, keeping partial results")
			return out, nil
		}
		if msg := firstNonEmpty(body.Error, body.Message); msg != "" {
			return domain.FetchResult{}, &domain.ProviderError{Source: "scrapingdog", Msg: msg}
		}

		// Metadata rides along on the first page only.
		if page == 0 && body.LocationDetails != nil {
			info := body.LocationDetails
			out.Meta = domain.Location{DataID: id, Name: info.Title, Address: info.Address}
			if info.Rating > 0 {
				out.Meta.Rating = normalize.PtrFloat(info.Rating)
			}
			if info.Reviews > 0 {
				out.Meta.ReviewCount = normalize.PtrInt(info.Reviews)
			}
		}

		if len(body.Reviews) == 0 {
			break
		}
		for _, rv := range body.Reviews {
			out.Reviews = append(out.Reviews, mapReview(rv))
		}

		token = body.Pagination.NextPageToken
		if token == "" {
			break
		}
	}
	return out, nil
}

func mapReview(rv dogReview) domain.Review {
	text := rv.Snippet
	if text == "" {
		text = rv.Body
	}
	id := rv.ReviewID
	if id == "" {
		author := rv.User.Name
		if author == "" {
			author = "Anon"
		}
		id = normalize.ReviewID("", author, rv.Date, normalize.TextPrefix(text, 20))
	}
	rating := rv.Rating
	if rating == 0 {
		rating = 5
	}
	return domain.Review{
		ExternalID:  id,
		Author:      firstNonEmpty(rv.User.Name, "Anonymous"),
		AuthorURL:   rv.User.Link,
		PhotoURL:    rv.User.Thumbnail,
		Rating:      rating,
		Text:        text,
		Source:      "scrapingdog",
		PublishedAt: normalize.RelativeTime(rv.Date, time.Now()),
	}
}

type placePayload struct {
	Message       string       `json:"message"`
	PlaceResults  *placeResult `json:"place_results"`
	SearchResults []placeResult `json:"search_results"`
}

type placeResult struct {
	PlaceID   string  `json:"place_id"`
	DataID    string  `json:"data_id"`
	Title     string  `json:"title"`
	Address   string  `json:"address"`
	Phone     string  `json:"phone"`
	Price     string  `json:"price"`
	Rating    float64 `json:"rating"`
	Reviews   int     `json:"reviews"`
	MapsURL   string  `json:"google_maps_url"`
	Website   string  `json:"website"`
	Thumbnail string  `json:"thumbnail"`
	GPS       struct {
		Lat float64 `json:"latitude"`
		Lng float64 `json:"longitude"`
	} `json:"gps_coordinates"`
	Hours []map[string]string `json:"hours"`
}

// LookupBusiness resolves either a free-text query (search endpoint) or a
// raw place id (places endpoint; place ids start with "ChIJ", data ids
// with "0x").
func (c *Client) LookupBusiness(ctx context.Context, query string) (domain.Location, error) {
	if c.key == "" {
		return domain.Location{}, &domain.ConfigError{Msg: "missing ScrapingDog API key"}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Location{}, &domain.ConfigError{Msg: "empty query"}
	}
	if err := c.rl.Wait(ctx); err != nil {
		return domain.Location{}, err
	}

	var u string
	if looksLikePlaceID(query) {
		q := url.Values{}
		q.Set("api_key", c.key)
		q.Set("place_id", query)
		q.Set("country", c.locale)
		u = c.base + "/google_maps/places?" + q.Encode()
	} else {
		q := url.Values{}
		q.Set("api_key", c.key)
		q.Set("query", query)
		q.Set("type", "search")
		q.Set("language", c.locale)
		u = c.base + "/google_maps?" + q.Encode()
	}

	var body placePayload
	if err := c.get(ctx, u, &body); err != nil {
		return domain.Location{}, err
	}

	res := body.PlaceResults
	if res == nil && len(body.SearchResults) > 0 {
		res = &body.SearchResults[0]
	}
	if res == nil {
		if body.Message != "" {
			return domain.Location{}, &domain.ProviderError{Source: "scrapingdog", Msg: body.Message}
		}
		return domain.Location{}, domain.ErrNotFound
	}

	loc := domain.Location{
		PlaceID:    res.PlaceID,
		DataID:     res.DataID,
		Name:       res.Title,
		Address:    res.Address,
		Phone:      res.Phone,
		MapsURL:    res.MapsURL,
		Website:    res.Website,
		PriceLevel: normalize.PriceLevel(res.Price),
		Hours:      normalize.HoursFromList(res.Hours),
	}
	// The reviews endpoint needs the data id; fall back to the place id so
	// the caller always has something fetchable.
	if loc.PlaceID == "" {
		loc.PlaceID = res.DataID
	}
	if res.GPS.Lat != 0 || res.GPS.Lng != 0 {
		loc.Lat = normalize.PtrFloat(res.GPS.Lat)
		loc.Lng = normalize.PtrFloat(res.GPS.Lng)
	}
	if res.Rating > 0 {
		loc.Rating = normalize.PtrFloat(res.Rating)
	}
	if res.Reviews > 0 {
		loc.ReviewCount = normalize.PtrInt(res.Reviews)
	}
	return loc, nil
}

func looksLikePlaceID(s string) bool {
	return strings.HasPrefix(s, "ChIJ") || strings.HasPrefix(s, "0x")
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("scrapingdog", "google_maps", 0, time.Since(start))
		return fmt.Errorf("scrapingdog request: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("scrapingdog", "google_maps", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scrapingdog: bad status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
