// Package serpapi pulls Google Maps reviews through the SerpApi proxy. The
// reviews engine is paginated by a continuation token; fetching follows the
// token until it disappears, the page cap is hit, or a page comes back empty.
package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"place_reviews/internal/adapters/normalize"
	"place_reviews/internal/adapters/observability"
	"place_reviews/internal/domain"
)

const defaultBase = "https://serpapi.com"

const maxPageCap = 50

type Client struct {
	base     string
	hc       *http.Client
	key      string
	locale   string
	maxPages int
	rl       *rate.Limiter // paces page requests, one per second
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

func (c *Client) Source() string { return "serpapi" }

type reviewsPayload struct {
	Error     string `json:"error"`
	PlaceInfo *struct {
		Title   string `json:"title"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
		Rating  float64 `json:"rating"`
		Reviews int     `json:"reviews"`
		GPS     struct {
			Lat float64 `json:"latitude"`
			Lng float64 `json:"longitude"`
		} `json:"gps_coordinates"`
	} `json:"place_info"`
	Reviews    []serpReview `json:"reviews"`
	Pagination struct {
		NextPageToken string `json:"next_page_token"`
	} `json:"serpapi_pagination"`
}

type serpReview struct {
	ReviewID string  `json:"review_id"`
	Link     string  `json:"link"`
	Rating   float64 `json:"rating"`
	Snippet  string  `json:"snippet"`
	ISODate  string  `json:"iso_date"`
	Date     string  `json:"date"`
	User     struct {
		Name      string `json:"name"`
		Link      string `json:"link"`
		Thumbnail string `json:"thumbnail"`
	} `json:"user"`
}

// Fetch pages through the reviews engine for one data id. A transport
// failure on the first page is terminal; on a later page the reviews
// accumulated so far are returned instead (availability over completeness).
// An explicit provider error payload is always terminal.
func (c *Client) Fetch(ctx context.Context, id string) (domain.FetchResult, error) {
	if c.key == "" {
		return domain.FetchResult{}, &domain.ConfigError{Msg: "missing SerpApi key"}
	}
	if id == "" {
		return domain.FetchResult{}, &domain.ConfigError{Msg: "missing SerpApi data id"}
	}

	var out domain.FetchResult
	metaCaptured := false
	token := ""

	for page := 0; page < c.maxPages; page++ {
		if err := c.rl.Wait(ctx); err != nil {
			return domain.FetchResult{}, err
		}

		q := url.Values{}
		q.Set("engine", "google_maps_reviews")
		q.Set("data_id", id)
		q.Set("hl", c.locale)
		q.Set("api_key", c.key)
		if token != "" {
			q.Set("next_page_token", token)
		}

		var body reviewsPayload
		if err := c.get(ctx, c.base+"/search.json?"+q.Encode(), &body); err != nil {
			if page == 0 {
				return domain.FetchResult{}, err
			}
			log.Warn().Err(err).Int("page", page+1).Msg("serpapi page failed, keeping partial results")
			return out, nil
		}
		if body.Error != "" {
			return domain.FetchResult{}, &domain.ProviderError{Source: "serpapi", Msg: body.Error}
		}

		if !metaCaptured && body.PlaceInfo != nil {
			info := body.PlaceInfo
			out.Meta = domain.Location{
				DataID:  id,
				Name:    info.Title,
				Address: info.Address,
				Phone:   info.Phone,
			}
			if info.GPS.Lat != 0 || info.GPS.Lng != 0 {
				out.Meta.Lat = normalize.PtrFloat(info.GPS.Lat)
				out.Meta.Lng = normalize.PtrFloat(info.GPS.Lng)
			}
			if info.Rating > 0 {
				out.Meta.Rating = normalize.PtrFloat(info.Rating)
			}
			if info.Reviews > 0 {
				out.Meta.ReviewCount = normalize.PtrInt(info.Reviews)
			}
			metaCaptured = true
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

func mapReview(rv serpReview) domain.Review {
	id := rv.ReviewID
	if id == "" && rv.Link != "" {
		id = normalize.ReviewID("", rv.Link)
	}
	if id == "" {
		author := rv.User.Name
		if author == "" {
			author = "Anon"
		}
		id = normalize.ReviewID("", author, rv.Date, normalize.TextPrefix(rv.Snippet, 20))
	}
	rating := rv.Rating
	if rating == 0 {
		rating = 5
	}
	return domain.Review{
		ExternalID:  id,
		Author:      firstNonEmpty(rv.User.Name, "Anonymous"),
		AuthorURL:   rv.Link,
		PhotoURL:    rv.User.Thumbnail,
		Rating:      rating,
		Text:        rv.Snippet,
		Source:      "serpapi",
		PublishedAt: normalize.Timestamp(rv.ISODate, 0, rv.Date, time.Now()),
	}
}

type searchPayload struct {
	Error        string        `json:"error"`
	PlaceResults *searchResult `json:"place_results"`
	LocalResults []searchResult `json:"local_results"`
}

type searchResult struct {
	PlaceID string  `json:"place_id"`
	DataID  string  `json:"data_id"`
	Title   string  `json:"title"`
	Address string  `json:"address"`
	Phone   string  `json:"phone"`
	Price   string  `json:"price"`
	Rating  float64 `json:"rating"`
	Reviews int     `json:"reviews"`
	Website string  `json:"website"`
	GPS     struct {
		Lat float64 `json:"latitude"`
		Lng float64 `json:"longitude"`
	} `json:"gps_coordinates"`
	Hours []map[string]string `json:"operating_hours"`
}

func (c *Client) LookupBusiness(ctx context.Context, query string) (domain.Location, error) {
	if c.key == "" {
		return domain.Location{}, &domain.ConfigError{Msg: "missing SerpApi key"}
	}
	if query == "" {
		return domain.Location{}, &domain.ConfigError{Msg: "empty query"}
	}
	if err := c.rl.Wait(ctx); err != nil {
		return domain.Location{}, err
	}

	q := url.Values{}
	q.Set("engine", "google_maps")
	q.Set("q", query)
	q.Set("hl", c.locale)
	q.Set("api_key", c.key)

	var body searchPayload
	if err := c.get(ctx, c.base+"/search.json?"+q.Encode(), &body); err != nil {
		return domain.Location{}, err
	}
	if body.Error != "" {
		return domain.Location{}, &domain.ProviderError{Source: "serpapi", Msg: body.Error}
	}

	res := body.PlaceResults
	if res == nil && len(body.LocalResults) > 0 {
		res = &body.LocalResults[0]
	}
	if res == nil {
		return domain.Location{}, domain.ErrNotFound
	}

	loc := domain.Location{
		PlaceID:    res.PlaceID,
		DataID:     res.DataID,
		Name:       res.Title,
		Address:    res.Address,
		Phone:      res.Phone,
		Website:    res.Website,
		PriceLevel: normalize.PriceLevel(res.Price),
		Hours:      normalize.HoursFromList(res.Hours),
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

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("serpapi", "search", 0, time.Since(start))
		return fmt.Errorf("serpapi request: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("serpapi", "search", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("serpapi: bad status %d", resp.StatusCode)
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
