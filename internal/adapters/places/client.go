// Package places talks to the official Google Places Web Service. Unlike the
// scraping proxies it returns at most one page of reviews, so there is no
// pagination loop here.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"place_reviews/internal/adapters/normalize"
	"place_reviews/internal/adapters/observability"
	"place_reviews/internal/domain"
)

const defaultBase = "https://maps.googleapis.com/maps/api/place"

const detailFields = "reviews,rating,user_ratings_total,formatted_address," +
	"international_phone_number,geometry,name,price_level,opening_hours,url,website"

type Client struct {
	base   string
	hc     *http.Client
	key    string
	locale string
	rl     *rate.Limiter
}

// New builds a Places client. base is overridable for tests; an empty key is
// allowed here and reported as a configuration error on first use.
func New(base, key, locale string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		base:   base,
		hc:     &http.Client{Timeout: 20 * time.Second},
		key:    key,
		locale: locale,
		rl:     rate.NewLimiter(rate.Limit(5), 5),
	}
}

func (c *Client) Source() string { return "google" }

type detailsPayload struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Name         string  `json:"name"`
		Address      string  `json:"formatted_address"`
		Phone        string  `json:"international_phone_number"`
		Rating       float64 `json:"rating"`
		RatingsTotal int     `json:"user_ratings_total"`
		PriceLevel   *int    `json:"price_level"`
		MapsURL      string  `json:"url"`
		Website      string  `json:"website"`
		Geometry     struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		OpeningHours struct {
			WeekdayText []string `json:"weekday_text"`
		} `json:"opening_hours"`
		Reviews []struct {
			AuthorName string  `json:"author_name"`
			AuthorURL  string  `json:"author_url"`
			PhotoURL   string  `json:"profile_photo_url"`
			Rating     float64 `json:"rating"`
			Text       string  `json:"text"`
			Time       int64   `json:"time"`
		} `json:"reviews"`
	} `json:"result"`
}

func (c *Client) Fetch(ctx context.Context, id string) (domain.FetchResult, error) {
	if c.key == "" {
		return domain.FetchResult{}, &domain.ConfigError{Msg: "missing Google API key"}
	}
	if id == "" {
		return domain.FetchResult{}, &domain.ConfigError{Msg: "missing place id"}
	}

	q := url.Values{}
	q.Set("place_id", id)
	q.Set("fields", detailFields)
	q.Set("language", c.locale)
	q.Set("key", c.key)

	var body detailsPayload
	if err := c.get(ctx, c.base+"/details/json?"+q.Encode(), &body); err != nil {
		return domain.FetchResult{}, err
	}
	if body.Status != "OK" {
		msg := body.Status
		if body.ErrorMessage != "" {
			msg += ": " + body.ErrorMessage
		}
		return domain.FetchResult{}, &domain.ProviderError{Source: "google", Msg: msg}
	}

	res := body.Result
	out := domain.FetchResult{Meta: domain.Location{
		PlaceID: id,
		Name:    res.Name,
		Address: res.Address,
		Phone:   res.Phone,
		MapsURL: res.MapsURL,
		Website: res.Website,
	}}
	if res.Geometry.Location.Lat != 0 || res.Geometry.Location.Lng != 0 {
		out.Meta.Lat = normalize.PtrFloat(res.Geometry.Location.Lat)
		out.Meta.Lng = normalize.PtrFloat(res.Geometry.Location.Lng)
	}
	if res.Rating > 0 {
		out.Meta.Rating = normalize.PtrFloat(res.Rating)
	}
	if res.RatingsTotal > 0 {
		out.Meta.ReviewCount = normalize.PtrInt(res.RatingsTotal)
	}
	out.Meta.PriceLevel = res.PriceLevel
	out.Meta.Hours = weekdayTextHours(res.OpeningHours.WeekdayText)

	for _, rv := range res.Reviews {
		rating := rv.Rating
		if rating == 0 {
			rating = 5
		}
		out.Reviews = append(out.Reviews, domain.Review{
			ExternalID:  normalize.ReviewID("", rv.AuthorName, strconv.FormatInt(rv.Time, 10)),
			Author:      firstNonEmpty(rv.AuthorName, "Anonymous"),
			AuthorURL:   rv.AuthorURL,
			PhotoURL:    rv.PhotoURL,
			Rating:      rating,
			Text:        rv.Text,
			Source:      "google",
			PublishedAt: normalize.Timestamp("", rv.Time, "", time.Now()),
		})
	}
	return out, nil
}

type findPayload struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Candidates   []struct {
		PlaceID      string  `json:"place_id"`
		Name         string  `json:"name"`
		Address      string  `json:"formatted_address"`
		Rating       float64 `json:"rating"`
		RatingsTotal int     `json:"user_ratings_total"`
		Geometry     struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"candidates"`
}

func (c *Client) LookupBusiness(ctx context.Context, query string) (domain.Location, error) {
	if c.key == "" {
		return domain.Location{}, &domain.ConfigError{Msg: "missing Google API key"}
	}
	if query == "" {
		return domain.Location{}, &domain.ConfigError{Msg: "empty query"}
	}

	q := url.Values{}
	q.Set("input", query)
	q.Set("inputtype", "textquery")
	q.Set("fields", "place_id,name,formatted_address,geometry,rating,user_ratings_total")
	q.Set("language", c.locale)
	q.Set("key", c.key)

	var body findPayload
	if err := c.get(ctx, c.base+"/findplacefromtext/json?"+q.Encode(), &body); err != nil {
		return domain.Location{}, err
	}
	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return domain.Location{}, domain.ErrNotFound
	default:
		msg := body.Status
		if body.ErrorMessage != "" {
			msg += ": " + body.ErrorMessage
		}
		return domain.Location{}, &domain.ProviderError{Source: "google", Msg: msg}
	}
	if len(body.Candidates) == 0 {
		return domain.Location{}, domain.ErrNotFound
	}

	cand := body.Candidates[0]
	loc := domain.Location{
		PlaceID: cand.PlaceID,
		Name:    cand.Name,
		Address: cand.Address,
	}
	if cand.Geometry.Location.Lat != 0 || cand.Geometry.Location.Lng != 0 {
		loc.Lat = normalize.PtrFloat(cand.Geometry.Location.Lat)
		loc.Lng = normalize.PtrFloat(cand.Geometry.Location.Lng)
	}
	if cand.Rating > 0 {
		loc.Rating = normalize.PtrFloat(cand.Rating)
	}
	if cand.RatingsTotal > 0 {
		loc.ReviewCount = normalize.PtrInt(cand.RatingsTotal)
	}
	return loc, nil
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("google", "places", 0, time.Since(start))
		return fmt.Errorf("google request: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("google", "places", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("google: bad status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// weekdayTextHours converts "Monday: 9 AM – 6 PM" lines into the day-indexed
// structure.
func weekdayTextHours(lines []string) []domain.DayHours {
	if len(lines) == 0 {
		return nil
	}
	flat := make(map[string]string, len(lines))
	for _, line := range lines {
		day, hours, ok := cutColon(line)
		if !ok {
			continue
		}
		flat[day] = hours
	}
	return normalize.Hours(flat)
}

func cutColon(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			day := s[:i]
			hours := s[i+1:]
			for len(hours) > 0 && hours[0] == ' ' {
				hours = hours[1:]
			}
			return day, hours, true
		}
	}
	return "", "", false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
