package shared

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings holds the panel-managed values: which source to sync from, its
// credentials, and how fetched reviews are filtered and presented. The file
// is re-read at construction of each component that needs it; components
// never reach into ambient state.
type Settings struct {
	DataSource string `yaml:"data_source"` // google | serpapi | scrapingdog | manual

	GoogleAPIKey      string `yaml:"google_api_key"`
	PlaceID           string `yaml:"place_id"`
	SerpAPIKey        string `yaml:"serpapi_key"`
	SerpAPIDataID     string `yaml:"serpapi_data_id"`
	ScrapingDogAPIKey string `yaml:"scrapingdog_api_key"`

	MaxPages  int    `yaml:"max_pages"`  // pagination cap for scraping providers
	Locale    string `yaml:"locale"`     // two-letter language code for lookups
	MinRating int    `yaml:"min_rating"` // default listing filter
	SortOrder string `yaml:"sort_order"` // newest | oldest | rating_desc | rating_asc | random
	ListLimit int    `yaml:"list_limit"` // default page size for listings

	EmailAlerts       bool   `yaml:"email_alerts"`
	NotificationEmail string `yaml:"notification_email"`

	AutoSync      bool   `yaml:"auto_sync"`
	SyncFrequency string `yaml:"sync_frequency"` // daily | weekly | monthly
}

// LoadSettings reads the settings file. A missing file is not an error:
// defaults mean "manual mode, nothing configured yet".
func LoadSettings(path string) (Settings, error) {
	s := defaultSettings()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	s.normalize()
	return s, nil
}

func defaultSettings() Settings {
	return Settings{
		DataSource:    "manual",
		MaxPages:      5,
		Locale:        "en",
		SortOrder:     "newest",
		ListLimit:     3,
		SyncFrequency: "weekly",
	}
}

func (s *Settings) normalize() {
	if s.DataSource == "" {
		s.DataSource = "manual"
	}
	if s.MaxPages < 1 {
		s.MaxPages = 1
	}
	if s.MaxPages > 50 {
		s.MaxPages = 50
	}
	if s.Locale == "" {
		s.Locale = "en"
	}
	if s.SortOrder == "" {
		s.SortOrder = "newest"
	}
	if s.ListLimit < 1 {
		s.ListLimit = 3
	}
	switch s.SyncFrequency {
	case "daily", "weekly", "monthly":
	default:
		s.SyncFrequency = "weekly"
	}
}
