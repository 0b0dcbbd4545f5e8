package domain

import "time"

// Review sources.
const (
	SourceGoogle      = "google"
	SourceSerpAPI     = "serpapi"
	SourceScrapingDog = "scrapingdog"
	SourceManual      = "manual"
)

// StateLastSynced is the state-store key holding the last successful
// sync timestamp.
const StateLastSynced = "last_synced"

// Review is one third-party review after normalization.
// ExternalID is the dedupe key: provider-native id when the source has one,
// otherwise a stable hash derived by the adapter.
type Review struct {
	ID          int64 // storage insertion order; stable sort tiebreak
	ExternalID  string
	PlaceID     string
	Author      string
	AuthorURL   string
	PhotoURL    string // external avatar URL, kept as fallback
	PhotoObject string // local object key once the avatar is sideloaded
	Rating      float64
	Text        string
	Source      string // google|serpapi|scrapingdog|manual
	Hidden      bool
	PublishedAt time.Time // zero value -> store stamps current time
}

// HasPhoto reports whether the review carries an external avatar worth
// sideloading.
func (r Review) HasPhoto() bool { return r.PhotoURL != "" && r.PhotoObject == "" }
