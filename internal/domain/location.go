package domain

import "time"

// Location is one tracked business place, keyed by the provider place id.
// DataID is the secondary identifier some scraping providers use instead of
// the place id.
type Location struct {
	PlaceID     string
	DataID      string
	Name        string
	Address     string
	Phone       string
	Lat         *float64
	Lng         *float64
	PriceLevel  *int     // normalized 0..4
	Rating      *float64 // provider aggregate
	ReviewCount *int     // provider aggregate; may exceed locally stored rows
	MapsURL     string
	Website     string
	Hours       []DayHours
	Updated     time.Time
}

type DayHours struct {
	Day   string // lowercase weekday name
	Hours string // e.g. "9 AM–6 PM" or "Closed"
}

// IsEmpty reports whether the metadata carries nothing worth persisting.
func (l Location) IsEmpty() bool {
	return l.Name == "" && l.Address == "" && l.Phone == "" &&
		l.Lat == nil && l.Lng == nil && l.PriceLevel == nil &&
		l.Rating == nil && l.ReviewCount == nil &&
		l.MapsURL == "" && l.Website == "" && len(l.Hours) == 0
}

// MergeLocation folds incoming into existing with merge-if-present
// semantics: an incoming value wins only when it is non-empty, so a sparse
// provider payload never erases fields captured earlier.
func MergeLocation(existing, incoming Location) Location {
	out := existing
	if incoming.PlaceID != "" {
		out.PlaceID = incoming.PlaceID
	}
	if incoming.DataID != "" {
		out.DataID = incoming.DataID
	}
	if incoming.Name != "" {
		out.Name = incoming.Name
	}
	if incoming.Address != "" {
		out.Address = incoming.Address
	}
	if incoming.Phone != "" {
		out.Phone = incoming.Phone
	}
	if incoming.Lat != nil {
		out.Lat = incoming.Lat
	}
	if incoming.Lng != nil {
		out.Lng = incoming.Lng
	}
	if incoming.PriceLevel != nil {
		out.PriceLevel = incoming.PriceLevel
	}
	if incoming.Rating != nil {
		out.Rating = incoming.Rating
	}
	if incoming.ReviewCount != nil {
		out.ReviewCount = incoming.ReviewCount
	}
	if incoming.MapsURL != "" {
		out.MapsURL = incoming.MapsURL
	}
	if incoming.Website != "" {
		out.Website = incoming.Website
	}
	if len(incoming.Hours) > 0 {
		out.Hours = incoming.Hours
	}
	out.Updated = time.Now()
	return out
}
