package domain

import "time"

type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota
	Updated
)

func (o UpsertOutcome) String() string {
	if o == Inserted {
		return "inserted"
	}
	return "updated"
}

type PlaceCounts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// SyncResult summarizes one end-to-end sync run.
type SyncResult struct {
	RunID      string
	Manual     bool // manual/no-source mode, nothing fetched
	PerPlace   map[string]PlaceCounts
	NewReviews []Review // inserted (not updated) this run, notification input
	LastSynced time.Time
}

func (r SyncResult) TotalInserted() int {
	n := 0
	for _, c := range r.PerPlace {
		n += c.Inserted
	}
	return n
}

func (r SyncResult) TotalUpdated() int {
	n := 0
	for _, c := range r.PerPlace {
		n += c.Updated
	}
	return n
}
