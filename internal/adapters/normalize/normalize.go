// Package normalize converts the loosely shaped values scraping providers
// return (price strings, day-keyed hour maps, relative dates) into the
// domain's typed representation, and derives stable review identifiers.
package normalize

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"place_reviews/internal/domain"
)

// ReviewID prefers the provider-native id; otherwise it hashes the given
// fallback parts so that re-fetching logically identical raw data derives
// the same external identifier.
func ReviewID(native string, fallback ...string) string {
	if native != "" {
		return native
	}
	sum := sha1.Sum([]byte(strings.Join(fallback, "|")))
	return hex.EncodeToString(sum[:])
}

// TextPrefix returns the first n runes of s, the dedupe-hash input for
// sources without review ids or permalinks.
func TextPrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// PriceLevel maps provider price representations onto the 0..4 tier.
// Accepts plain numbers ("2"), currency-symbol runs ("$$", "€€€") and range
// strings ("$1-10" counts one symbol).
func PriceLevel(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 {
			n = 0
		}
		if n > 4 {
			n = 4
		}
		return &n
	}
	count := 0
	for _, r := range raw {
		switch r {
		case '$', '€', '£', '¥', '₩':
			count++
		}
	}
	if count == 0 {
		return nil
	}
	if count > 4 {
		count = 4
	}
	return &count
}

var weekdayOrder = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Hours flattens provider opening-hours payloads into a day-indexed list.
// Providers send either a single day->hours map or a list of one-entry maps.
func Hours(in map[string]string) []domain.DayHours {
	if len(in) == 0 {
		return nil
	}
	byDay := make(map[string]string, len(in))
	for day, hours := range in {
		byDay[strings.ToLower(strings.TrimSpace(day))] = hours
	}
	var out []domain.DayHours
	for _, day := range weekdayOrder {
		if h, ok := byDay[day]; ok {
			out = append(out, domain.DayHours{Day: day, Hours: h})
		}
	}
	return out
}

// HoursFromList handles the [{"monday": "9 AM–6 PM"}, ...] shape.
func HoursFromList(in []map[string]string) []domain.DayHours {
	flat := make(map[string]string)
	for _, entry := range in {
		for day, hours := range entry {
			flat[day] = hours
		}
	}
	return Hours(flat)
}

var relativeUnits = map[string]time.Duration{
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

// RelativeTime parses the "2 months ago" strings scraping providers use as
// review dates. The zero time is returned when the string is not understood;
// the review store then stamps the ingestion time.
func RelativeTime(s string, now time.Time) time.Time {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 3 || fields[2] != "ago" {
		return time.Time{}
	}
	n := 1
	if fields[0] != "a" && fields[0] != "an" {
		v, err := strconv.Atoi(fields[0])
		if err != nil || v < 0 {
			return time.Time{}
		}
		n = v
	}
	unit := strings.TrimSuffix(fields[1], "s")
	d, ok := relativeUnits[unit]
	if !ok {
		return time.Time{}
	}
	return now.Add(-time.Duration(n) * d)
}

// Timestamp picks the first usable publication time: an ISO-8601 date, a
// unix epoch, then a relative date string.
func Timestamp(iso string, epoch int64, relative string, now time.Time) time.Time {
	if iso != "" {
		if t, err := time.Parse(time.RFC3339, iso); err == nil {
			return t
		}
	}
	if epoch > 0 {
		return time.Unix(epoch, 0).UTC()
	}
	return RelativeTime(relative, now)
}

func PtrFloat(f float64) *float64 { return &f }

func PtrInt(n int) *int { return &n }
