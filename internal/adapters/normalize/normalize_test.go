package normalize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"place_reviews/internal/adapters/normalize"
)

func TestReviewID_PrefersNativeID(t *testing.T) {
	assert.Equal(t, "native-1", normalize.ReviewID("native-1", "a", "b"))
}

func TestReviewID_StableHashFallback(t *testing.T) {
	a := normalize.ReviewID("", "Ana", "1700000000")
	b := normalize.ReviewID("", "Ana", "1700000000")
	c := normalize.ReviewID("", "Bob", "1700000000")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 40) // sha1 hex
}

func TestPriceLevel(t *testing.T) {
	cases := []struct {
		in   string
		want *int
	}{
		{"", nil},
		{"2", iptr(2)},
		{"9", iptr(4)},
		{"-1", iptr(0)},
		{"$$", iptr(2)},
		{"€€€", iptr(3)},
		{"$$$$$", iptr(4)},
		{"$1-10", iptr(1)},
		{"cheap", nil},
	}
	for _, tc := range cases {
		got := normalize.PriceLevel(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		assert.Equal(t, *tc.want, *got, "input %q", tc.in)
	}
}

func TestHours_OrderedByWeekday(t *testing.T) {
	got := normalize.Hours(map[string]string{
		"Sunday":  "Closed",
		"monday":  "9 AM-6 PM",
		"FRIDAY ": "9 AM-9 PM",
	})
	require.Len(t, got, 3)
	assert.Equal(t, "monday", got[0].Day)
	assert.Equal(t, "friday", got[1].Day)
	assert.Equal(t, "sunday", got[2].Day)
	assert.Equal(t, "Closed", got[2].Hours)
}

func TestHoursFromList(t *testing.T) {
	got := normalize.HoursFromList([]map[string]string{
		{"tuesday": "10 AM-5 PM"},
		{"monday": "9 AM-6 PM"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "monday", got[0].Day)
	assert.Equal(t, "tuesday", got[1].Day)
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(-2*30*24*time.Hour), normalize.RelativeTime("2 months ago", now))
	assert.Equal(t, now.Add(-7*24*time.Hour), normalize.RelativeTime("a week ago", now))
	assert.Equal(t, now.Add(-time.Hour), normalize.RelativeTime("an hour ago", now))
	assert.True(t, normalize.RelativeTime("yesterday", now).IsZero())
	assert.True(t, normalize.RelativeTime("", now).IsZero())
}

func TestTimestamp_Precedence(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	iso := normalize.Timestamp("2023-05-01T10:00:00Z", 1700000000, "2 days ago", now)
	assert.Equal(t, 2023, iso.Year())

	epoch := normalize.Timestamp("", 1700000000, "2 days ago", now)
	assert.Equal(t, int64(1700000000), epoch.Unix())

	rel := normalize.Timestamp("", 0, "2 days ago", now)
	assert.Equal(t, now.Add(-48*time.Hour), rel)

	none := normalize.Timestamp("", 0, "", now)
	assert.True(t, none.IsZero())
}

func TestTextPrefix(t *testing.T) {
	assert.Equal(t, "héllo", normalize.TextPrefix("héllo", 10))
	assert.Equal(t, "hél", normalize.TextPrefix("héllo wörld", 3))
}

func iptr(n int) *int { return &n }
