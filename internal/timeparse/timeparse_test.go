package timeparse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/checkpoint-ingestor/internal/timeparse"
)

// loc is the zone checkpoint phrases are published in.
var loc = func() *time.Location {
	l, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return l
}()

func TestParse_SupportedShapes(t *testing.T) {
	tests := []struct {
		name      string
		phrase    string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "pipe separated range crossing midnight",
			phrase:    "Friday, December 5, 2025 | 10 PM to 2 AM",
			wantStart: time.Date(2025, 12, 5, 22, 0, 0, 0, loc),
			wantEnd:   time.Date(2025, 12, 6, 2, 0, 0, 0, loc),
		},
		{
			name:      "en dash range with minutes",
			phrase:    "August 9, 2025 – 6:00 PM to 8:30 PM",
			wantStart: time.Date(2025, 8, 9, 18, 0, 0, 0, loc),
			wantEnd:   time.Date(2025, 8, 9, 20, 30, 0, 0, loc),
		},
		{
			name:      "evening to midnight",
			phrase:    "Saturday, March 15, 2025 Evening to Midnight",
			wantStart: time.Date(2025, 3, 15, 20, 0, 0, 0, loc),
			wantEnd:   time.Date(2025, 3, 16, 0, 0, 0, 0, loc),
		},
		{
			name:      "from clock to midnight",
			phrase:    "Friday, June 6, 2025 From 6 PM to Midnight",
			wantStart: time.Date(2025, 6, 6, 18, 0, 0, 0, loc),
			wantEnd:   time.Date(2025, 6, 7, 0, 0, 0, 0, loc),
		},
		{
			name:      "date only defaults to evening window",
			phrase:    "December 5, 2025",
			wantStart: time.Date(2025, 12, 5, 20, 0, 0, 0, loc),
			wantEnd:   time.Date(2025, 12, 5, 23, 0, 0, 0, loc),
		},
		{
			name:      "abbreviated month with weekday",
			phrase:    "Sat, Dec. 6, 2025 9 PM to 1 AM",
			wantStart: time.Date(2025, 12, 6, 21, 0, 0, 0, loc),
			wantEnd:   time.Date(2025, 12, 7, 1, 0, 0, 0, loc),
		},
		{
			name:      "non-breaking spaces and em dash",
			phrase:    "July 4, 2025 — 7 PM to 11 PM",
			wantStart: time.Date(2025, 7, 4, 19, 0, 0, 0, loc),
			wantEnd:   time.Date(2025, 7, 4, 23, 0, 0, 0, loc),
		},
		{
			name:      "midnight start resolves to hour zero",
			phrase:    "January 1, 2026 12 AM to 4 AM",
			wantStart: time.Date(2026, 1, 1, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2026, 1, 1, 4, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := timeparse.Parse(tt.phrase, loc)
			require.NoError(t, err)
			assert.True(t, start.Equal(tt.wantStart), "start = %v, want %v", start, tt.wantStart)
			assert.True(t, end.Equal(tt.wantEnd), "end = %v, want %v", end, tt.wantEnd)
		})
	}
}

func TestParse_EndAlwaysAfterStart(t *testing.T) {
	phrases := []string{
		"Friday, December 5, 2025 | 10 PM to 2 AM",
		"Friday, December 5, 2025 | 11 PM to 11 PM",
		"Saturday, March 15, 2025 Evening to Midnight",
		"December 5, 2025",
	}

	for _, phrase := range phrases {
		start, end, err := timeparse.Parse(phrase, loc)
		require.NoError(t, err, "phrase %q", phrase)
		assert.True(t, end.After(start), "phrase %q: end %v not after start %v", phrase, end, start)
	}
}

func TestParse_MissingYearRejected(t *testing.T) {
	phrases := []string{
		"Friday, December 5 | 10 PM to 2 AM",
		"December 5",
		"Dec 5 9 PM to 1 AM",
	}

	for _, phrase := range phrases {
		_, _, err := timeparse.Parse(phrase, loc)
		assert.ErrorIs(t, err, timeparse.ErrUnrecognizedPhrase, "phrase %q", phrase)
	}
}

func TestParse_UnrecognizedPhrases(t *testing.T) {
	phrases := []string{
		"",
		"TBA",
		"sometime next week",
		"Friday, Smarch 5, 2025 | 10 PM to 2 AM",
		"December 41, 2025",
	}

	for _, phrase := range phrases {
		_, _, err := timeparse.Parse(phrase, loc)
		assert.ErrorIs(t, err, timeparse.ErrUnrecognizedPhrase, "phrase %q", phrase)
	}
}
