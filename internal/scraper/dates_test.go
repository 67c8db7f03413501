package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSwedishDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"Såld 3 maj 2024", time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC), true},
		{"Såld 31 december 2023", time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), true},
		{"12 Jan 2022", time.Date(2022, time.January, 12, 0, 0, 0, 0, time.UTC), true},
		{"Såld 1 Augusti 2021", time.Date(2021, time.August, 1, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"Såld ", time.Time{}, false},
		{"maj 2024", time.Time{}, false},
		{"Såld 3 smarch 2024", time.Time{}, false},
		{"Såld tre maj 2024", time.Time{}, false},
		{"Såld 3 maj tjugohundra", time.Time{}, false},
	}

	for _, tc := range tests {
		got, ok := ParseSwedishDate(tc.input)
		assert.Equal(t, tc.ok, ok, "input %q", tc.input)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %q", tc.input)
		}
	}
}
