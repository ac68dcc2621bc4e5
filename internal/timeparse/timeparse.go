// Package timeparse converts free-text checkpoint date/time phrases into
// absolute start and end instants.
//
// The source publishes phrases like "Friday, December 5, 2025 | 10 PM to
// 2 AM" or "Saturday, March 15, 2025 Evening to Midnight". The parser is an
// ordered list of pattern recognizers, each binding one phrase shape to an
// extraction rule, with a final unrecognized fallback. It never guesses a
// year and never fabricates a date.
package timeparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnrecognizedPhrase is returned when no pattern matches the phrase or a
// matched phrase is missing required parts (such as the year).
var ErrUnrecognizedPhrase = errors.New("time phrase not recognized")

// Default window applied to date-only phrases. A checkpoint announced
// without hours is assumed to run during the usual evening window.
const (
	defaultStartHour = 20
	defaultEndHour   = 23
)

// eveningHour is the start hour for "Evening to Midnight" phrases.
const eveningHour = 20

// minAbbrevLen is the shortest accepted month-name abbreviation.
const minAbbrevLen = 3

// datePart matches an optional weekday, a month name, a day with optional
// ordinal suffix, and a required four-digit year. Shapes that omit the year
// do not match any pattern and fail rather than guess.
const datePart = `(?:(?:mon|tues?|wed(?:nes)?|thur?s?|fri|satur?|sun)(?:day)?\.?,?\s+)?` +
	`([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})`

// clockPart matches an hour, optional minutes, and an AM/PM marker.
const clockPart = `(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\.?`

// rangeSep separates the two ends of a time range.
const rangeSep = `\s*(?:to|until|through|-)\s*`

// lead separates the date part from the time part.
const lead = `\s*-?\s*`

// pattern binds one phrase shape to its extraction rule. Submatches are
// passed to extract with m[1..3] always being month, day, and year.
type pattern struct {
	re      *regexp.Regexp
	extract func(m []string, d date, loc *time.Location) (start, end time.Time, err error)
}

// date is the extracted calendar date shared by all shapes.
type date struct {
	year  int
	month time.Month
	day   int
}

// patterns is the prioritized recognizer list. More specific shapes come
// first; the date-only shape is the conservative fallback.
var patterns = []pattern{
	{
		// "December 5, 2025 | 10 PM to 2 AM", "August 9, 2025 - 6:00 PM to 8:30 PM"
		re: compile(datePart + lead + clockPart + rangeSep + clockPart + `\s*$`),
		extract: func(m []string, d date, loc *time.Location) (time.Time, time.Time, error) {
			startHour, startMin, err := clockTime(m[4], m[5], m[6])
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			endHour, endMin, err := clockTime(m[7], m[8], m[9])
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			return at(d, startHour, startMin, loc), at(d, endHour, endMin, loc), nil
		},
	},
	{
		// "June 6, 2025 From 6 PM to Midnight", "June 6, 2025 9:30 PM to Midnight"
		re: compile(datePart + lead + `(?:from\s+)?` + clockPart + rangeSep + `midnight\s*$`),
		extract: func(m []string, d date, loc *time.Location) (time.Time, time.Time, error) {
			startHour, startMin, err := clockTime(m[4], m[5], m[6])
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			return at(d, startHour, startMin, loc), at(d, 0, 0, loc), nil
		},
	},
	{
		// "June 6, 2025 From 6 to Midnight" - no meridiem, evening assumed.
		re: compile(datePart + lead + `from\s+(\d{1,2})(?::(\d{2}))?` + rangeSep + `midnight\s*$`),
		extract: func(m []string, d date, loc *time.Location) (time.Time, time.Time, error) {
			startHour, startMin, err := clockTime(m[4], m[5], "p")
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			return at(d, startHour, startMin, loc), at(d, 0, 0, loc), nil
		},
	},
	{
		// "March 15, 2025 Evening to Midnight"
		re: compile(datePart + lead + `evening` + rangeSep + `midnight\s*$`),
		extract: func(_ []string, d date, loc *time.Location) (time.Time, time.Time, error) {
			return at(d, eveningHour, 0, loc), at(d, 0, 0, loc), nil
		},
	},
	{
		// "December 5, 2025" - date only, default evening window.
		re: compile(datePart + `\s*$`),
		extract: func(_ []string, d date, loc *time.Location) (time.Time, time.Time, error) {
			return at(d, defaultStartHour, 0, loc), at(d, defaultEndHour, 0, loc), nil
		},
	},
}

// compile anchors a case-insensitive pattern at the start of the phrase.
func compile(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*` + expr)
}

// Parse converts a free-text phrase to a start/end instant pair in loc.
// The end instant is always strictly after the start instant: ranges that
// cross midnight roll the end date forward by one calendar day.
func Parse(phrase string, loc *time.Location) (start, end time.Time, err error) {
	normalized := normalize(phrase)

	for _, p := range patterns {
		m := p.re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}

		d, dateErr := extractDate(m[1], m[2], m[3])
		if dateErr != nil {
			return time.Time{}, time.Time{}, dateErr
		}

		start, end, err = p.extract(m, d, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}

		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}

		return start, end, nil
	}

	return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognizedPhrase, phrase)
}

// normalize canonicalizes separators before pattern matching: non-breaking
// spaces become spaces, bullets and pipes become spaces, and em/en dashes
// become plain hyphens. This keeps the pattern list small.
func normalize(phrase string) string {
	replacer := strings.NewReplacer(
		" ", " ",
		"–", "-",
		"—", "-",
		"•", " ",
		"·", " ",
		"|", " ",
	)

	return strings.Join(strings.Fields(replacer.Replace(phrase)), " ")
}

// extractDate validates the month name, day, and year submatches.
func extractDate(monthName, dayStr, yearStr string) (date, error) {
	month, ok := monthByName(monthName)
	if !ok {
		return date{}, fmt.Errorf("%w: unknown month %q", ErrUnrecognizedPhrase, monthName)
	}

	day, _ := strconv.Atoi(dayStr)
	if day < 1 || day > 31 {
		return date{}, fmt.Errorf("%w: day %d out of range", ErrUnrecognizedPhrase, day)
	}

	year, _ := strconv.Atoi(yearStr)

	return date{year: year, month: month, day: day}, nil
}

// monthNames maps lower-cased full month names to their time.Month value.
var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// monthByName resolves a full or abbreviated month name, case-insensitive.
// Abbreviations of three or more letters are accepted ("Dec", "Sept").
func monthByName(name string) (time.Month, bool) {
	lower := strings.ToLower(name)

	if month, ok := monthNames[lower]; ok {
		return month, true
	}

	if len(lower) < minAbbrevLen {
		return 0, false
	}

	for full, month := range monthNames {
		if strings.HasPrefix(full, lower) {
			return month, true
		}
	}

	return 0, false
}

// clockTime converts 12-hour clock submatches to a 24-hour hour and minute.
// Midnight resolves to hour 0.
func clockTime(hourStr, minStr, meridiem string) (hour, minute int, err error) {
	hour, _ = strconv.Atoi(hourStr)
	if hour < 1 || hour > 12 {
		return 0, 0, fmt.Errorf("%w: hour %d out of range", ErrUnrecognizedPhrase, hour)
	}

	if minStr != "" {
		minute, _ = strconv.Atoi(minStr)
		if minute > 59 {
			return 0, 0, fmt.Errorf("%w: minute %d out of range", ErrUnrecognizedPhrase, minute)
		}
	}

	pm := strings.HasPrefix(strings.ToLower(meridiem), "p")
	switch {
	case hour == 12 && !pm:
		hour = 0
	case hour != 12 && pm:
		hour += 12
	}

	return hour, minute, nil
}

// at builds an instant on the extracted date in loc.
func at(d date, hour, minute int, loc *time.Location) time.Time {
	return time.Date(d.year, d.month, d.day, hour, minute, 0, 0, loc)
}
