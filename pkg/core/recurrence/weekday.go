package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// weekdayCodes maps time.Weekday (Sunday=0) to the two-letter codes shown in the UI
var weekdayCodes = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// WeekdayCode returns the two-letter code for a weekday
func WeekdayCode(d time.Weekday) string {
	return weekdayCodes[int(d)%7]
}

// ParseWeekday parses a two-letter weekday code (case-insensitive)
func ParseWeekday(code string) (time.Weekday, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	for i, c := range weekdayCodes {
		if c == normalized {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday code %q", code)
}

// WeekdaySet is a set of weekdays stored as a bitmask
type WeekdaySet uint8

// NewWeekdaySet builds a set from the given weekdays
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d%7)
	}
	return s
}

// ParseWeekdayCodes builds a set from two-letter codes such as ["MO", "WE"]
func ParseWeekdayCodes(codes []string) (WeekdaySet, error) {
	var s WeekdaySet
	for _, code := range codes {
		d, err := ParseWeekday(code)
		if err != nil {
			return 0, err
		}
		s |= NewWeekdaySet(d)
	}
	return s, nil
}

// Has reports whether the weekday is in the set
func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d%7)) != 0
}

// Empty reports whether no weekday is set
func (s WeekdaySet) Empty() bool {
	return s == 0
}

// Codes returns the set as two-letter codes in Sunday-first order
func (s WeekdaySet) Codes() []string {
	codes := make([]string, 0, 7)
	for i, c := range weekdayCodes {
		if s.Has(time.Weekday(i)) {
			codes = append(codes, c)
		}
	}
	return codes
}

func (s WeekdaySet) String() string {
	return strings.Join(s.Codes(), ",")
}
