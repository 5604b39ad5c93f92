// Package recurrence decides which calendar dates a shift template occurs on.
//
// Templates carry one normalized Rule. Legacy RRULE text is converted to a Rule
// once, when a template is ingested, and never re-parsed when dates are checked.
package recurrence

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// DateLayout is the calendar date format used across the module
const DateLayout = "2006-01-02"

// Kind identifies how a Rule selects dates
type Kind string

const (
	// KindWeekdays matches dates whose weekday is in Rule.Weekdays
	KindWeekdays Kind = "weekdays"
	// KindDaily matches every date
	KindDaily Kind = "daily"
	// KindMonthly matches dates whose day of month is in Rule.MonthDays
	KindMonthly Kind = "monthly"
)

// Rule is the normalized recurrence of a shift template
type Rule struct {
	Kind      Kind
	Weekdays  WeekdaySet
	MonthDays []int
	// Source keeps the legacy RRULE text the rule was derived from, if any
	Source string
}

// Weekly returns a rule matching the given weekdays
func Weekly(days WeekdaySet) Rule {
	return Rule{Kind: KindWeekdays, Weekdays: days}
}

// Daily returns a rule matching every date
func Daily() Rule {
	return Rule{Kind: KindDaily}
}

// FromFields builds a rule from the two stored representations of a template's
// recurrence. An explicit weekday list wins; otherwise legacy RRULE text is parsed;
// with neither, the template occurs every day.
func FromFields(byDay []string, legacyRRule string) (Rule, error) {
	if len(byDay) > 0 {
		days, err := ParseWeekdayCodes(byDay)
		if err != nil {
			return Rule{}, err
		}
		return Weekly(days), nil
	}
	if strings.TrimSpace(legacyRRule) != "" {
		return ParseRRule(legacyRRule), nil
	}
	return Daily(), nil
}

// ParseRRule converts legacy RRULE text into a Rule. It never fails:
//   - BYDAY present: the listed weekdays (ordinal prefixes such as 1SU are ignored)
//   - FREQ=DAILY or FREQ=WEEKLY without BYDAY: every day
//   - FREQ=MONTHLY: BYMONTHDAY, else the DTSTART day of month, else every day
//   - unknown FREQ or unparseable text: every day
func ParseRRule(text string) Rule {
	source := strings.TrimSpace(text)
	body := strings.ToUpper(source)
	body = strings.TrimPrefix(body, "RRULE:")

	opt, err := rrule.StrToROption(body)
	if err != nil {
		return Rule{Kind: KindDaily, Source: source}
	}

	if len(opt.Byweekday) > 0 {
		var days WeekdaySet
		for _, wd := range opt.Byweekday {
			// rrule-go numbers weekdays from Monday=0
			days |= NewWeekdaySet(time.Weekday((wd.Day() + 1) % 7))
		}
		return Rule{Kind: KindWeekdays, Weekdays: days, Source: source}
	}

	if opt.Freq == rrule.MONTHLY {
		switch {
		case len(opt.Bymonthday) > 0:
			return Rule{Kind: KindMonthly, MonthDays: append([]int(nil), opt.Bymonthday...), Source: source}
		case !opt.Dtstart.IsZero():
			return Rule{Kind: KindMonthly, MonthDays: []int{opt.Dtstart.Day()}, Source: source}
		}
	}

	return Rule{Kind: KindDaily, Source: source}
}

// Validate reports whether legacy RRULE text is well-formed. Rules built from
// malformed text still work (they match every day); this exists so ingestion can warn.
func Validate(text string) error {
	body := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(text)), "RRULE:")
	_, err := rrule.StrToRRule(body)
	return err
}

// Includes reports whether the rule produces an occurrence on the given date
func (r Rule) Includes(date time.Time) bool {
	switch r.Kind {
	case KindWeekdays:
		return r.Weekdays.Has(date.Weekday())
	case KindMonthly:
		return matchesMonthDay(date, r.MonthDays)
	default:
		return true
	}
}

// Dates returns every included date in the inclusive window [from, to]
func (r Rule) Dates(from, to time.Time) []time.Time {
	start := DateOf(from)
	end := DateOf(to)

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if r.Includes(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

// DateOf truncates a timestamp to its calendar date at midnight UTC
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func matchesMonthDay(date time.Time, monthDays []int) bool {
	day := date.Day()
	// Day 0 of the following month is the last day of this one
	lastDay := time.Date(date.Year(), date.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	for _, md := range monthDays {
		if md > 0 && md == day {
			return true
		}
		if md < 0 && lastDay+md+1 == day {
			return true
		}
	}
	return false
}
