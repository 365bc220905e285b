package core

import (
	"slices"
	"strings"
	"time"
)

func ValidateEvent(event Event) error {
	event.Title = strings.TrimSpace(event.Title)
	if len(event.Title) == 0 {
		return NewValidationError("title is required")
	}

	if len(event.Title) > 255 {
		return NewValidationError("title is too long (255 characters tops)")
	}

	// start/end ordering is intentionally not checked; the stored pair is
	// taken as submitted.
	return nil
}

// ValidateAndBuildRule checks a rule payload against the field set its
// frequency allows and returns the rule ready for persistence. Pure, no
// I/O. Checks run in a fixed order and stop at the first violation:
// count/until mutual exclusion, then the weekdays/WEEKLY gate, then the
// per-frequency required and forbidden fields.
func ValidateAndBuildRule(payload RulePayload) (*RecurrenceRule, error) {
	if payload.Count != 0 && payload.Until != "" {
		return nil, NewValidationError("only one of 'count' or 'until' may be set")
	}

	if payload.Frequency != FrequencyWeekly && len(payload.Weekdays) > 0 {
		return nil, NewValidationError("weekdays can only be set when frequency is WEEKLY")
	}

	switch payload.Frequency {
	case FrequencyDaily:
		if err := rejectPresent(payload, "nth", "weekday_for_nth", "day_of_month", "month", "day"); err != nil {
			return nil, err
		}

	case FrequencyWeekly:
		// An empty weekdays list is legal.
		for _, code := range payload.Weekdays {
			if !slices.Contains(WeekdayCodes, code) {
				return nil, NewValidationError("invalid weekday code '%s'", code)
			}
		}

		if err := rejectPresent(payload, "day_of_month", "month", "day"); err != nil {
			return nil, err
		}

	case FrequencyMonthly:
		if payload.DayOfMonth == 0 && !(payload.Nth != 0 && payload.WeekdayForNth != "") {
			return nil, NewValidationError(
				"for MONTHLY frequency, provide either 'day_of_month' or both 'nth' and 'weekday_for_nth'")
		}

		if err := rejectPresent(payload, "month", "day"); err != nil {
			return nil, err
		}

	case FrequencyYearly:
		if payload.Month == 0 {
			return nil, NewValidationError("field 'month' is required when frequency is YEARLY")
		}

		if payload.Day == 0 && !(payload.Nth != 0 && payload.WeekdayForNth != "") {
			return nil, NewValidationError(
				"for YEARLY frequency, provide 'day' or both 'nth' and 'weekday_for_nth'")
		}

		if err := rejectPresent(payload, "day_of_month"); err != nil {
			return nil, err
		}

	default:
		return nil, NewValidationError("unsupported frequency value: '%s'", payload.Frequency)
	}

	if payload.WeekdayForNth != "" && !slices.Contains(WeekdayCodes, payload.WeekdayForNth) {
		return nil, NewValidationError("invalid weekday code '%s'", payload.WeekdayForNth)
	}

	if payload.Until != "" {
		if _, err := time.Parse(time.DateOnly, payload.Until); err != nil {
			return nil, NewValidationError("invalid 'until' date, use YYYY-MM-DD")
		}
	}

	// Counted fields are unsigned in storage; only nth carries a sign
	// ("-1" meaning the last weekday of the period).
	for _, field := range []struct {
		name  string
		value int
	}{
		{"day_of_month", payload.DayOfMonth},
		{"month", payload.Month},
		{"day", payload.Day},
		{"count", payload.Count},
	} {
		if field.value < 0 {
			return nil, NewValidationError("field '%s' must be a positive integer", field.name)
		}
	}

	if payload.Interval < 0 {
		return nil, NewValidationError("'interval' must be a positive integer")
	}

	rule := &RecurrenceRule{
		Frequency:     payload.Frequency,
		Interval:      payload.Interval,
		Nth:           payload.Nth,
		WeekdayForNth: payload.WeekdayForNth,
		DayOfMonth:    payload.DayOfMonth,
		Month:         payload.Month,
		Day:           payload.Day,
		Until:         payload.Until,
		Count:         payload.Count,
	}
	if rule.Interval == 0 {
		rule.Interval = 1
	}

	if rule.Frequency == FrequencyWeekly {
		rule.WeekdaysCSV = strings.Join(payload.Weekdays, ",")
	}

	rule.finalize()

	return rule, nil
}

// finalize derives the boundary representation from the stored fields:
// the weekdays list (always empty for non-WEEKLY rules, whatever the
// stored string says) and the canonical RRULE rendering.
func (r *RecurrenceRule) finalize() {
	if r.Frequency == FrequencyWeekly && r.WeekdaysCSV != "" {
		r.Weekdays = strings.Split(r.WeekdaysCSV, ",")
	} else {
		r.Weekdays = []string{}
	}

	r.RRule = r.rruleString()
}

// rejectPresent reports the first field in names that carries a value the
// declared frequency forbids.
func rejectPresent(payload RulePayload, names ...string) error {
	present := map[string]bool{
		"nth":             payload.Nth != 0,
		"weekday_for_nth": payload.WeekdayForNth != "",
		"day_of_month":    payload.DayOfMonth != 0,
		"month":           payload.Month != 0,
		"day":             payload.Day != 0,
	}

	for _, name := range names {
		if present[name] {
			return NewValidationError("field '%s' must be empty or null when frequency is %s", name, payload.Frequency)
		}
	}

	return nil
}
