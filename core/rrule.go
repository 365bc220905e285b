package core

import (
	"time"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

var rruleFrequencies = map[string]rrule.Frequency{
	FrequencyDaily:   rrule.DAILY,
	FrequencyWeekly:  rrule.WEEKLY,
	FrequencyMonthly: rrule.MONTHLY,
	FrequencyYearly:  rrule.YEARLY,
}

// rruleString renders a validated rule as an RFC 5545 RRULE content line,
// e.g. "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE". Rendering only: nothing here
// iterates occurrences. Returns "" for a rule whose frequency is unknown,
// which the validator never lets through.
func (r *RecurrenceRule) rruleString() string {
	freq, ok := rruleFrequencies[r.Frequency]
	if !ok {
		return ""
	}

	opt := rrule.ROption{Freq: freq, Interval: r.Interval}

	switch r.Frequency {
	case FrequencyWeekly:
		for _, code := range r.Weekdays {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[code])
		}
	case FrequencyMonthly:
		if r.DayOfMonth != 0 {
			opt.Bymonthday = []int{r.DayOfMonth}
		} else {
			wd := rruleWeekdays[r.WeekdayForNth]
			opt.Byweekday = []rrule.Weekday{wd.Nth(r.Nth)}
		}
	case FrequencyYearly:
		opt.Bymonth = []int{r.Month}
		if r.Day != 0 {
			opt.Bymonthday = []int{r.Day}
		} else {
			wd := rruleWeekdays[r.WeekdayForNth]
			opt.Byweekday = []rrule.Weekday{wd.Nth(r.Nth)}
		}
	}

	if r.Until != "" {
		until, err := time.Parse(time.DateOnly, r.Until)
		if err == nil {
			opt.Until = until.UTC()
		}
	}

	opt.Count = r.Count

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return ""
	}

	return rule.String()
}
