package core

import (
	"encoding/json"
	"time"
)

const (
	FrequencyDaily   = "DAILY"
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
	FrequencyYearly  = "YEARLY"
)

// WeekdayCodes are the accepted two-letter weekday codes, Monday first.
var WeekdayCodes = []string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

type Event struct {
	Id             string          `json:"id,omitempty"`
	UserId         string          `json:"-"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	StartDatetime  time.Time       `json:"start_datetime"`
	EndDatetime    time.Time       `json:"end_datetime"`
	IsRecurring    bool            `json:"is_recurring"`
	RecurrenceRule *RecurrenceRule `json:"recurrence_rule,omitempty"`
	CreatedAt      time.Time       `json:"created_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at,omitempty"`
}

// RecurrenceRule is a validated rule ready for persistence. Instances are
// produced by ValidateAndBuildRule or by the repository read path, never
// unmarshalled straight from a request body (that is RulePayload's job).
//
// Weekdays is the boundary representation; WeekdaysCSV is the canonical
// stored form (empty unless the frequency is WEEKLY). Until holds a
// YYYY-MM-DD literal or the empty string.
type RecurrenceRule struct {
	Id            string   `json:"-"`
	EventId       string   `json:"-"`
	Frequency     string   `json:"frequency"`
	Interval      int      `json:"interval"`
	Weekdays      []string `json:"weekdays"`
	WeekdaysCSV   string   `json:"-"`
	Nth           int      `json:"nth,omitempty"`
	WeekdayForNth string   `json:"weekday_for_nth,omitempty"`
	DayOfMonth    int      `json:"day_of_month,omitempty"`
	Month         int      `json:"month,omitempty"`
	Day           int      `json:"day,omitempty"`
	Until         string   `json:"until,omitempty"`
	Count         int      `json:"count,omitempty"`
	RRule         string   `json:"rrule,omitempty"`
}

// RulePayload is the flat rule shape accepted at the API boundary. Zero
// values mean "not provided"; the validator decides which combinations are
// legal for the declared frequency.
type RulePayload struct {
	Frequency     string   `json:"frequency"`
	Interval      int      `json:"interval"`
	Weekdays      []string `json:"weekdays"`
	Nth           int      `json:"nth"`
	WeekdayForNth string   `json:"weekday_for_nth"`
	DayOfMonth    int      `json:"day_of_month"`
	Month         int      `json:"month"`
	Day           int      `json:"day"`
	Until         string   `json:"until"`
	Count         int      `json:"count"`
}

type EventException struct {
	Id             string `json:"id,omitempty"`
	EventId        string `json:"event"`
	OccurrenceDate string `json:"occurrence_date"`
	IsCancelled    bool   `json:"is_cancelled"`
}

// EventRequest is the create/update body. RecurrenceRule stays raw so the
// handlers can tell an absent key apart from an explicit null: on update,
// absence means "remove the recurrence", while null is rejected.
type EventRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	StartDatetime  time.Time       `json:"start_datetime"`
	EndDatetime    time.Time       `json:"end_datetime"`
	IsRecurring    bool            `json:"is_recurring"`
	RecurrenceRule json.RawMessage `json:"recurrence_rule"`
}

type CancelOccurrenceRequest struct {
	OccurrenceDate string `json:"occurrence_date"`
}
