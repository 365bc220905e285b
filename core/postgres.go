package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"calendar-service/pkg/resources"
)

// Repository is the durable store behind the handlers. Every operation is
// scoped by the owner's user id; an event that exists but belongs to
// someone else reads as ErrEventNotFound.
type Repository interface {
	SaveEvent(ctx context.Context, event *Event) (*Event, error)
	GetEventById(ctx context.Context, userId string, id string) (*Event, error)
	ListEvents(ctx context.Context, userId string) ([]Event, error)
	UpdateEvent(ctx context.Context, event *Event) (*Event, error)
	DeleteEvent(ctx context.Context, userId string, id string) error
	CancelOccurrence(ctx context.Context, userId string, eventId string, occurrenceDate time.Time) (*EventException, error)
}

type repository struct {
	tracer  trace.Tracer
	metrics *DBMetrics
	pool    resources.DBInstance
}

func NewRepository(pool resources.DBInstance) Repository {
	return &repository{
		tracer:  otel.GetTracerProvider().Tracer("calendar-service/core"),
		metrics: NewDBMetrics(),
		pool:    pool,
	}
}

const eventColumns = "id, user_id, title, description, start_datetime, end_datetime, is_recurring, created_at, updated_at"

const ruleColumns = `event_id, frequency, "interval", weekdays, nth, weekday_for_nth, day_of_month, "month", "day", "until", "count"`

// SaveEvent inserts the event and, when present, its recurrence rule as a
// single transaction; a rule failure rolls the event back too.
func (r *repository) SaveEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "save_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.SaveEvent")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	saved := *event

	err = tx.QueryRow(ctx,
		"INSERT INTO events (user_id, title, description, start_datetime, end_datetime, is_recurring) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"RETURNING "+eventColumns,
		event.UserId, event.Title, event.Description, event.StartDatetime, event.EndDatetime, event.IsRecurring).
		Scan(&saved.Id, &saved.UserId, &saved.Title, &saved.Description,
			&saved.StartDatetime, &saved.EndDatetime, &saved.IsRecurring, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	if event.RecurrenceRule != nil {
		rule := *event.RecurrenceRule
		rule.EventId = saved.Id

		err = tx.QueryRow(ctx,
			"INSERT INTO recurrence_rules ("+ruleColumns+") "+
				"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) "+
				"RETURNING id",
			rule.EventId, rule.Frequency, rule.Interval, rule.WeekdaysCSV,
			zeroAsNull(rule.Nth), emptyAsNull(rule.WeekdayForNth), zeroAsNull(rule.DayOfMonth),
			zeroAsNull(rule.Month), zeroAsNull(rule.Day), dateOrNull(rule.Until), zeroAsNull(rule.Count)).
			Scan(&rule.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to insert recurrence rule: %w", err)
		}

		saved.RecurrenceRule = &rule
	}

	err = tx.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &saved, nil
}

func (r *repository) GetEventById(ctx context.Context, userId string, id string) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "get_event_by_id", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.GetEventById")
	defer span.End()

	row := r.pool.QueryRow(ctx, selectEventSQL+" AND e.id = $2", userId, id)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrEventNotFound
			return nil, err
		}

		return nil, fmt.Errorf("failed to get event by id: %w", err)
	}

	return event, nil
}

func (r *repository) ListEvents(ctx context.Context, userId string) ([]Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_events", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.ListEvents")
	defer span.End()

	rows, err := r.pool.Query(ctx, selectEventSQL+" ORDER BY e.start_datetime", userId)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)

	for rows.Next() {
		event, scanErr := scanEvent(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		events = append(events, *event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}

// UpdateEvent rewrites the scalar fields and reconciles the rule within
// one transaction: a rule on the event replaces or creates the stored one,
// a nil rule deletes whatever is stored. Exceptions are left alone.
func (r *repository) UpdateEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "update_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.UpdateEvent")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updated := *event

	err = tx.QueryRow(ctx,
		"UPDATE events SET title = $1, description = $2, start_datetime = $3, end_datetime = $4, "+
			"is_recurring = $5, updated_at = now() "+
			"WHERE id = $6 AND user_id = $7 AND is_active "+
			"RETURNING "+eventColumns,
		event.Title, event.Description, event.StartDatetime, event.EndDatetime,
		event.IsRecurring, event.Id, event.UserId).
		Scan(&updated.Id, &updated.UserId, &updated.Title, &updated.Description,
			&updated.StartDatetime, &updated.EndDatetime, &updated.IsRecurring, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrEventNotFound
			return nil, err
		}

		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if event.RecurrenceRule != nil {
		rule := *event.RecurrenceRule
		rule.EventId = updated.Id

		err = tx.QueryRow(ctx,
			"INSERT INTO recurrence_rules ("+ruleColumns+") "+
				"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) "+
				"ON CONFLICT (event_id) DO UPDATE SET "+
				`frequency = EXCLUDED.frequency, "interval" = EXCLUDED."interval", weekdays = EXCLUDED.weekdays, `+
				"nth = EXCLUDED.nth, weekday_for_nth = EXCLUDED.weekday_for_nth, day_of_month = EXCLUDED.day_of_month, "+
				`"month" = EXCLUDED."month", "day" = EXCLUDED."day", "until" = EXCLUDED."until", "count" = EXCLUDED."count" `+
				"RETURNING id",
			rule.EventId, rule.Frequency, rule.Interval, rule.WeekdaysCSV,
			zeroAsNull(rule.Nth), emptyAsNull(rule.WeekdayForNth), zeroAsNull(rule.DayOfMonth),
			zeroAsNull(rule.Month), zeroAsNull(rule.Day), dateOrNull(rule.Until), zeroAsNull(rule.Count)).
			Scan(&rule.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert recurrence rule: %w", err)
		}

		updated.RecurrenceRule = &rule
	} else {
		_, err = tx.Exec(ctx, "DELETE FROM recurrence_rules WHERE event_id = $1", updated.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to delete recurrence rule: %w", err)
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &updated, nil
}

func (r *repository) DeleteEvent(ctx context.Context, userId string, id string) error {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "delete_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.DeleteEvent")
	defer span.End()

	// Rule and exceptions go with it via the FK cascades.
	tag, err := r.pool.Exec(ctx, "DELETE FROM events WHERE id = $1 AND user_id = $2 AND is_active", id, userId)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		err = ErrEventNotFound
		return err
	}

	return nil
}

// CancelOccurrence marks one occurrence date of an owned event cancelled.
// The upsert is the atomicity guarantee: under concurrent calls for the
// same date exactly one exception row exists afterwards and every caller
// gets it back, never a uniqueness violation. Dates outside the series'
// actual occurrence set are accepted; the store never expands the rule.
func (r *repository) CancelOccurrence(ctx context.Context, userId string, eventId string, occurrenceDate time.Time) (*EventException, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "cancel_occurrence", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.CancelOccurrence")
	defer span.End()

	var ownedId string

	err = r.pool.QueryRow(ctx,
		"SELECT id FROM events WHERE id = $1 AND user_id = $2 AND is_active",
		eventId, userId).Scan(&ownedId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrEventNotFound
			return nil, err
		}

		return nil, fmt.Errorf("failed to look up event: %w", err)
	}

	var (
		exception EventException
		date      time.Time
	)

	err = r.pool.QueryRow(ctx,
		"INSERT INTO event_exceptions (event_id, occurrence_date, is_cancelled) "+
			"VALUES ($1, $2, TRUE) "+
			"ON CONFLICT (event_id, occurrence_date) DO UPDATE SET is_cancelled = TRUE "+
			"RETURNING id, event_id, occurrence_date, is_cancelled",
		ownedId, occurrenceDate).
		Scan(&exception.Id, &exception.EventId, &date, &exception.IsCancelled)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrConflict
			return nil, err
		}

		return nil, fmt.Errorf("failed to cancel occurrence: %w", err)
	}

	exception.OccurrenceDate = date.Format(time.DateOnly)

	return &exception, nil
}

const selectEventSQL = "SELECT e.id, e.user_id, e.title, e.description, e.start_datetime, e.end_datetime, " +
	"e.is_recurring, e.created_at, e.updated_at, " +
	`r.id, r.frequency, r."interval", r.weekdays, r.nth, r.weekday_for_nth, r.day_of_month, r."month", r."day", r."until", r."count" ` +
	"FROM events e LEFT JOIN recurrence_rules r ON r.event_id = e.id " +
	"WHERE e.user_id = $1 AND e.is_active"

func scanEvent(row pgx.Row) (*Event, error) {
	var (
		e             Event
		ruleId        *string
		frequency     *string
		interval      *int
		weekdays      *string
		nth           *int
		weekdayForNth *string
		dayOfMonth    *int
		month         *int
		day           *int
		until         *time.Time
		count         *int
	)

	err := row.Scan(&e.Id, &e.UserId, &e.Title, &e.Description, &e.StartDatetime, &e.EndDatetime,
		&e.IsRecurring, &e.CreatedAt, &e.UpdatedAt,
		&ruleId, &frequency, &interval, &weekdays, &nth, &weekdayForNth, &dayOfMonth, &month, &day, &until, &count)
	if err != nil {
		return nil, err
	}

	if ruleId != nil {
		rule := RecurrenceRule{
			Id:        *ruleId,
			EventId:   e.Id,
			Frequency: *frequency,
			Interval:  *interval,
		}

		if weekdays != nil {
			rule.WeekdaysCSV = *weekdays
		}

		if nth != nil {
			rule.Nth = *nth
		}

		if weekdayForNth != nil {
			rule.WeekdayForNth = *weekdayForNth
		}

		if dayOfMonth != nil {
			rule.DayOfMonth = *dayOfMonth
		}

		if month != nil {
			rule.Month = *month
		}

		if day != nil {
			rule.Day = *day
		}

		if until != nil {
			rule.Until = until.Format(time.DateOnly)
		}

		if count != nil {
			rule.Count = *count
		}

		rule.finalize()

		e.RecurrenceRule = &rule
	}

	return &e, nil
}

func zeroAsNull(n int) any {
	if n == 0 {
		return nil
	}

	return n
}

func emptyAsNull(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func dateOrNull(s string) any {
	if s == "" {
		return nil
	}

	// The validator already proved the literal parses.
	date, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}

	return date
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type DBMetrics struct {
	qTotal   metric.Int64Counter
	qErrors  metric.Int64Counter
	qLatency metric.Float64Histogram
}

func NewDBMetrics() *DBMetrics {
	meter := otel.Meter("calendar-service/db")

	qTotal, _ := meter.Int64Counter("db.query.total")
	qErrors, _ := meter.Int64Counter("db.query.errors.total")
	qLatency, _ := meter.Float64Histogram("db.query.duration.ms")

	return &DBMetrics{qTotal: qTotal, qErrors: qErrors, qLatency: qLatency}
}

func (m *DBMetrics) Observe(ctx context.Context, op string, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgres"),
		attribute.String("db.operation", op),
	}

	m.qTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	ms := float64(time.Since(start).Milliseconds())
	m.qLatency.Record(ctx, ms, metric.WithAttributes(attrs...))

	if err != nil {
		m.qErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
