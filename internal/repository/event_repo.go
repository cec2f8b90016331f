package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"retrolock/internal/models"

	"github.com/google/uuid"
)

// timeLayout is fixed width so that text comparison follows time order.
const timeLayout = "2006-01-02 15:04:05.000000"

var readLayouts = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

// Append inserts a new event. If EventID or OccurredAt are empty, they're set.
func (r *EventSQLite) Append(ctx context.Context, e models.ActuatorEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO actuator_events (id, occurred_at, type, result, engaged, message, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.EventID,
		formatTime(e.OccurredAt),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		e.Result,
		e.Engaged,
		e.Description,
		metaPtr,
	)
	if err != nil {
		return fmt.Errorf("insert actuator event: %w", err)
	}
	return nil
}

// List returns events filtered by [from, to] (inclusive) and/or type, ordered ASC.
func (r *EventSQLite) List(ctx context.Context, from, to time.Time, typ string) ([]models.ActuatorEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, formatTime(to))
	}
	if typ = strings.ToUpper(strings.TrimSpace(typ)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}

	q := `SELECT id, occurred_at, type, result, engaged, message, meta FROM actuator_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query actuator events: %w", err)
	}
	defer rows.Close()

	out := make([]models.ActuatorEvent, 0, 64)
	for rows.Next() {
		var (
			ev         models.ActuatorEvent
			occurredAt string
			metaStr    sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &occurredAt, &ev.Type, &ev.Result, &ev.Engaged, &ev.Description, &metaStr); err != nil {
			return nil, fmt.Errorf("scan actuator event: %w", err)
		}
		if ev.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.EventID, err)
		}

		if metaStr.Valid && metaStr.String != "" {
			var v any
			if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = metaStr.String // keep raw if malformed
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
