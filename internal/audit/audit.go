// Package audit records portal actions that change clinic data.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// EventType names an audited action.
type EventType string

const (
	// EventSessionLogin is logged when a user signs in.
	EventSessionLogin EventType = "session.login"
	// EventAppointmentBooked is logged when a patient books an appointment.
	EventAppointmentBooked EventType = "appointment.booked"
	// EventAppointmentCancelled is logged when a patient cancels an appointment.
	EventAppointmentCancelled EventType = "appointment.cancelled"
)

// Event is an immutable audit record.
type Event struct {
	ID        string          `json:"id"`
	EventType EventType       `json:"event_type"`
	UserID    string          `json:"user_id"`
	EntityID  string          `json:"entity_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Details carries event specific fields.
type Details struct {
	Role     string `json:"role,omitempty"`
	DoctorID string `json:"doctor_id,omitempty"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
}

// Service writes audit events. A nil *Service or one without a database
// silently drops events.
type Service struct {
	db *sql.DB
}

// NewService creates an audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Enabled reports whether events are persisted.
func (s *Service) Enabled() bool {
	return s != nil && s.db != nil
}

// LogEvent records an audit event.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if !s.Enabled() {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO portal_audit_events (
			id, event_type, user_id, entity_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.UserID,
		nullString(event.EntityID),
		nullDetails(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log event: %w", err)
	}
	return nil
}

// LogLogin records a successful sign in.
func (s *Service) LogLogin(ctx context.Context, userID, role string) error {
	detailsJSON, _ := json.Marshal(Details{Role: role})
	return s.LogEvent(ctx, Event{
		EventType: EventSessionLogin,
		UserID:    userID,
		Details:   detailsJSON,
	})
}

// LogAppointmentBooked records a new booking.
func (s *Service) LogAppointmentBooked(ctx context.Context, userID, appointmentID, doctorID, date, timeOfDay string) error {
	detailsJSON, _ := json.Marshal(Details{DoctorID: doctorID, Date: date, Time: timeOfDay})
	return s.LogEvent(ctx, Event{
		EventType: EventAppointmentBooked,
		UserID:    userID,
		EntityID:  appointmentID,
		Details:   detailsJSON,
	})
}

// LogAppointmentCancelled records a cancellation.
func (s *Service) LogAppointmentCancelled(ctx context.Context, userID, appointmentID string) error {
	return s.LogEvent(ctx, Event{
		EventType: EventAppointmentCancelled,
		UserID:    userID,
		EntityID:  appointmentID,
	})
}

// Filter specifies criteria for querying audit events.
type Filter struct {
	UserID    string
	EventType EventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// QueryEvents retrieves a user's audit events, newest first.
func (s *Service) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	if !s.Enabled() {
		return nil, nil
	}
	query := `
		SELECT id, event_type, user_id, entity_id, details, created_at
		FROM portal_audit_events
		WHERE user_id = $1
	`
	args := []interface{}{filter.UserID}
	argIdx := 2

	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var entityID sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &e.EventType, &e.UserID, &entityID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.EntityID = entityID.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to read events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDetails(details json.RawMessage) interface{} {
	if len(details) == 0 {
		return nil
	}
	return []byte(details)
}
