package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"meetrecap/internal/models"

	"github.com/google/uuid"
)

// CreateMeeting inserts a meeting with its attendee list serialized as JSON.
func (s *Service) CreateMeeting(ctx context.Context, m models.Meeting) (*models.Meeting, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	attendees, err := json.Marshal(m.Attendees)
	if err != nil {
		return nil, fmt.Errorf("marshal attendees: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, provider, provider_event_id, title, start_time, end_time,
			timezone, organizer_name, organizer_email, attendees)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Provider, m.ProviderEventID, m.Title,
		nullableTime(m.StartTime), nullableTime(m.EndTime),
		m.Timezone, m.OrganizerName, m.OrganizerEmail, string(attendees),
	)
	if err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	return &m, nil
}

// GetMeeting reads one meeting by id.
func (s *Service) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, provider, provider_event_id, title, start_time, end_time,
			timezone, organizer_name, organizer_email, attendees
		 FROM meetings WHERE id = ?`, id)

	var m models.Meeting
	var start, end sql.NullTime
	var attendees string
	err := row.Scan(&m.ID, &m.Provider, &m.ProviderEventID, &m.Title, &start, &end,
		&m.Timezone, &m.OrganizerName, &m.OrganizerEmail, &attendees)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	if start.Valid {
		m.StartTime = start.Time
	}
	if end.Valid {
		m.EndTime = end.Time
	}
	if err := json.Unmarshal([]byte(attendees), &m.Attendees); err != nil {
		// A malformed attendee blob should not sink the pipeline; the
		// normalizer falls back to the organizer.
		m.Attendees = nil
	}
	return &m, nil
}
