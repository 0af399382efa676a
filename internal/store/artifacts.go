package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"meetrecap/internal/models"
)

// CreateArtifact persists the normalized outcomes for a meeting. Artifacts
// are write-once per meeting; a delivery retry re-running the pipeline does
// not duplicate or overwrite the row.
func (s *Service) CreateArtifact(ctx context.Context, a models.Artifact) error {
	decisions, err := json.Marshal(a.Outcomes.Decisions)
	if err != nil {
		return fmt.Errorf("marshal decisions: %w", err)
	}
	actions, err := json.Marshal(a.Outcomes.ActionItems)
	if err != nil {
		return fmt.Errorf("marshal action items: %w", err)
	}
	followups, err := json.Marshal(a.Outcomes.Followups)
	if err != nil {
		return fmt.Errorf("marshal followups: %w", err)
	}
	notes, err := json.Marshal(a.Outcomes.InternalNotes)
	if err != nil {
		return fmt.Errorf("marshal internal notes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.insertIgnore()+` INTO artifacts (meeting_id, decisions, action_items, followups, internal_notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.MeetingID, string(decisions), string(actions), string(followups), string(notes), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	return nil
}

// GetArtifactByMeeting reads the persisted outcomes for a meeting.
func (s *Service) GetArtifactByMeeting(ctx context.Context, meetingID string) (*models.Artifact, error) {
	var a models.Artifact
	var decisions, actions, followups, notes string
	err := s.db.QueryRowContext(ctx,
		`SELECT meeting_id, decisions, action_items, followups, internal_notes
		 FROM artifacts WHERE meeting_id = ?`,
		meetingID).Scan(&a.MeetingID, &decisions, &actions, &followups, &notes)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	if err := json.Unmarshal([]byte(decisions), &a.Outcomes.Decisions); err != nil {
		return nil, fmt.Errorf("decode decisions: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &a.Outcomes.ActionItems); err != nil {
		return nil, fmt.Errorf("decode action items: %w", err)
	}
	if err := json.Unmarshal([]byte(followups), &a.Outcomes.Followups); err != nil {
		return nil, fmt.Errorf("decode followups: %w", err)
	}
	if err := json.Unmarshal([]byte(notes), &a.Outcomes.InternalNotes); err != nil {
		return nil, fmt.Errorf("decode internal notes: %w", err)
	}
	return &a, nil
}
