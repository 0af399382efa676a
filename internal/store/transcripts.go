package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"meetrecap/internal/models"
)

// CreateTranscript persists the transcript for a recording. Transcripts are
// write-once: a concurrent insert for the same recording is ignored so the
// first written row stays authoritative.
func (s *Service) CreateTranscript(ctx context.Context, t models.Transcript) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("marshal transcript segments: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.insertIgnore()+` INTO transcripts (recording_id, provider, content_json, content_text, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.RecordingID, t.Provider, string(segments), t.Text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create transcript: %w", err)
	}
	return nil
}

// GetTranscriptByRecording reads the cached transcript for a recording.
func (s *Service) GetTranscriptByRecording(ctx context.Context, recordingID string) (*models.Transcript, error) {
	var t models.Transcript
	var segments string
	err := s.db.QueryRowContext(ctx,
		`SELECT recording_id, provider, content_json, content_text FROM transcripts WHERE recording_id = ?`,
		recordingID).Scan(&t.RecordingID, &t.Provider, &segments, &t.Text)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(segments), &t.Segments); err != nil {
		return nil, fmt.Errorf("decode transcript segments: %w", err)
	}
	return &t, nil
}
