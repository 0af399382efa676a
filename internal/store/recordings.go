package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meetrecap/internal/models"

	"github.com/google/uuid"
)

const recordingColumns = `id, meeting_id, provider, provider_recording_id, download_url,
	file_extension, file_mime, file_path, duration_seconds, status, created_at, updated_at`

// CreateRecording inserts a new recording in pending state and returns it.
func (s *Service) CreateRecording(ctx context.Context, rec models.Recording) (*models.Recording, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings (`+recordingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.MeetingID, rec.Provider, rec.ProviderRecordingID, rec.DownloadURL,
		rec.FileExtension, rec.FileMime, rec.FilePath, rec.DurationSeconds, string(rec.Status),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	return &rec, nil
}

// GetRecording reads one recording by id.
func (s *Service) GetRecording(ctx context.Context, id string) (*models.Recording, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)

	var rec models.Recording
	var status string
	err := row.Scan(&rec.ID, &rec.MeetingID, &rec.Provider, &rec.ProviderRecordingID,
		&rec.DownloadURL, &rec.FileExtension, &rec.FileMime, &rec.FilePath,
		&rec.DurationSeconds, &status, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	rec.Status = models.RecordingStatus(status)
	return &rec, nil
}

// ClaimRecording moves a recording into processing with a conditional
// transition: it succeeds for pending rows and for processing rows whose
// last update is older than staleAfter, so a queue retry can reclaim a
// recording abandoned by a crashed attempt while a concurrently dispatched
// duplicate loses the claim and drops its job.
//
// staleAfter must stay below the minimum queue retry backoff so the first
// retry of a crashed attempt finds the row stale. A live attempt keeps its
// claim across long stages by touching updated_at between them; without
// that heartbeat any duplicate arriving staleAfter into a slow stage would
// steal the row.
func (s *Service) ClaimRecording(ctx context.Context, id string, staleAfter time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET status = ?, updated_at = ?
		 WHERE id = ? AND (status = ? OR (status = ? AND updated_at < ?))`,
		string(models.StatusProcessing), now,
		id, string(models.StatusPending), string(models.StatusProcessing), now.Add(-staleAfter),
	)
	if err != nil {
		return false, fmt.Errorf("claim recording: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim recording rows: %w", err)
	}
	return n > 0, nil
}

// TouchRecording refreshes updated_at on a processing row. Pipeline stages
// call it as a heartbeat so a long-running claim does not look stale.
func (s *Service) TouchRecording(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET updated_at = ? WHERE id = ? AND status = ?`,
		time.Now().UTC(), id, string(models.StatusProcessing))
	if err != nil {
		return fmt.Errorf("touch recording: %w", err)
	}
	return nil
}

// UpdateRecordingStatus sets the lifecycle status.
func (s *Service) UpdateRecordingStatus(ctx context.Context, id string, status models.RecordingStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update recording status: %w", err)
	}
	return nil
}

// UpdateRecordingFile records the stored path and duration after acquisition.
func (s *Service) UpdateRecordingFile(ctx context.Context, id, filePath string, durationSeconds int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET file_path = ?, duration_seconds = ?, updated_at = ? WHERE id = ?`,
		filePath, durationSeconds, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update recording file: %w", err)
	}
	return nil
}
