package models

import "time"

// RecordingStatus is the lifecycle state of a recording. Transitions only
// move forward: pending -> processing -> emailed, with processing -> failed
// on exhausted retries. emailed and failed are terminal.
type RecordingStatus string

const (
	StatusPending    RecordingStatus = "pending"
	StatusProcessing RecordingStatus = "processing"
	StatusEmailed    RecordingStatus = "emailed"
	StatusFailed     RecordingStatus = "failed"
)

// Recording providers.
const (
	ProviderZoom   = "zoom"
	ProviderMeet   = "meet"
	ProviderManual = "manual"
)

// Recording identifies one piece of audio/video tied to a Meeting.
type Recording struct {
	ID                  string          `json:"id"`
	MeetingID           string          `json:"meeting_id"`
	Provider            string          `json:"provider"`
	ProviderRecordingID string          `json:"provider_recording_id"`
	DownloadURL         string          `json:"download_url"`
	FileExtension       string          `json:"file_extension"`
	FileMime            string          `json:"file_mime"`
	FilePath            string          `json:"file_path"`
	DurationSeconds     int             `json:"duration_seconds"`
	Status              RecordingStatus `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
