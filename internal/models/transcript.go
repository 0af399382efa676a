package models

// TranscriptSegment is one speaker-attributed span of transcribed audio.
// For recordings transcribed in chunks, Start and End are relative to the
// chunk that produced the segment, not the whole recording.
type TranscriptSegment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// Transcript is the persisted, immutable transcription of one recording.
// Once a row exists, transcription is never re-run for that recording.
type Transcript struct {
	RecordingID string              `json:"recording_id"`
	Provider    string              `json:"provider"`
	Segments    []TranscriptSegment `json:"segments"`
	Text        string              `json:"text"`
}
