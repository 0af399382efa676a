// Package pipeline runs one recording through the full flow: acquire,
// segment, transcribe, extract, normalize, persist, email.
//
// Every stage reuses persisted results when they exist (file path,
// transcript row, artifact row), so a retried job resumes where the
// previous attempt stopped instead of recomputing and double-billing.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"meetrecap/internal/delivery"
	"meetrecap/internal/extract"
	"meetrecap/internal/models"
	"meetrecap/internal/normalize"
	"meetrecap/internal/store"
	"meetrecap/internal/transcode"
	"meetrecap/internal/transcribe"

	"github.com/sirupsen/logrus"
)

// Store is the subset of the persistence layer the pipeline touches.
type Store interface {
	GetRecording(ctx context.Context, id string) (*models.Recording, error)
	ClaimRecording(ctx context.Context, id string, staleAfter time.Duration) (bool, error)
	TouchRecording(ctx context.Context, id string) error
	UpdateRecordingStatus(ctx context.Context, id string, status models.RecordingStatus) error
	GetMeeting(ctx context.Context, id string) (*models.Meeting, error)
	GetTranscriptByRecording(ctx context.Context, recordingID string) (*models.Transcript, error)
	CreateTranscript(ctx context.Context, t models.Transcript) error
	GetArtifactByMeeting(ctx context.Context, meetingID string) (*models.Artifact, error)
	CreateArtifact(ctx context.Context, a models.Artifact) error
}

// Acquirer ensures the recording audio is stored and returns its path.
type Acquirer interface {
	Ensure(ctx context.Context, rec *models.Recording, meeting *models.Meeting) (string, error)
}

// Localizer turns a stored path into a local filesystem path.
type Localizer interface {
	Localize(ctx context.Context, storedPath, dir string) (string, error)
}

// Segmenter splits oversized audio into transcribable chunks.
type Segmenter interface {
	Segment(ctx context.Context, localPath string, maxBytes int64) (*transcode.SegmentResult, error)
}

// Transcriber transcribes a set of audio files in playback order.
type Transcriber interface {
	TranscribeFile(ctx context.Context, paths []string) (*transcribe.Result, error)
}

// OutcomeExtractor derives structured outcomes from a transcript.
type OutcomeExtractor interface {
	Extract(ctx context.Context, meeting extract.MeetingContext, segments []models.TranscriptSegment) (*models.Outcomes, error)
}

// Mailer sends the organizer summary.
type Mailer interface {
	SendOrganizerEmail(ctx context.Context, p delivery.Payload) error
}

// Pipeline wires the stages together.
type Pipeline struct {
	store      Store
	acquirer   Acquirer
	localizer  Localizer
	segmenter  Segmenter
	transcribe Transcriber
	extractor  OutcomeExtractor
	mailer     Mailer

	maxAudioBytes int64
	claimStale    time.Duration
	log           *logrus.Entry
}

type Config struct {
	MaxAudioBytes int64
	ClaimStale    time.Duration
}

func New(st Store, acq Acquirer, loc Localizer, seg Segmenter, tr Transcriber, ex OutcomeExtractor, mail Mailer, cfg Config, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		store:         st,
		acquirer:      acq,
		localizer:     loc,
		segmenter:     seg,
		transcribe:    tr,
		extractor:     ex,
		mailer:        mail,
		maxAudioBytes: cfg.MaxAudioBytes,
		claimStale:    cfg.ClaimStale,
		log:           log,
	}
}

// Process runs one recording to completion. A nil return means the
// recording reached emailed, was already there, or the claim was lost to a
// concurrent worker. An error return means the job should be retried or
// failed by the queue.
func (p *Pipeline) Process(ctx context.Context, recordingID string) error {
	log := p.log.WithField("recording_id", recordingID)

	rec, err := p.store.GetRecording(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("load recording: %w", err)
	}
	if rec.Status == models.StatusEmailed {
		log.Info("recording already emailed, skipping")
		return nil
	}

	claimed, err := p.store.ClaimRecording(ctx, rec.ID, p.claimStale)
	if err != nil {
		return fmt.Errorf("claim recording: %w", err)
	}
	if !claimed {
		log.Info("recording claimed by another worker, skipping")
		return nil
	}

	meeting, err := p.store.GetMeeting(ctx, rec.MeetingID)
	if err != nil {
		return fmt.Errorf("load meeting: %w", err)
	}

	storedPath, err := p.acquirer.Ensure(ctx, rec, meeting)
	if err != nil {
		return err
	}
	p.heartbeat(ctx, rec.ID, log)

	transcript, err := p.ensureTranscript(ctx, rec, storedPath, log)
	if err != nil {
		return err
	}
	p.heartbeat(ctx, rec.ID, log)

	attendees := attendeeList(meeting)
	nextMeetingDate := normalize.InferNextMeetingDate(meeting.StartTime)

	outcomes, err := p.ensureArtifact(ctx, meeting, transcript, attendees, nextMeetingDate, log)
	if err != nil {
		return err
	}

	if meeting.OrganizerEmail != "" {
		meetingDate := ""
		if !meeting.StartTime.IsZero() {
			meetingDate = meeting.StartTime.Format("2006-01-02")
		}
		err := p.mailer.SendOrganizerEmail(ctx, delivery.Payload{
			OrganizerName:  meeting.OrganizerName,
			OrganizerEmail: meeting.OrganizerEmail,
			MeetingTitle:   meeting.Title,
			MeetingDate:    meetingDate,
			Outcomes:       outcomes,
		})
		if err != nil {
			return err
		}
	} else {
		log.Warn("meeting has no organizer email, skipping delivery")
	}

	if err := p.store.UpdateRecordingStatus(ctx, rec.ID, models.StatusEmailed); err != nil {
		return fmt.Errorf("mark recording emailed: %w", err)
	}
	log.Info("recording processed")
	return nil
}

// heartbeat refreshes the claim between long stages so a concurrent
// duplicate cannot treat it as stale. A failed touch is not fatal; the
// claim CAS still arbitrates.
func (p *Pipeline) heartbeat(ctx context.Context, recordingID string, log *logrus.Entry) {
	if err := p.store.TouchRecording(ctx, recordingID); err != nil {
		log.WithError(err).Warn("claim heartbeat failed")
	}
}

// ensureTranscript returns the persisted transcript, producing and storing
// one if this is the first attempt to get this far.
func (p *Pipeline) ensureTranscript(ctx context.Context, rec *models.Recording, storedPath string, log *logrus.Entry) (*models.Transcript, error) {
	existing, err := p.store.GetTranscriptByRecording(ctx, rec.ID)
	if err == nil {
		log.Info("reusing persisted transcript")
		return existing, nil
	}
	if err != store.ErrNotFound {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	workDir, err := os.MkdirTemp("", "meeting-audio-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	localPath, err := p.localizer.Localize(ctx, storedPath, workDir)
	if err != nil {
		return nil, err
	}

	seg, err := p.segmenter.Segment(ctx, localPath, p.maxAudioBytes)
	if err != nil {
		return nil, err
	}
	defer seg.Cleanup()

	result, err := p.transcribe.TranscribeFile(ctx, seg.Paths)
	if err != nil {
		return nil, err
	}

	segments := result.Segments
	if len(segments) == 0 {
		segments = []models.TranscriptSegment{{Speaker: "Speaker", Text: result.Text}}
	}
	transcript := models.Transcript{
		RecordingID: rec.ID,
		Provider:    result.Provider,
		Segments:    segments,
		Text:        result.Text,
	}
	if err := p.store.CreateTranscript(ctx, transcript); err != nil {
		return nil, fmt.Errorf("persist transcript: %w", err)
	}
	log.WithField("provider", result.Provider).Info("transcript created")
	return &transcript, nil
}

// ensureArtifact returns the persisted outcomes, running extraction and
// normalization when no artifact exists yet.
func (p *Pipeline) ensureArtifact(ctx context.Context, meeting *models.Meeting, transcript *models.Transcript, attendees []models.Person, nextMeetingDate string, log *logrus.Entry) (*models.Outcomes, error) {
	existing, err := p.store.GetArtifactByMeeting(ctx, meeting.ID)
	if err == nil {
		log.Info("reusing persisted artifact")
		return &existing.Outcomes, nil
	}
	if err != store.ErrNotFound {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	raw, err := p.extractor.Extract(ctx, extract.MeetingContext{
		Title:           meeting.Title,
		StartTime:       meeting.StartTime,
		Timezone:        meeting.Timezone,
		OrganizerName:   meeting.OrganizerName,
		OrganizerEmail:  meeting.OrganizerEmail,
		Attendees:       attendees,
		NextMeetingDate: nextMeetingDate,
	}, transcript.Segments)
	if err != nil {
		return nil, err
	}

	normalized := normalize.Outcomes(raw, attendees, nextMeetingDate, meeting.Title)

	artifact := models.Artifact{MeetingID: meeting.ID, Outcomes: *normalized}
	if err := p.store.CreateArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("persist artifact: %w", err)
	}
	log.Info("artifact created")
	return normalized, nil
}

// attendeeList filters attendees down to entries with an email, falling
// back to the organizer alone when the list is empty.
func attendeeList(meeting *models.Meeting) []models.Person {
	var out []models.Person
	for _, a := range meeting.Attendees {
		if a.Email == "" {
			continue
		}
		name := a.Name
		if name == "" {
			name = a.Email
		}
		out = append(out, models.Person{Name: name, Email: a.Email})
	}
	if len(out) == 0 && meeting.OrganizerEmail != "" {
		name := meeting.OrganizerName
		if name == "" {
			name = meeting.OrganizerEmail
		}
		out = append(out, models.Person{Name: name, Email: meeting.OrganizerEmail})
	}
	return out
}
