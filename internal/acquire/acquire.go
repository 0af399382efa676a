// Package acquire makes sure a recording's audio is in blob storage,
// downloading it from the meeting provider on first touch.
package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"meetrecap/internal/blob"
	"meetrecap/internal/identity"
	"meetrecap/internal/models"
	"meetrecap/internal/retry"
	"meetrecap/internal/store"

	"github.com/sirupsen/logrus"
)

// MissingCredentialsError means the organizer has not connected the
// provider, or their stored tokens are unusable. Not retryable: the user
// has to reconnect.
type MissingCredentialsError struct {
	Provider string
	Reason   string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("%s credentials unavailable: %s", e.Provider, e.Reason)
}

// MissingReferenceError means the recording row lacks the provider
// reference needed to fetch it (download URL, file id, or file path).
type MissingReferenceError struct {
	Provider string
	Field    string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("recording is missing %s required for %s acquisition", e.Field, e.Provider)
}

// DownloadError wraps a failed fetch from the provider.
type DownloadError struct {
	Provider string
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download from %s failed: %v", e.Provider, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

const driveBaseURL = "https://www.googleapis.com/drive/v3"

// Service downloads recordings and persists them.
type Service struct {
	store     *store.Service
	blobs     *blob.Store
	refresher *identity.Refresher
	client    *http.Client
	log       *logrus.Entry
}

func New(st *store.Service, blobs *blob.Store, refresher *identity.Refresher, log *logrus.Entry) *Service {
	return &Service{
		store:     st,
		blobs:     blobs,
		refresher: refresher,
		client:    &http.Client{Timeout: 10 * time.Minute},
		log:       log,
	}
}

// Ensure guarantees rec has a stored file path and returns it. When the
// recording was already downloaded the persisted path is reused, so a
// retried job never re-fetches from the provider.
func (s *Service) Ensure(ctx context.Context, rec *models.Recording, meeting *models.Meeting) (string, error) {
	if rec.FilePath != "" {
		return rec.FilePath, nil
	}

	var data []byte
	var err error
	switch rec.Provider {
	case models.ProviderZoom:
		data, err = s.downloadZoom(ctx, rec, meeting)
	case models.ProviderMeet:
		data, err = s.downloadMeet(ctx, rec, meeting)
	case models.ProviderManual:
		// Manual uploads are stored at intake; an empty path here is a bug
		// upstream, not something this stage can repair.
		return "", &MissingReferenceError{Provider: rec.Provider, Field: "file_path"}
	default:
		return "", fmt.Errorf("unsupported recording provider: %s", rec.Provider)
	}
	if err != nil {
		return "", err
	}

	extension := rec.FileExtension
	if extension == "" {
		extension = "mp4"
	}
	mime := rec.FileMime
	if mime == "" {
		mime = "video/mp4"
	}

	path, err := s.blobs.SaveBytes(ctx, data, extension, mime)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateRecordingFile(ctx, rec.ID, path, rec.DurationSeconds); err != nil {
		return "", err
	}
	rec.FilePath = path

	s.log.WithFields(logrus.Fields{
		"recording_id": rec.ID,
		"provider":     rec.Provider,
		"bytes":        len(data),
	}).Info("recording acquired")
	return path, nil
}

// organizerTokens loads (and refreshes once, if expired) the organizer's
// tokens for an identity provider.
func (s *Service) organizerTokens(ctx context.Context, meeting *models.Meeting, provider string) (identity.Tokens, error) {
	if meeting.OrganizerEmail == "" {
		return identity.Tokens{}, &MissingCredentialsError{Provider: provider, Reason: "meeting has no organizer email"}
	}
	user, err := s.store.GetUserByEmail(ctx, meeting.OrganizerEmail)
	if err != nil {
		if err == store.ErrNotFound {
			return identity.Tokens{}, &MissingCredentialsError{Provider: provider, Reason: "organizer has no account"}
		}
		return identity.Tokens{}, err
	}
	tokens, err := s.store.GetOAuthTokens(ctx, user.ID, provider)
	if err != nil {
		if err == store.ErrNotFound {
			return identity.Tokens{}, &MissingCredentialsError{Provider: provider, Reason: "organizer has not connected " + provider}
		}
		return identity.Tokens{}, err
	}

	if tokens.Expired(time.Now()) && tokens.RefreshToken != "" {
		refreshed, err := s.refresher.Refresh(ctx, provider, *tokens)
		if err != nil {
			return identity.Tokens{}, &MissingCredentialsError{Provider: provider, Reason: "token refresh failed: " + err.Error()}
		}
		if err := s.store.SaveOAuthTokens(ctx, user.ID, provider, refreshed); err != nil {
			return identity.Tokens{}, err
		}
		return refreshed, nil
	}
	return *tokens, nil
}

func (s *Service) downloadZoom(ctx context.Context, rec *models.Recording, meeting *models.Meeting) ([]byte, error) {
	if rec.DownloadURL == "" {
		return nil, &MissingReferenceError{Provider: rec.Provider, Field: "download_url"}
	}
	tokens, err := s.organizerTokens(ctx, meeting, "zoom")
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(rec.DownloadURL)
	if err != nil {
		return nil, &DownloadError{Provider: rec.Provider, Err: err}
	}
	q := u.Query()
	q.Set("access_token", tokens.AccessToken)
	u.RawQuery = q.Encode()

	return s.fetch(ctx, rec.Provider, u.String(), "")
}

func (s *Service) downloadMeet(ctx context.Context, rec *models.Recording, meeting *models.Meeting) ([]byte, error) {
	if rec.ProviderRecordingID == "" {
		return nil, &MissingReferenceError{Provider: rec.Provider, Field: "provider_recording_id"}
	}
	tokens, err := s.organizerTokens(ctx, meeting, "google")
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/files/%s?alt=media", driveBaseURL, url.PathEscape(rec.ProviderRecordingID))
	return s.fetch(ctx, rec.Provider, endpoint, tokens.AccessToken)
}

func (s *Service) fetch(ctx context.Context, provider, endpoint, bearer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &DownloadError{Provider: provider, Err: err}
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &DownloadError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, &DownloadError{
			Provider: provider,
			Err:      &retry.StatusError{Code: resp.StatusCode, Body: string(raw)},
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DownloadError{Provider: provider, Err: err}
	}
	return data, nil
}
