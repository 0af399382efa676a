package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"meetrecap/internal/config"
	"meetrecap/internal/models"
	"meetrecap/internal/retry"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider calls the Whisper transcription endpoint with multipart
// form audio and parses the verbose JSON response for segment timestamps.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIProvider(cfg config.ProviderConfig, timeoutSeconds int) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, audio io.Reader, filename string) (*Result, error) {
	body, contentType, err := buildMultipart(audio, filename, p.model)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("build whisper request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read whisper response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.StatusError{Code: resp.StatusCode, Body: truncateBody(raw)}
	}

	var parsed whisperResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}

	res := &Result{Provider: p.Name(), Text: parsed.Text}
	for _, s := range parsed.Segments {
		res.Segments = append(res.Segments, models.TranscriptSegment{
			Speaker: speakerOrDefault(""),
			Start:   s.Start,
			End:     s.End,
			Text:    s.Text,
		})
	}
	return res, nil
}

func buildMultipart(audio io.Reader, filename, model string) (io.Reader, string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			part, err := mw.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, audio); err != nil {
				return err
			}
			if err := mw.WriteField("model", model); err != nil {
				return err
			}
			if err := mw.WriteField("response_format", "verbose_json"); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType(), nil
}

func truncateBody(raw []byte) string {
	const max = 500
	if len(raw) > max {
		raw = raw[:max]
	}
	return string(raw)
}
