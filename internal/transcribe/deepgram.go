package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"meetrecap/internal/config"
	"meetrecap/internal/retry"
)

const defaultDeepgramBaseURL = "https://api.deepgram.com/v1"

// DeepgramProvider posts raw audio to the prerecorded listen endpoint.
type DeepgramProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewDeepgramProvider(cfg config.ProviderConfig, timeoutSeconds int) *DeepgramProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultDeepgramBaseURL
	}
	return &DeepgramProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

func (p *DeepgramProvider) Name() string { return "deepgram" }

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (p *DeepgramProvider) Transcribe(ctx context.Context, audio io.Reader, filename string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/listen?model=%s&smart_format=true", p.baseURL, url.QueryEscape(p.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, audio)
	if err != nil {
		return nil, fmt.Errorf("build deepgram request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", mimeForFilename(filename))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read deepgram response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.StatusError{Code: resp.StatusCode, Body: truncateBody(raw)}
	}

	var parsed deepgramResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode deepgram response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("deepgram returned no transcription alternatives")
	}

	return &Result{
		Provider: p.Name(),
		Text:     parsed.Results.Channels[0].Alternatives[0].Transcript,
	}, nil
}
