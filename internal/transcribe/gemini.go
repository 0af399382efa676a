package transcribe

import (
	"context"
	"fmt"
	"io"
	"strings"

	"meetrecap/internal/config"

	"google.golang.org/genai"
)

const geminiTranscribePrompt = "Transcribe this meeting audio verbatim. " +
	"Return only the spoken text, with no commentary or formatting."

// GeminiProvider transcribes by prompting a Gemini model with inline audio.
// It returns plain text only; Gemini does not report segment timestamps.
type GeminiProvider struct {
	apiKey string
	model  string
}

func NewGeminiProvider(cfg config.ProviderConfig) *GeminiProvider {
	return &GeminiProvider{apiKey: cfg.APIKey, model: cfg.Model}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Transcribe(ctx context.Context, audio io.Reader, filename string) (*Result, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeForFilename(filename)),
		genai.NewPartFromText(geminiTranscribePrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, fmt.Errorf("gemini returned empty transcription")
	}

	return &Result{Provider: p.Name(), Text: text}, nil
}
