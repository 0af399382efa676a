// Package transcribe turns stored audio into text through a prioritized
// list of transcription vendors with bounded per-call retry.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"meetrecap/internal/config"
	"meetrecap/internal/retry"

	"github.com/sirupsen/logrus"
)

// Engine iterates providers in priority order for each audio unit,
// retrying transient failures per provider before falling back to the next.
type Engine struct {
	providers []Provider
	policy    retry.Policy
	log       *logrus.Entry
}

func NewEngine(providers []Provider, policy retry.Policy, log *logrus.Entry) (*Engine, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("no transcription providers configured")
	}
	return &Engine{providers: providers, policy: policy, log: log}, nil
}

// BuildProviders constructs the provider list from config, in the
// configured priority order, skipping entries without credentials.
func BuildProviders(cfg config.TranscriptionConfig) []Provider {
	var providers []Provider
	for _, name := range cfg.Providers {
		switch name {
		case "openai":
			if cfg.OpenAI.APIKey != "" {
				providers = append(providers, NewOpenAIProvider(cfg.OpenAI, cfg.TimeoutSeconds))
			}
		case "gemini":
			if cfg.Gemini.APIKey != "" {
				providers = append(providers, NewGeminiProvider(cfg.Gemini))
			}
		case "deepgram":
			if cfg.Deepgram.APIKey != "" {
				providers = append(providers, NewDeepgramProvider(cfg.Deepgram, cfg.TimeoutSeconds))
			}
		}
	}
	return providers
}

// TranscribeFile transcribes the given audio units (a whole file, or ffmpeg
// chunks in playback order) and merges the outputs. Chunk texts are joined
// with newlines; per-chunk segments are appended as returned, so their
// timestamps stay chunk-relative.
func (e *Engine) TranscribeFile(ctx context.Context, paths []string) (*Result, error) {
	merged := &Result{}
	var textParts []string

	for i, path := range paths {
		unit, err := e.transcribeUnit(ctx, path)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			merged.Provider = unit.Provider
		}
		textParts = append(textParts, strings.TrimSpace(unit.Text))
		merged.Segments = append(merged.Segments, unit.Segments...)
	}

	merged.Text = strings.TrimSpace(strings.Join(textParts, "\n"))
	return merged, nil
}

func (e *Engine) transcribeUnit(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio unit: %w", err)
	}
	filename := filepath.Base(path)

	var lastErr error
	for _, p := range e.providers {
		var res *Result
		attempt := func() error {
			r, err := p.Transcribe(ctx, bytes.NewReader(data), filename)
			if err != nil {
				return err
			}
			res = r
			return nil
		}
		if err := e.policy.Do(ctx, attempt); err != nil {
			e.log.WithFields(logrus.Fields{
				"provider": p.Name(),
				"unit":     filename,
			}).WithError(err).Warn("transcription provider failed, falling back")
			lastErr = err
			continue
		}
		return res, nil
	}
	return nil, &TranscriptionError{Cause: lastErr}
}

// mimeForFilename maps a filename to the audio content type providers want.
func mimeForFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	default:
		return "audio/mpeg"
	}
}

// speakerOrDefault fills the placeholder speaker for providers that do not
// diarize.
func speakerOrDefault(s string) string {
	if s == "" {
		return "Speaker"
	}
	return s
}
