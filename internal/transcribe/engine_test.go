package transcribe

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meetrecap/internal/logging"
	"meetrecap/internal/models"
	"meetrecap/internal/retry"
)

type fakeProvider struct {
	name    string
	results map[string]*Result
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Transcribe(ctx context.Context, audio io.Reader, filename string) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[filename]; ok {
		return res, nil
	}
	return &Result{Provider: f.name, Text: "text from " + f.name}, nil
}

func writeChunks(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func newTestEngine(t *testing.T, providers ...Provider) *Engine {
	t.Helper()
	policy := retry.Policy{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	e, err := NewEngine(providers, policy, logging.Component(logging.New("error"), "transcribe"))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEngineRequiresProviders(t *testing.T) {
	if _, err := NewEngine(nil, retry.Policy{}, nil); err == nil {
		t.Fatal("expected error for empty provider list")
	}
}

func TestTranscribeFileMergesChunksInOrder(t *testing.T) {
	p := &fakeProvider{name: "openai", results: map[string]*Result{
		"chunk-000.mp3": {Provider: "openai", Text: "first part", Segments: []models.TranscriptSegment{{Speaker: "Speaker", Start: 0, End: 4, Text: "first part"}}},
		"chunk-001.mp3": {Provider: "openai", Text: "second part", Segments: []models.TranscriptSegment{{Speaker: "Speaker", Start: 0, End: 3, Text: "second part"}}},
	}}
	e := newTestEngine(t, p)
	paths := writeChunks(t, "chunk-000.mp3", "chunk-001.mp3")

	res, err := e.TranscribeFile(context.Background(), paths)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "first part\nsecond part" {
		t.Fatalf("wrong merged text: %q", res.Text)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(res.Segments))
	}
	// Chunk timestamps stay chunk-relative after the merge.
	if res.Segments[1].Start != 0 {
		t.Fatalf("segment timestamps were rebased: %+v", res.Segments[1])
	}
	if res.Provider != "openai" {
		t.Fatalf("wrong provider: %q", res.Provider)
	}
}

func TestTranscribeFileFallsBackAcrossProviders(t *testing.T) {
	// Auth failures skip the in-provider retry and go straight to fallback.
	first := &fakeProvider{name: "openai", err: &retry.StatusError{Code: 401}}
	second := &fakeProvider{name: "deepgram"}
	e := newTestEngine(t, first, second)
	paths := writeChunks(t, "audio.mp3")

	res, err := e.TranscribeFile(context.Background(), paths)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.calls != 1 {
		t.Fatalf("non-retryable error should not be retried, got %d calls", first.calls)
	}
	if res.Provider != "deepgram" {
		t.Fatalf("expected fallback provider, got %q", res.Provider)
	}
}

func TestTranscribeFileRetriesTransientErrors(t *testing.T) {
	first := &fakeProvider{name: "openai", err: &retry.StatusError{Code: 503}}
	second := &fakeProvider{name: "gemini"}
	e := newTestEngine(t, first, second)
	paths := writeChunks(t, "audio.mp3")

	if _, err := e.TranscribeFile(context.Background(), paths); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.calls != 2 {
		t.Fatalf("expected 2 attempts against first provider, got %d", first.calls)
	}
}

func TestTranscribeFileAllProvidersFail(t *testing.T) {
	lastErr := &retry.StatusError{Code: 500}
	first := &fakeProvider{name: "openai", err: &retry.StatusError{Code: 401}}
	second := &fakeProvider{name: "deepgram", err: lastErr}
	e := newTestEngine(t, first, second)
	paths := writeChunks(t, "audio.mp3")

	_, err := e.TranscribeFile(context.Background(), paths)
	var tErr *TranscriptionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	var se *retry.StatusError
	if !errors.As(tErr.Cause, &se) || se.Code != 500 {
		t.Fatalf("cause should be the last provider's error, got %v", tErr.Cause)
	}
}

func TestMimeForFilename(t *testing.T) {
	cases := map[string]string{
		"a.mp3":  "audio/mpeg",
		"a.wav":  "audio/wav",
		"a.m4a":  "audio/mp4",
		"a.MP4":  "video/mp4",
		"a.webm": "audio/webm",
		"a":      "audio/mpeg",
	}
	for name, want := range cases {
		if got := mimeForFilename(name); got != want {
			t.Errorf("%s: expected %s, got %s", name, want, got)
		}
	}
}
