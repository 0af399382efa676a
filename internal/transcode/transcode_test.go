package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"meetrecap/internal/logging"
)

// fakeExecutor records the ffmpeg invocation and writes the chunk files a
// real run would produce.
type fakeExecutor struct {
	chunks []string
	err    error

	name string
	args []string
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	f.name = name
	f.args = args
	if f.err != nil {
		return "", f.err
	}
	dir := filepath.Dir(args[len(args)-1])
	for _, chunk := range f.chunks {
		if err := os.WriteFile(filepath.Join(dir, chunk), []byte("audio"), 0o644); err != nil {
			return "", err
		}
	}
	return "", nil
}

func writeAudio(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.mp3")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestSegmenter(exec *fakeExecutor) *Segmenter {
	return NewSegmenter(exec, 300, logging.Component(logging.New("error"), "transcode"))
}

func TestSegmentPassThroughAtThreshold(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestSegmenter(exec)
	path := writeAudio(t, 1024)

	res, err := s.Segment(context.Background(), path, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer res.Cleanup()

	if res.Segmented {
		t.Fatal("file at the threshold should pass through")
	}
	if len(res.Paths) != 1 || res.Paths[0] != path {
		t.Fatalf("unexpected paths: %v", res.Paths)
	}
	if exec.name != "" {
		t.Fatal("ffmpeg should not run for small files")
	}
}

func TestSegmentOneByteOverThreshold(t *testing.T) {
	exec := &fakeExecutor{chunks: []string{"chunk-000.mp3"}}
	s := newTestSegmenter(exec)
	path := writeAudio(t, 1025)

	res, err := s.Segment(context.Background(), path, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer res.Cleanup()

	if !res.Segmented {
		t.Fatal("one byte over the threshold must segment")
	}
}

func TestSegmentSplitsOversizedFile(t *testing.T) {
	exec := &fakeExecutor{chunks: []string{"chunk-001.mp3", "chunk-000.mp3", "chunk-002.mp3"}}
	s := newTestSegmenter(exec)
	path := writeAudio(t, 2048)

	res, err := s.Segment(context.Background(), path, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer res.Cleanup()

	if !res.Segmented {
		t.Fatal("expected segmentation")
	}
	if exec.name != "ffmpeg" {
		t.Fatalf("expected ffmpeg invocation, got %q", exec.name)
	}
	for _, want := range []string{"-ac", "-ar", "-segment_time", "-reset_timestamps"} {
		found := false
		for _, a := range exec.args {
			if a == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing ffmpeg arg %s in %v", want, exec.args)
		}
	}

	if len(res.Paths) != 3 {
		t.Fatalf("expected 3 chunks, got %v", res.Paths)
	}
	for i, p := range res.Paths {
		if !strings.HasSuffix(p, "chunk-00"+string(rune('0'+i))+".mp3") {
			t.Fatalf("chunks out of order: %v", res.Paths)
		}
	}
}

func TestSegmentZeroChunksIsError(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestSegmenter(exec)
	path := writeAudio(t, 2048)

	_, err := s.Segment(context.Background(), path, 1024)
	var segErr *SegmentationError
	if !errors.As(err, &segErr) {
		t.Fatalf("expected SegmentationError, got %v", err)
	}
}

func TestSegmentCleansUpOnFfmpegError(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("ffmpeg exploded")}
	s := newTestSegmenter(exec)
	path := writeAudio(t, 2048)

	_, err := s.Segment(context.Background(), path, 1024)
	var segErr *SegmentationError
	if !errors.As(err, &segErr) {
		t.Fatalf("expected SegmentationError, got %v", err)
	}

	dir := filepath.Dir(exec.args[len(exec.args)-1])
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		t.Fatalf("temp dir %s was not cleaned up", dir)
	}
}

func TestCleanupRemovesTempDirs(t *testing.T) {
	exec := &fakeExecutor{chunks: []string{"chunk-000.mp3"}}
	s := newTestSegmenter(exec)
	path := writeAudio(t, 2048)

	res, err := s.Segment(context.Background(), path, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dir := filepath.Dir(res.Paths[0])
	res.Cleanup()
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		t.Fatalf("temp dir %s survived cleanup", dir)
	}
}
