// Package transcode splits oversized recordings into transcription-sized
// audio chunks. Files at or under the size threshold pass through untouched.
package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"meetrecap/pkg/executor"

	"github.com/sirupsen/logrus"
)

// SegmentationError reports a failed or empty ffmpeg segmentation run.
type SegmentationError struct {
	Reason string
	Err    error
}

func (e *SegmentationError) Error() string {
	if e.Err != nil {
		return "segmentation failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "segmentation failed: " + e.Reason
}

func (e *SegmentationError) Unwrap() error { return e.Err }

// SegmentResult lists the audio units to transcribe, in playback order.
// Callers must invoke Cleanup on every exit path; for pass-through results
// it is a no-op.
type SegmentResult struct {
	Paths     []string
	Segmented bool
	tempDirs  []string
}

// Cleanup deletes every temp directory the segmentation created.
func (r *SegmentResult) Cleanup() {
	for _, dir := range r.tempDirs {
		_ = os.RemoveAll(dir)
	}
	r.tempDirs = nil
}

type Segmenter struct {
	exec           executor.Executor
	segmentSeconds int
	log            *logrus.Entry
}

func NewSegmenter(exec executor.Executor, segmentSeconds int, log *logrus.Entry) *Segmenter {
	return &Segmenter{exec: exec, segmentSeconds: segmentSeconds, log: log}
}

// Segment returns the input unchanged when its size is at or under
// maxBytes. Larger files are re-encoded to mono 16kHz low-bitrate audio and
// split into fixed-duration chunks named chunk-NNN.mp3.
func (s *Segmenter) Segment(ctx context.Context, localPath string, maxBytes int64) (*SegmentResult, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("stat audio: %w", err)
	}
	if info.Size() <= maxBytes {
		return &SegmentResult{Paths: []string{localPath}}, nil
	}

	s.log.WithFields(logrus.Fields{
		"size_bytes": info.Size(),
		"max_bytes":  maxBytes,
	}).Info("audio exceeds size threshold, splitting into segments")

	dir, err := os.MkdirTemp("", "meeting-segments-")
	if err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}
	res := &SegmentResult{Segmented: true, tempDirs: []string{dir}}

	pattern := filepath.Join(dir, "chunk-%03d.mp3")
	args := []string{
		"-y",
		"-i", localPath,
		"-ac", "1",
		"-ar", "16000",
		"-b:a", "32k",
		"-f", "segment",
		"-segment_time", strconv.Itoa(s.segmentSeconds),
		"-reset_timestamps", "1",
		pattern,
	}
	if _, err := s.exec.Execute(ctx, "ffmpeg", args...); err != nil {
		res.Cleanup()
		return nil, &SegmentationError{Reason: "ffmpeg", Err: err}
	}

	chunks, err := listChunks(dir)
	if err != nil {
		res.Cleanup()
		return nil, &SegmentationError{Reason: "list chunks", Err: err}
	}
	if len(chunks) == 0 {
		res.Cleanup()
		return nil, &SegmentationError{Reason: "no audio segments generated"}
	}

	s.log.WithField("chunks", len(chunks)).Info("segmentation complete")
	res.Paths = chunks
	return res, nil
}

func listChunks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var chunks []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "chunk-") || !strings.HasSuffix(name, ".mp3") {
			continue
		}
		chunks = append(chunks, filepath.Join(dir, name))
	}
	// Zero-padded indexes make lexical order the playback order.
	sort.Strings(chunks)
	return chunks, nil
}
