// Package blob stores recording audio on local disk or S3-compatible
// object storage behind one path scheme. Stored paths are either absolute
// filesystem paths or s3://bucket/key URIs.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	appconfig "meetrecap/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Store saves and retrieves recording blobs.
type Store struct {
	driver    string
	localPath string
	bucket    string
	s3        *s3.Client
}

func New(ctx context.Context, cfg appconfig.StorageConfig) (*Store, error) {
	st := &Store{driver: cfg.Driver, localPath: cfg.LocalPath, bucket: cfg.Bucket}
	switch cfg.Driver {
	case "", "local":
		st.driver = "local"
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 storage")
		}
		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		st.s3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
	return st, nil
}

// SaveBytes persists one recording and returns its stored path. Names are
// unique per call so re-downloads never collide.
func (s *Store) SaveBytes(ctx context.Context, data []byte, extension, contentType string) (string, error) {
	filename := fmt.Sprintf("%d-%s.%s", time.Now().UnixMilli(), uuid.NewString(), extension)
	key := "recordings/" + filename

	if s.driver == "s3" {
		_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return "", fmt.Errorf("put s3 object: %w", err)
		}
		return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
	}

	dir := filepath.Join(s.localPath, "recordings")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write recording: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve recording path: %w", err)
	}
	return abs, nil
}

// Open streams a stored recording.
func (s *Store) Open(ctx context.Context, storedPath string) (io.ReadCloser, error) {
	if strings.HasPrefix(storedPath, "s3://") {
		bucket, key, err := splitS3Path(storedPath)
		if err != nil {
			return nil, err
		}
		out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("get s3 object: %w", err)
		}
		return out.Body, nil
	}
	f, err := os.Open(storedPath)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return f, nil
}

// Localize makes a stored recording available as a file under dir and
// returns its path. Local paths are returned as-is; S3 objects are
// downloaded.
func (s *Store) Localize(ctx context.Context, storedPath, dir string) (string, error) {
	if !strings.HasPrefix(storedPath, "s3://") {
		return storedPath, nil
	}
	rc, err := s.Open(ctx, storedPath)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	local := filepath.Join(dir, filepath.Base(storedPath))
	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("create local copy: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, rc); err != nil {
		return "", fmt.Errorf("download recording: %w", err)
	}
	return local, nil
}

func splitS3Path(storedPath string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(storedPath, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 path: %s", storedPath)
	}
	return parts[0], parts[1], nil
}
