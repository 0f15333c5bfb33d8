package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	appconfig "comandapos/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ReportStore keeps rendered closing reports. Save returns a reference that
// Load accepts later, possibly from another worker.
type ReportStore interface {
	Save(ctx context.Context, name string, pdf []byte) (string, error)
	Load(ctx context.Context, ref string) ([]byte, error)
}

// NewReportStore picks S3 when a bucket is configured, else the local disk.
func NewReportStore(cfg *appconfig.Config) (ReportStore, error) {
	if cfg.ReportS3Bucket == "" {
		return NewLocalReportStore(cfg.ReportStoragePath), nil
	}
	return NewS3ReportStore(cfg)
}

// LocalReportStore writes reports under dir. References are file paths.
type LocalReportStore struct{ dir string }

func NewLocalReportStore(dir string) *LocalReportStore { return &LocalReportStore{dir: dir} }

func (s *LocalReportStore) Save(_ context.Context, name string, pdf []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("report storage: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}

func (s *LocalReportStore) Load(_ context.Context, ref string) ([]byte, error) {
	return os.ReadFile(ref)
}

// S3ReportStore keeps reports in an S3-compatible bucket (AWS, MinIO).
// References are "s3://bucket/key".
type S3ReportStore struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3ReportStore(cfg *appconfig.Config) (*S3ReportStore, error) {
	if cfg.ReportS3Bucket == "" {
		return nil, errors.New("report bucket is required")
	}
	region := cfg.ReportS3Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.ReportS3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.ReportS3AccessKey, cfg.ReportS3SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ReportS3PathStyle
		if cfg.ReportS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.ReportS3Endpoint)
		}
	})
	return &S3ReportStore{client: client, bucket: cfg.ReportS3Bucket, prefix: "reports/"}, nil
}

func (s *S3ReportStore) Save(ctx context.Context, name string, pdf []byte) (string, error) {
	key := s.prefix + name
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(pdf),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("upload report %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func (s *S3ReportStore) Load(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, ok := parseS3Ref(ref)
	if !ok {
		return nil, fmt.Errorf("not an s3 reference: %q", ref)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download report %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func parseS3Ref(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, ok = strings.Cut(rest, "/")
	return bucket, key, ok && bucket != "" && key != ""
}
