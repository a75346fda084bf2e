// Package archive stores finalized petition documents in S3-compatible
// object storage for the legal-aid records retention requirement.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Service struct {
	client *minio.Client
	bucket string
}

func New(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Service{client: client, bucket: cfg.Bucket}, nil
}

// Record is the archived form of one completed workflow.
type Record struct {
	WorkflowID  string    `json:"workflow_id"`
	Status      string    `json:"status"`
	Document    string    `json:"document"`
	Iterations  int       `json:"iterations"`
	ArchivedAt  time.Time `json:"archived_at"`
	TraceLength int       `json:"trace_length"`
}

// Store writes the record as JSON under finalized/<workflow id>.json and
// returns the object key.
func (s *Service) Store(ctx context.Context, rec Record) (string, error) {
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}
	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal archive record: %w", err)
	}

	key := fmt.Sprintf("finalized/%s.json", rec.WorkflowID)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("store archive record: %w", err)
	}
	return key, nil
}
