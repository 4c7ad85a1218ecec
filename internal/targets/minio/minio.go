package minio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jo-hoe/ocrmd/internal/common"
	appcfg "github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/targets"
)

// Target uploads Markdown objects to an S3 compatible bucket.
type Target struct {
	name   string
	cfg    appcfg.MinioTargetConfig
	client *minio.Client

	mu          sync.Mutex
	bucketReady bool
}

// New creates a MinIO Target. No network call is made until the first Post.
func New(name string, cfg appcfg.MinioTargetConfig) (*Target, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Target{name: name, cfg: cfg, client: client}, nil
}

func (t *Target) Name() string { return t.name }

func (t *Target) Post(ctx context.Context, req targets.TargetRequest) (targets.TargetResult, error) {
	if err := t.ensureBucket(ctx); err != nil {
		return targets.TargetResult{}, err
	}
	key := t.cfg.Prefix + req.MarkdownName()
	info, err := t.client.PutObject(ctx, t.cfg.Bucket, key, strings.NewReader(req.Markdown), int64(len(req.Markdown)), minio.PutObjectOptions{
		ContentType: common.ContentTypeMarkdown,
		UserMetadata: map[string]string{
			"job-id": req.JobID,
		},
	})
	if err != nil {
		return targets.TargetResult{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return targets.TargetResult{
		TargetName: t.name,
		Location:   fmt.Sprintf("s3://%s/%s", info.Bucket, info.Key),
	}, nil
}

// ensureBucket creates the bucket on first use. Failures are retried on the next Post.
func (t *Target) ensureBucket(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bucketReady {
		return nil
	}
	exists, err := t.client.BucketExists(ctx, t.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := t.client.MakeBucket(ctx, t.cfg.Bucket, minio.MakeBucketOptions{Region: t.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	t.bucketReady = true
	return nil
}
