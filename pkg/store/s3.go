package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SegmentPublisher pushes archived segments and their attestation manifests
// to object storage.
type SegmentPublisher interface {
	Publish(ctx context.Context, seg Segment) error
}

// S3Publisher publishes segments to an S3 bucket: the segment body under
// <prefix><name>, the attestation manifest under <prefix><name>.attest.json.
type S3Publisher struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config holds the publisher settings. Endpoint supports MinIO and
// LocalStack.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// NewS3Publisher creates an S3-backed publisher using the default AWS
// credential chain.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("store: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Publisher{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Publish uploads the segment body and its attestation manifest.
func (p *S3Publisher) Publish(ctx context.Context, seg Segment) error {
	key := p.prefix + seg.Name
	if _, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(seg.Body),
		ContentType: aws.String("application/x-ndjson"),
	}); err != nil {
		return fmt.Errorf("store: publish segment %s: %w", seg.Name, err)
	}

	att, err := json.Marshal(seg.Attestation)
	if err != nil {
		return fmt.Errorf("store: marshal attestation: %w", err)
	}
	if _, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key + ".attest.json"),
		Body:        bytes.NewReader(att),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("store: publish attestation for %s: %w", seg.Name, err)
	}
	return nil
}
