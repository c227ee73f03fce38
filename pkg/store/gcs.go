//go:build gcp

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSPublisher publishes segments to a Google Cloud Storage bucket using the
// same key layout as the S3 publisher.
type GCSPublisher struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSPublisher creates a GCS-backed publisher (ADC credentials).
func NewGCSPublisher(ctx context.Context, bucket, prefix string) (*GCSPublisher, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: create gcs client: %w", err)
	}
	return &GCSPublisher{client: client, bucket: bucket, prefix: prefix}, nil
}

// Publish uploads the segment body and its attestation manifest.
func (p *GCSPublisher) Publish(ctx context.Context, seg Segment) error {
	key := p.prefix + seg.Name

	w := p.client.Bucket(p.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	if _, err := w.Write(seg.Body); err != nil {
		_ = w.Close()
		return fmt.Errorf("store: publish segment %s: %w", seg.Name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("store: finalize segment %s: %w", seg.Name, err)
	}

	att, err := json.Marshal(seg.Attestation)
	if err != nil {
		return fmt.Errorf("store: marshal attestation: %w", err)
	}
	aw := p.client.Bucket(p.bucket).Object(key + ".attest.json").NewWriter(ctx)
	aw.ContentType = "application/json"
	if _, err := aw.Write(att); err != nil {
		_ = aw.Close()
		return fmt.Errorf("store: publish attestation for %s: %w", seg.Name, err)
	}
	return aw.Close()
}
