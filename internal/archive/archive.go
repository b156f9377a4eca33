// Package archive is the optional persistence hook a caller wires around a
// completed run, portfolio, or batch result: the core packages themselves
// stay persistence-free (§9), so nothing under internal/engine, internal/
// portfolio, or internal/batch imports this package. It follows the same
// upload/list/rotate shape as the teacher's Cloudflare R2 backup service,
// against the AWS SDK's S3 client instead of a bespoke R2 wrapper.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Archiver uploads and lists run results in an S3-compatible bucket.
type Archiver struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	log      zerolog.Logger
}

// New builds an Archiver for bucket in region, using the default AWS
// credential chain (environment, shared config, or container role).
func New(ctx context.Context, region, bucket string, log zerolog.Logger) (*Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive: bucket must not be empty")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &Archiver{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		log:      log.With().Str("component", "archive").Str("bucket", bucket).Logger(),
	}, nil
}

// PutResult msgpack-encodes payload and uploads it to key. Callers pass a
// batch.Result, portfolio.Result, or engine.SingleRunResult; the payload
// type is opaque here to avoid an import cycle with those packages.
func (a *Archiver) PutResult(ctx context.Context, key string, payload any) error {
	encoded, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("archive: encode %s: %w", key, err)
	}

	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
		Body:   bytes.NewReader(encoded),
	})
	if err != nil {
		return fmt.Errorf("archive: upload %s: %w", key, err)
	}

	a.log.Info().Str("key", key).Int("bytes", len(encoded)).Msg("uploaded archive object")
	return nil
}

// GetResult downloads key and msgpack-decodes it into out.
func (a *Archiver) GetResult(ctx context.Context, key string, out any) error {
	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("archive: get %s: %w", key, err)
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("archive: read %s: %w", key, err)
	}
	if err := msgpack.Unmarshal(buf.Bytes(), out); err != nil {
		return fmt.Errorf("archive: decode %s: %w", key, err)
	}
	return nil
}

// Object describes one archived result.
type Object struct {
	Key          string
	SizeBytes    int64
	LastModified time.Time
}

// List returns archived objects under prefix, newest first.
func (a *Archiver) List(ctx context.Context, prefix string) ([]Object, error) {
	out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: &a.bucket,
		Prefix: &prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: list prefix %s: %w", prefix, err)
	}

	objects := make([]Object, 0, len(out.Contents))
	for _, item := range out.Contents {
		if item.Key == nil {
			continue
		}
		obj := Object{Key: *item.Key}
		if item.Size != nil {
			obj.SizeBytes = *item.Size
		}
		if item.LastModified != nil {
			obj.LastModified = *item.LastModified
		}
		objects = append(objects, obj)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].LastModified.After(objects[j].LastModified) })
	return objects, nil
}

// RotateOlderThan deletes archived objects under prefix older than cutoff,
// always keeping the newest keep objects regardless of age.
func (a *Archiver) RotateOlderThan(ctx context.Context, prefix string, cutoff time.Time, keep int) (int, error) {
	objects, err := a.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i, obj := range objects {
		if i < keep || !obj.LastModified.Before(cutoff) {
			continue
		}
		if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &a.bucket, Key: &obj.Key}); err != nil {
			a.log.Error().Err(err).Str("key", obj.Key).Msg("failed to delete archived object")
			continue
		}
		deleted++
	}

	a.log.Info().Int("deleted", deleted).Int("remaining", len(objects)-deleted).Msg("archive rotation complete")
	return deleted, nil
}

// ResultKey builds a deterministic, sortable-by-prefix object key for a
// batch or portfolio run, grouping by day so List naturally paginates by
// date without a secondary index.
func ResultKey(kind, runID string, at time.Time) string {
	return strings.Join([]string{kind, at.UTC().Format("2006-01-02"), runID + ".msgpack"}, "/")
}
