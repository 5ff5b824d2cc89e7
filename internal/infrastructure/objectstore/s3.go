// Package objectstore stores backup artifacts in an S3-compatible bucket.
// Keys are namespaced per database (backups/{databaseID}/...), so concurrent
// actors never contend on the same key.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tablohq/backupd/internal/core/domain"
)

// Metadata keys attached to every artifact object.
const (
	metaDatabaseID   = "database-id"
	metaDatabaseName = "database-name"
	metaSource       = "source"
	metaTimestamp    = "timestamp"
	metaBookmark     = "bookmark"
	metaUserEmail    = "user-email"
)

type S3Store struct {
	client *s3.Client
	bucket string
}

type Options struct {
	Endpoint  string // empty means the default AWS endpoint
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

func New(opts Options) *S3Store {
	s3opts := s3.Options{
		Region:       opts.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		UsePathStyle: true,
	}
	if opts.Endpoint != "" {
		s3opts.BaseEndpoint = aws.String(opts.Endpoint)
	}

	return &S3Store{
		client: s3.New(s3opts),
		bucket: opts.Bucket,
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "status code: 404")
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, meta domain.ArtifactMetadata) error {
	metadata := map[string]string{
		metaDatabaseID:   meta.DatabaseID,
		metaDatabaseName: meta.DatabaseName,
		metaSource:       meta.Source,
		metaTimestamp:    meta.Timestamp.UTC().Format(time.RFC3339),
	}
	if meta.Bookmark != nil {
		metadata[metaBookmark] = *meta.Bookmark
	}
	if meta.UserEmail != nil {
		metadata[metaUserEmail] = *meta.UserEmail
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      metadata,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, *domain.ArtifactMetadata, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read object %s: %w", key, err)
	}

	meta := artifactFromObject(key, out.Metadata, aws.ToInt64(out.ContentLength), out.LastModified)
	return data, meta, nil
}

func (s *S3Store) Head(ctx context.Context, key string) (*domain.ArtifactMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("head object %s: %w", key, err)
	}

	return artifactFromObject(key, out.Metadata, aws.ToInt64(out.ContentLength), out.LastModified), nil
}

// List returns artifact metadata for every object under prefix. Object
// metadata requires a HeadObject per key; listings are per-database and
// small, so the extra round trips are acceptable.
func (s *S3Store) List(ctx context.Context, prefix string) ([]domain.ArtifactMetadata, error) {
	var artifacts []domain.ArtifactMetadata
	var token *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("list objects %s: %w", prefix, err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			meta, err := s.Head(ctx, key)
			if err != nil {
				return nil, err
			}
			if meta == nil {
				// Deleted between list and head; skip.
				continue
			}
			artifacts = append(artifacts, *meta)
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	return artifacts, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Ping verifies the bucket is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func artifactFromObject(key string, metadata map[string]string, size int64, lastModified *time.Time) *domain.ArtifactMetadata {
	meta := &domain.ArtifactMetadata{
		Key:          key,
		DatabaseID:   metadata[metaDatabaseID],
		DatabaseName: metadata[metaDatabaseName],
		Source:       metadata[metaSource],
		Size:         size,
	}

	if meta.DatabaseID == "" {
		// Object written before metadata was attached; fall back to the key.
		if id, ok := domain.DatabaseIDFromKey(key); ok {
			meta.DatabaseID = id
		}
	}

	if ts, err := time.Parse(time.RFC3339, metadata[metaTimestamp]); err == nil {
		meta.Timestamp = ts
	} else if lastModified != nil {
		meta.Timestamp = *lastModified
	}

	if bookmark, ok := metadata[metaBookmark]; ok && bookmark != "" {
		meta.Bookmark = &bookmark
	}
	if email, ok := metadata[metaUserEmail]; ok && email != "" {
		meta.UserEmail = &email
	}

	return meta
}
