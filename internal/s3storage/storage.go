package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"

	"github.com/dharsanguruparan/IngestDrop/internal/config"
	"github.com/dharsanguruparan/IngestDrop/internal/storage"
)

// Storage wraps MinIO/S3 interactions for raw uploads.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

var _ storage.Objects = (*Storage)(nil)

// New creates a MinIO client from the S3 settings.
func New(cfg config.S3Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "s3storage: init minio")
	}
	return &Storage{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket makes sure the upload bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return eris.Wrapf(err, "s3storage: check bucket %s", s.bucket)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return eris.Wrapf(err, "s3storage: make bucket %s", s.bucket)
		}
	}
	return nil
}

// Put uploads the raw file bytes.
func (s *Storage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return eris.Wrapf(err, "s3storage: put %s", key)
	}
	return nil
}

// Get fetches the raw file bytes.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "s3storage: get %s", key)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, eris.Wrapf(storage.ErrObjectNotFound, "s3storage: object %s", key)
		}
		return nil, eris.Wrapf(err, "s3storage: read %s", key)
	}
	return buf, nil
}

// Delete removes the object.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return eris.Wrapf(err, "s3storage: remove %s", key)
	}
	return nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds uploads/{user}/{timestamp}-{uuid}-{name}. The uuid keeps
// two uploads of the same name in the same second apart.
func ObjectKey(userID, filename string, now time.Time) string {
	name := unsafeKeyChars.ReplaceAllString(path.Base(strings.ReplaceAll(filename, `\`, "/")), "_")
	name = strings.Trim(name, "_")
	if name == "" || name == "." {
		name = "upload.csv"
	}
	user := unsafeKeyChars.ReplaceAllString(userID, "_")
	return fmt.Sprintf("uploads/%s/%s-%s-%s", user, now.UTC().Format("20060102150405"), uuid.NewString(), name)
}
