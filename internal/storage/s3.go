package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrInvalidKey     = errors.New("invalid key")
	ErrObjectNotFound = errors.New("object not found")
)

const DefaultPresignTTL = 15 * time.Minute

type S3Storage struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3Storage(cfg config.StorageConfig) (*S3Storage, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &S3Storage{client: cl, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

type ObjectStat struct {
	ETag         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// StatAttachment looks up an attachment reference under the configured prefix.
func (s *S3Storage) StatAttachment(ctx context.Context, ref string) (ObjectStat, error) {
	key, err := SafeObjectKey(s.prefix, ref)
	if err != nil {
		return ObjectStat{}, err
	}
	st, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ObjectStat{}, ErrObjectNotFound
		}
		return ObjectStat{}, err
	}
	return ObjectStat{ETag: st.ETag, Size: st.Size, ContentType: st.ContentType, LastModified: st.LastModified}, nil
}

// AttachmentsExist reports the first reference that is missing from the bucket.
func (s *S3Storage) AttachmentsExist(ctx context.Context, refs []string) (missing string, err error) {
	for _, ref := range refs {
		if _, err := s.StatAttachment(ctx, ref); err != nil {
			if errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrInvalidKey) {
				return ref, nil
			}
			return "", err
		}
	}
	return "", nil
}

// PresignAttachment returns a short-lived GET URL for an attachment.
func (s *S3Storage) PresignAttachment(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	key, err := SafeObjectKey(s.prefix, ref)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *S3Storage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

// SafeObjectKey joins prefix and key, refusing path traversal.
func SafeObjectKey(prefix string, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	if strings.Contains(key, "..") || strings.ContainsAny(key, "\\") {
		return "", ErrInvalidKey
	}
	key = strings.TrimLeft(key, "/")
	if prefix != "" {
		prefix = strings.Trim(prefix, "/")
		key = prefix + "/" + key
	}
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	if _, err := url.Parse("https://example.com/" + key); err != nil {
		return "", ErrInvalidKey
	}
	return key, nil
}
