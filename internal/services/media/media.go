package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bookwormhq/bookworm-service/internal/config"
)

// Service stores book cover images in a MinIO bucket and hands back durable
// URLs. Object keys are flat UUIDs without an extension so that the key can
// be re-derived from a stored URL (last path segment, extension stripped).
type Service struct {
	client   *minio.Client
	bucket   string
	useSSL   bool
	maxBytes int64
	allowed  []string
}

// NewService creates a new media service instance
func NewService(cfg *config.Config) (*Service, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKeyID, cfg.MinIO.SecretAccessKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	service := &Service{
		client:   client,
		bucket:   cfg.MinIO.BucketName,
		useSSL:   cfg.MinIO.UseSSL,
		maxBytes: cfg.Media.MaxImageBytes,
		allowed:  cfg.Media.AllowedMimeTypes,
	}

	if err := service.ensureBucket(); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return service, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (s *Service) ensureBucket() error {
	ctx := context.Background()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ValidateContentType checks if the content type is allowed
func (s *Service) ValidateContentType(contentType string) bool {
	for _, allowed := range s.allowed {
		if contentType == allowed {
			return true
		}
	}
	return false
}

// ParseDataURI splits an RFC 2397 data URI into its content type and decoded
// payload.
func ParseDataURI(uri string) (string, []byte, error) {
	const prefix = "data:"
	if !strings.HasPrefix(uri, prefix) {
		return "", nil, errors.New("image must be a data URI")
	}

	meta, payload, ok := strings.Cut(uri[len(prefix):], ",")
	if !ok {
		return "", nil, errors.New("malformed data URI")
	}

	contentType := meta
	base64Encoded := false
	if strings.HasSuffix(meta, ";base64") {
		base64Encoded = true
		contentType = strings.TrimSuffix(meta, ";base64")
	}
	if contentType == "" {
		contentType = "text/plain"
	}

	if base64Encoded {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return contentType, data, nil
	}

	unescaped, err := url.QueryUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid data URI payload: %w", err)
	}
	return contentType, []byte(unescaped), nil
}

// KeyFromURL derives the object key from a stored image URL: the last path
// segment with any extension stripped.
func KeyFromURL(imageURL string) string {
	base := path.Base(imageURL)
	return strings.TrimSuffix(base, path.Ext(base))
}

// UploadDataURI decodes an embedded image payload, stores it, and returns the
// durable URL to persist alongside the book.
func (s *Service) UploadDataURI(ctx context.Context, dataURI string) (string, error) {
	contentType, data, err := ParseDataURI(dataURI)
	if err != nil {
		return "", err
	}

	if !s.ValidateContentType(contentType) {
		return "", fmt.Errorf("content type %s is not allowed", contentType)
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("image exceeds the maximum size of %d bytes", s.maxBytes)
	}

	objectKey := uuid.New().String()

	_, err = s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return s.URLFor(objectKey), nil
}

// URLFor returns the public URL for accessing an object in the bucket.
func (s *Service) URLFor(objectKey string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}

	endpoint := strings.TrimPrefix(s.client.EndpointURL().String(), scheme+"://")
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, s.bucket, objectKey)
}

// Holds reports whether the image URL points into this service's bucket.
func (s *Service) Holds(imageURL string) bool {
	return strings.HasPrefix(imageURL, s.URLFor(""))
}

// RemoveByURL deletes the object a stored image URL refers to.
func (s *Service) RemoveByURL(ctx context.Context, imageURL string) error {
	return s.RemoveKey(ctx, KeyFromURL(imageURL))
}

// RemoveKey deletes an object by key.
func (s *Service) RemoveKey(ctx context.Context, objectKey string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
}

// ListObjects returns every object in the bucket. Used by the cleanup worker.
func (s *Service) ListObjects(ctx context.Context) ([]minio.ObjectInfo, error) {
	var objects []minio.ObjectInfo
	objectsCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true})

	for object := range objectsCh {
		if object.Err != nil {
			return nil, object.Err
		}
		objects = append(objects, object)
	}

	return objects, nil
}
