package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"wallet_shop/internal/config"
	"wallet_shop/internal/utils"
)

const MaxImageSize = 5 << 20

var (
	ErrImageStorageDisabled = errors.New("stockage d'images non configuré")
	ErrImageTooLarge        = errors.New("image trop volumineuse (5 Mo max)")
	ErrImageType            = errors.New("format d'image non supporté")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ObjectStorage est le sous-ensemble de *minio.Client utilisé ici
type ObjectStorage interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
}

type ImageStore struct {
	client   ObjectStorage
	bucket   string
	endpoint string
	secure   bool
}

// NewImageStore accepte un client nil : l'upload renvoie alors
// ErrImageStorageDisabled.
func NewImageStore(client ObjectStorage, cfg config.Config) *ImageStore {
	return &ImageStore{
		client:   client,
		bucket:   cfg.MinIOBucket,
		endpoint: cfg.MinIOEndpoint,
		secure:   cfg.MinIOUseSSL,
	}
}

func (s *ImageStore) Enabled() bool {
	return s != nil && s.client != nil
}

// UploadProductImage envoie l'image dans products/<id>/ et retourne son URL
func (s *ImageStore) UploadProductImage(ctx context.Context, productID uuid.UUID, file *multipart.FileHeader) (string, error) {
	if !s.Enabled() {
		return "", ErrImageStorageDisabled
	}
	if file.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}
	contentType := file.Header.Get("Content-Type")
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrImageType, contentType)
	}

	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	object := path.Join("products", productID.String(), uuid.NewString()+ext)
	if _, err := s.client.PutObject(ctx, s.bucket, object, f, file.Size,
		minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("upload MinIO: %w", err)
	}

	utils.Log.Infof("🖼️ Image %s envoyée dans %s", object, s.bucket)
	return s.objectURL(object), nil
}

func (s *ImageStore) objectURL(object string) string {
	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, object)
}

// SignedURL retourne une URL temporaire pour une image du bucket
func (s *ImageStore) SignedURL(ctx context.Context, imageURL string, duration time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrImageStorageDisabled
	}
	prefix := s.objectURL("")
	if !strings.HasPrefix(imageURL, prefix) {
		return imageURL, nil
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, strings.TrimPrefix(imageURL, prefix), duration, make(url.Values))
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}
