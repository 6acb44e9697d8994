package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/tencentyun/cos-go-sdk-v5"

	apperrors "github.com/geocatalog/pkg/errors"
)

// COSConfig holds COS-specific configuration.
type COSConfig struct {
	Bucket    string
	Region    string
	SecretID  string
	SecretKey string
	Domain    string // default "myqcloud.com"
	Scheme    string // default "https"
	Prefix    string // key prefix, lets several catalogs share a bucket
}

// COSStorage keeps catalog resources in a Tencent Cloud COS bucket shared by
// several catalog nodes.
type COSStorage struct {
	client *cos.Client
	prefix string
}

// NewCOSStorage creates a new COSStorage instance.
func NewCOSStorage(cfg *COSConfig) (*COSStorage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("bucket and region are required for COS storage")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("credentials are required for COS storage")
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "myqcloud.com"
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	bucketURL, err := url.Parse(fmt.Sprintf("%s://%s.cos.%s.%s", scheme, cfg.Bucket, cfg.Region, domain))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}
	return newCOSStorage(bucketURL, cfg), nil
}

func newCOSStorage(bucketURL *url.URL, cfg *COSConfig) *COSStorage {
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})
	return &COSStorage{client: client, prefix: strings.Trim(cfg.Prefix, "/")}
}

func (s *COSStorage) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Upload stores the content of reader under key.
func (s *COSStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType(key)},
	}
	if _, err := s.client.Object.Put(ctx, s.objectKey(key), reader, opt); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to upload "+key+" to COS", err)
	}
	return nil
}

// Download opens the object stored under key.
func (s *COSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.Object.Get(ctx, s.objectKey(key), nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "resource not found: %s", key)
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to download "+key+" from COS", err)
	}
	return resp.Body, nil
}

// Exists reports whether an object is stored under key.
func (s *COSStorage) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.Object.IsExist(ctx, s.objectKey(key))
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeStorageError, "failed to check "+key+" in COS", err)
	}
	return ok, nil
}

// contentType returns the media type catalog clients expect for a resource.
func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".sld":
		return "application/vnd.ogc.sld+xml"
	case ".xml":
		return "application/xml"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".png":
		return "image/png"
	case ".svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}
