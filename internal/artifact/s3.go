package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// S3Config holds the settings for an S3-compatible artifact backend.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// S3Store stores bundles in an S3-compatible bucket under
// <runID>/<bundle>/ object keys.
type S3Store struct {
	client   *minio.Client
	bucket   string
	initOnce sync.Once
	initErr  error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("s3 access key and secret key are required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init s3 client")
	}
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if !exists {
			s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		}
	})
	return s.initErr
}

func objectKey(runID, bundle, name string) string {
	return path.Join(runID, bundle, name)
}

func (s *S3Store) Put(ctx context.Context, runID, bundle, name, srcPath string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := s.client.FPutObject(ctx, s.bucket, objectKey(runID, bundle, name), srcPath,
		minio.PutObjectOptions{})
	return err
}

func (s *S3Store) PutManifest(ctx context.Context, b Bundle) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectKey(b.RunID, b.Name, manifestFile),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (s *S3Store) List(ctx context.Context, runID string) ([]Bundle, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	var bundles []Bundle
	prefix := runID + "/"
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if path.Base(obj.Key) != manifestFile {
			continue
		}
		r, err := s.client.GetObject(ctx, s.bucket, obj.Key, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		var b Bundle
		err = json.NewDecoder(r).Decode(&b)
		r.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "manifest %s", obj.Key)
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

func (s *S3Store) Open(ctx context.Context, runID, bundle, name string) (io.ReadCloser, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s.client.GetObject(ctx, s.bucket, objectKey(runID, bundle, name), minio.GetObjectOptions{})
}
