package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/models"
)

// S3API is the subset of the S3 client the provider uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds connection parameters for an S3-compatible archive.
type S3Config struct {
	Bucket          string `yaml:"bucket" toml:"bucket"`
	Region          string `yaml:"region" toml:"region"`
	Endpoint        string `yaml:"endpoint" toml:"endpoint"` // optional, e.g. MinIO
	PathStyle       bool   `yaml:"path_style" toml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id" toml:"access_key_id"` // optional, default chain otherwise
	SecretAccessKey string `yaml:"secret_access_key" toml:"secret_access_key"`
}

// S3 implements Provider over a single bucket. Object keys are archive
// paths without the leading slash; catalog metadata lives in a sidecar
// object next to each data object.
type S3 struct {
	client S3API
	bucket string
}

// NewS3 connects to the bucket described by cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3WithClient(client, cfg.Bucket), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client S3API, bucket string) *S3 {
	return &S3{client: client, bucket: bucket}
}

func objectKey(p string) string {
	return strings.TrimPrefix(p, "/")
}

func (s *S3) keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, aws.ToString(obj.Key))
		}
		if aws.ToBool(page.IsTruncated) && page.NextContinuationToken != nil {
			token = page.NextContinuationToken
			continue
		}
		return out, nil
	}
}

// List returns the data objects whose keys start with the collection.
func (s *S3) List(ctx context.Context, collection string) ([]string, error) {
	prefix := objectKey(strings.TrimRight(collection, "/"))
	if prefix != "" {
		prefix += "/"
	}
	keys, err := s.keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range keys {
		if IsSidecar(k) || strings.HasSuffix(k, "/") {
			continue
		}
		out = append(out, "/"+k)
	}
	slices.Sort(out)
	return out, nil
}

// Find lists the collection and keeps the objects whose sidecar matches q.
func (s *S3) Find(ctx context.Context, q Query) ([]string, error) {
	paths, err := s.List(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paths {
		sc, err := s.sidecar(ctx, p)
		if err != nil {
			return nil, err
		}
		if sc.Matches(q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (s *S3) sidecar(ctx context.Context, p string) (*Sidecar, error) {
	key := objectKey(p)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: aws.String(key)}); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("storage: %s: %w", p, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: head %s: %w", p, err)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: aws.String(key + SidecarSuffix)})
	if err != nil {
		if isNotFound(err) {
			return &Sidecar{}, nil
		}
		return nil, fmt.Errorf("storage: get sidecar %s: %w", p, err)
	}
	defer out.Body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("storage: read sidecar %s: %w", p, err)
	}
	return ParseSidecar(buf.Bytes())
}

// Annotations returns the annotations recorded in the sidecar of path.
func (s *S3) Annotations(ctx context.Context, path string) ([]models.RawAnnotation, error) {
	sc, err := s.sidecar(ctx, path)
	if err != nil {
		return nil, err
	}
	return sc.Annotations, nil
}

// Checksum returns the object's ETag when it is a plain MD5. Multipart
// uploads carry a composite ETag, reported as "".
func (s *S3) Checksum(ctx context.Context, path string) (string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: aws.String(objectKey(path))})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("storage: %s: %w", path, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("storage: head %s: %w", path, err)
	}
	etag := strings.Trim(aws.ToString(out.ETag), `"`)
	if len(etag) != 32 || strings.Contains(etag, "-") {
		return "", nil
	}
	return strings.ToLower(etag), nil
}

// Replicas returns the replicas recorded in the sidecar of path.
func (s *S3) Replicas(ctx context.Context, path string) ([]models.Replica, error) {
	sc, err := s.sidecar(ctx, path)
	if err != nil {
		return nil, err
	}
	return sc.Replicas, nil
}

// ACL returns the access control list recorded in the sidecar of path.
func (s *S3) ACL(ctx context.Context, path string) ([]models.AccessControl, error) {
	sc, err := s.sidecar(ctx, path)
	if err != nil {
		return nil, err
	}
	return sc.ACL, nil
}

// Open streams the object content.
func (s *S3) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: aws.String(objectKey(path))})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("storage: open %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return out.Body, nil
}
