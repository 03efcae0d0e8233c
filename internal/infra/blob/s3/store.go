// Package s3 stores plan export artifacts in an S3 or MinIO bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mvpplanner/internal/blob/core"
)

const (
	defaultRegion = "us-east-1"
	defaultExpiry = 15 * time.Minute
)

// Config selects the bucket and endpoint. Empty credentials fall back to the
// default AWS chain (env, shared config, instance role).
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	HTTPClient      *http.Client
}

// Store implements core.Store for a single bucket.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New loads AWS configuration and builds the bucket client.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 export bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.HTTPClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(cfg.HTTPClient))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})
	return &Store{client: client, presign: s3.NewPresignClient(client), bucket: cfg.Bucket}, nil
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Driver reports core.DriverS3.
func (s *Store) Driver() core.Driver { return core.DriverS3 }

// Put uploads a new object. S3 has no create-only PUT here, so existence is
// checked with HEAD first.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if strings.TrimSpace(key) == "" {
		return core.Info{}, errors.New("artifact key is empty")
	}
	if _, err := s.Head(ctx, key); err == nil {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.Info{}, err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata:      core.CloneMetadata(opts.Metadata),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return core.Info{}, fmt.Errorf("put %s: %w", key, err)
	}
	return s.Head(ctx, key)
}

// Get streams the object body; the caller closes it.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return core.Info{}, nil, mapErr(key, err)
	}
	return objectInfo(key, out.ContentLength, out.ContentType, out.ETag, out.Metadata, out.LastModified), out.Body, nil
}

// Head fetches object metadata.
func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return core.Info{}, mapErr(key, err)
	}
	return objectInfo(key, out.ContentLength, out.ContentType, out.ETag, out.Metadata, out.LastModified), nil
}

// Delete removes the object, reporting false when it did not exist.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.Head(ctx, key); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return true, nil
}

// List pages through ListObjectsV2 under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	var out []core.Info
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, core.Info{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL signs a GET for opts.Expiry (15 minutes when unset).
func (s *Store) PresignURL(ctx context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, http.MethodGet) {
		return "", core.ErrUnsupported
	}
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	req, err := s.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)},
		s3.WithPresignExpires(expiry),
	)
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func objectInfo(key string, size *int64, contentType, etag *string, md map[string]string, modified *time.Time) core.Info {
	return core.Info{
		Key:          key,
		Size:         aws.ToInt64(size),
		ContentType:  aws.ToString(contentType),
		ETag:         strings.Trim(aws.ToString(etag), `"`),
		Metadata:     core.CloneMetadata(md),
		LastModified: aws.ToTime(modified),
	}
}

// mapErr turns the SDK's missing-object shapes into core.ErrNotFound.
func mapErr(key string, err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	var resp *awshttp.ResponseError
	switch {
	case errors.As(err, &noKey), errors.As(err, &notFound):
		return fmt.Errorf("%w: %s", core.ErrNotFound, key)
	case errors.As(err, &resp) && resp.HTTPStatusCode() == http.StatusNotFound:
		return fmt.Errorf("%w: %s", core.ErrNotFound, key)
	default:
		return fmt.Errorf("s3 %s: %w", key, err)
	}
}
