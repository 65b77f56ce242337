package objectclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	cfg "github.com/markdave123-py/libassist/internal/config"
	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/logger"
)

// MaxObjectSize bounds how much of a stored source file GetFile reads back.
const MaxObjectSize = 64 << 20

var _ core.ObjectClient = (*S3Client)(nil)

// S3Client keeps uploaded source documents until an ingestion worker reads them.
type S3Client struct {
	api      *s3.Client
	uploader *manager.Uploader
	region   string
	log      logger.Logger
}

func NewS3Client(ctx context.Context, c *cfg.Config, log logger.Logger) (*S3Client, error) {
	var errs []error
	if c.AwsAccessKey == "" || c.AwsSecretKey == "" {
		errs = append(errs, errors.New("AWS credentials not set"))
	}
	if c.AwsRegion == "" {
		errs = append(errs, errors.New("AWS_REGION not set"))
	}
	if c.BucketName == "" {
		errs = append(errs, errors.New("S3 bucket name not set"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.AwsRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AwsAccessKey, c.AwsSecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg)
	return &S3Client{
		api:      api,
		uploader: manager.NewUploader(api),
		region:   c.AwsRegion,
		log:      log.With("component", "s3", "bucket", c.BucketName),
	}, nil
}

// UploadFile streams data to the bucket in parts and returns the object URL.
func (c *S3Client) UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	out, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	c.log.Debug("object stored", "key", key, "location", out.Location)
	return objectURL(bucket, c.region, key), nil
}

func (c *S3Client) DeleteFile(ctx context.Context, bucket, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// GetFile reads an object fully. A missing key wraps core.ErrNotFound and
// objects above MaxObjectSize are rejected.
func (c *S3Client) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	resp, err := c.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("object %s: %w", key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer resp.Body.Close()

	return readLimited(resp.Body, MaxObjectSize)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("object exceeds %d bytes", limit)
	}
	return body, nil
}

// objectURL is the virtual-hosted style URL with each key segment escaped.
func objectURL(bucket, region, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, strings.Join(parts, "/"))
}
