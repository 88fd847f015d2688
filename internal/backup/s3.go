package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rs/zerolog/log"

	"stash-bot/pkg/retrylimit"
)

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies committed snapshots to an S3-compatible bucket.
type S3Uploader struct {
	client  putObjectAPI
	bucket  string
	prefix  string
	limiter *retrylimit.AdaptiveLimiter
}

func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Uploader(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Uploader(client putObjectAPI, bucket, prefix string) *S3Uploader {
	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		limiter: retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
	}
}

// Upload puts the file under prefix/<file name>, retrying throttled and 5xx responses.
func (u *S3Uploader) Upload(ctx context.Context, filePath string) error {
	key := path.Join(u.prefix, filepath.Base(filePath))

	err := retrylimit.WithRetryMax(ctx, func() error {
		f, err := os.Open(filePath)
		if err != nil {
			return &retrylimit.FatalError{Err: err}
		}
		defer f.Close()

		_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(u.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		if err != nil {
			return classifyS3Error(err)
		}
		return nil
	}, u.limiter, 3)
	if err != nil {
		return fmt.Errorf("s3: upload %s: %w", key, err)
	}

	log.Info().Str("bucket", u.bucket).Str("key", key).Msg("Backup mirrored")
	return nil
}

type s3StatusError struct {
	err  error
	code int
}

func (e *s3StatusError) Error() string   { return e.err.Error() }
func (e *s3StatusError) Unwrap() error   { return e.err }
func (e *s3StatusError) StatusCode() int { return e.code }

func classifyS3Error(err error) error {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		if code >= 400 && code < 500 && code != 429 {
			return &retrylimit.FatalError{Err: err}
		}
		return &s3StatusError{err: err, code: code}
	}
	return err
}
