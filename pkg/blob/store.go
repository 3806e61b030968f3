package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/referral-intake/platform/pkg/common/config"
	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/common/models"
)

var (
	ErrNotFound         = errors.New("blob not found")
	ErrUnknownContainer = errors.New("unknown container")
)

const defaultCopyWait = 2 * time.Minute

// API is the subset of the S3 client the store relies on.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps each container in its own bucket.
type S3Store struct {
	api      API
	buckets  map[models.Container]string
	copyWait time.Duration
}

func NewS3Store(api API, buckets map[models.Container]string) *S3Store {
	copied := make(map[models.Container]string, len(buckets))
	for c, b := range buckets {
		copied[c] = b
	}
	return &S3Store{api: api, buckets: copied, copyWait: defaultCopyWait}
}

func BucketsFromConfig(cfg *config.Config) map[models.Container]string {
	return map[models.Container]string{
		models.ContainerIncoming: cfg.IncomingContainer,
		models.ContainerReview:   cfg.ReviewContainer,
		models.ContainerPassed:   cfg.PassedContainer,
		models.ContainerFailed:   cfg.FailedContainer,
	}
}

// NewClient builds an S3 client; a non-empty endpoint switches to path-style
// addressing for S3-compatible stores.
func NewClient(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (s *S3Store) bucket(c models.Container) (string, error) {
	b, ok := s.buckets[c]
	if !ok || b == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownContainer, c)
	}
	return b, nil
}

// Read returns the blob bytes and its content type.
func (s *S3Store) Read(ctx context.Context, c models.Container, name string) ([]byte, string, error) {
	bucket, err := s.bucket(c)
	if err != nil {
		return nil, "", err
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(name)})
	if err != nil {
		if isNotFound(err) {
			return nil, "", fmt.Errorf("%w: %s/%s", ErrNotFound, c, name)
		}
		return nil, "", fmt.Errorf("reading %s/%s: %w", c, name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s/%s: %w", c, name, err)
	}
	return data, aws.ToString(out.ContentType), nil
}

func (s *S3Store) Exists(ctx context.Context, c models.Container, name string) (bool, error) {
	bucket, err := s.bucket(c)
	if err != nil {
		return false, err
	}
	_, err = s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(name)})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Move copies name from one container to another, replacing its metadata,
// waits for the copy to land and deletes the source. A blob already in the
// target and gone from the source counts as moved.
func (s *S3Store) Move(ctx context.Context, name string, from, to models.Container, metadata map[string]string) error {
	src, err := s.bucket(from)
	if err != nil {
		return err
	}
	dst, err := s.bucket(to)
	if err != nil {
		return err
	}
	log := logger.WithDocument(name).WithField("from", from).WithField("to", to)

	present, err := s.Exists(ctx, from, name)
	if err != nil {
		return fmt.Errorf("checking source: %w", err)
	}
	if !present {
		landed, err := s.Exists(ctx, to, name)
		if err != nil {
			return fmt.Errorf("checking target: %w", err)
		}
		if landed {
			log.Info("blob already moved")
			return nil
		}
		return fmt.Errorf("%w: %s/%s", ErrNotFound, from, name)
	}

	_, err = s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(dst),
		Key:               aws.String(name),
		CopySource:        aws.String(src + "/" + url.PathEscape(name)),
		Metadata:          metadata,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		return fmt.Errorf("copying to %s: %w", to, err)
	}

	waiter := s3.NewObjectExistsWaiter(s.api, func(o *s3.ObjectExistsWaiterOptions) {
		o.MinDelay = 500 * time.Millisecond
		o.MaxDelay = 5 * time.Second
	})
	if err := waiter.Wait(ctx, &s3.HeadObjectInput{Bucket: aws.String(dst), Key: aws.String(name)}, s.copyWait); err != nil {
		return fmt.Errorf("waiting for copy to %s: %w", to, err)
	}

	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(src), Key: aws.String(name)}); err != nil {
		return fmt.Errorf("deleting source in %s: %w", from, err)
	}
	log.Info("blob moved")
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
