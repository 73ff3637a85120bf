package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/wire"
	"github.com/zeebo/blake3"
)

// updatedAtMeta is the object metadata key holding the document's
// updated_at, compared on every write.
const updatedAtMeta = "updated-at"

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3API is the subset of *s3.Client used by S3Client.
type S3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// S3Client stores each goal document as goals/<owner-hash>/<id>.json, where
// owner-hash is the hex BLAKE3 digest of the owner id. The bucket
// credentials authorize writes, so the per-owner token is not sent.
//
// Writes are last-writer-wins on updated_at: an object whose stored
// updated_at is not older than the document's is left untouched and the
// document counts as accepted.
type S3Client struct {
	api    S3API
	bucket string
}

func NewS3Client(ctx context.Context, o S3Options) (*S3Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := newS3ClientFromConfig(cfg, func(opts *s3.Options) {
		if o.BaseEndpoint != "" {
			opts.BaseEndpoint = aws.String(o.BaseEndpoint)
			opts.UsePathStyle = true
		}
	})
	return NewS3ClientWithAPI(api, o.Bucket), nil
}

func NewS3ClientWithAPI(api S3API, bucket string) *S3Client {
	return &S3Client{api: api, bucket: bucket}
}

// ObjectKey returns the key a document is stored under.
func ObjectKey(ownerID, id string) string {
	sum := blake3.Sum256([]byte(ownerID))
	return fmt.Sprintf("goals/%s/%s.json", hex.EncodeToString(sum[:]), id)
}

func (c *S3Client) Close() error { return nil }

func (c *S3Client) Ping(ctx context.Context) error {
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return mapS3Error(err)
	}
	return nil
}

func (c *S3Client) PushBatch(ctx context.Context, _ string, docs []wire.Document) (wire.BatchAck, error) {
	ack := wire.BatchAck{Rejected: map[string]string{}}
	for _, d := range docs {
		err := c.put(ctx, d)
		switch {
		case err == nil:
			ack.Accepted = append(ack.Accepted, d.ID)
		case errors.Is(err, common.ErrValidation):
			ack.Rejected[d.ID] = err.Error()
		default:
			return ack, err
		}
	}
	return ack, nil
}

func (c *S3Client) Push(ctx context.Context, _ string, doc wire.Document) error {
	return c.put(ctx, doc)
}

func (c *S3Client) put(ctx context.Context, d wire.Document) error {
	if err := d.Validate(); err != nil {
		return err
	}
	key := ObjectKey(d.OwnerID, d.ID)

	head, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	switch {
	case err == nil:
		if stored, perr := time.Parse(time.RFC3339Nano, head.Metadata[updatedAtMeta]); perr == nil && !stored.Before(d.UpdatedAt) {
			return nil
		}
	case isNotFound(err):
	default:
		return mapS3Error(err)
	}

	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{updatedAtMeta: d.UpdatedAt.UTC().Format(time.RFC3339Nano)},
	})
	if err != nil {
		return mapS3Error(err)
	}
	return nil
}

type httpStatusError interface {
	HTTPStatusCode() int
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var hs httpStatusError
	return errors.As(err, &hs) && hs.HTTPStatusCode() == http.StatusNotFound
}

func mapS3Error(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	var hs httpStatusError
	if !errors.As(err, &hs) {
		// No HTTP response at all: the endpoint was not reachable.
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	switch code := hs.HTTPStatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrRemote, err)
	}
}
