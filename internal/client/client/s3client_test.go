package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedObject struct {
	body []byte
	meta map[string]string
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]storedObject
	puts    int
	putErr  error
	headErr error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string]storedObject{}} }

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return nil, f.headErr
	}
	o, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: o.meta}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts++
	f.objects[*in.Key] = storedObject{body: body, meta: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

type statusErr int

func (e statusErr) Error() string       { return http.StatusText(int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestObjectKey(t *testing.T) {
	k := ObjectKey("alice", "g-1")
	assert.True(t, strings.HasPrefix(k, "goals/"))
	assert.True(t, strings.HasSuffix(k, "/g-1.json"))
	assert.NotContains(t, k, "alice")
	assert.Equal(t, k, ObjectKey("alice", "g-1"))
	assert.NotEqual(t, k, ObjectKey("bob", "g-1"))
}

func TestS3Client_PushStoresJSON(t *testing.T) {
	api := newFakeS3()
	c := NewS3ClientWithAPI(api, "goals")
	d := doc("a")

	require.NoError(t, c.Push(context.Background(), "", d))

	o, ok := api.objects[ObjectKey("alice", "a")]
	require.True(t, ok)
	var got wire.Document
	require.NoError(t, json.Unmarshal(o.body, &got))
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.Steps, got.Steps)
	assert.Equal(t, d.UpdatedAt.Format(time.RFC3339Nano), o.meta[updatedAtMeta])
}

func TestS3Client_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	c := NewS3ClientWithAPI(api, "goals")

	newer := doc("a")
	newer.UpdatedAt = newer.UpdatedAt.Add(time.Minute)
	newer.Steps = 9000
	require.NoError(t, c.Push(ctx, "", newer))

	older := doc("a")
	require.NoError(t, c.Push(ctx, "", older), "stale writes are accepted without overwriting")
	assert.Equal(t, 1, api.puts)

	newest := doc("a")
	newest.UpdatedAt = newest.UpdatedAt.Add(time.Hour)
	require.NoError(t, c.Push(ctx, "", newest))
	assert.Equal(t, 2, api.puts)
}

func TestS3Client_PushBatchRejectsInvalid(t *testing.T) {
	c := NewS3ClientWithAPI(newFakeS3(), "goals")

	bad := doc("bad")
	bad.Steps = 0
	ack, err := c.PushBatch(context.Background(), "", []wire.Document{doc("a"), bad, doc("c")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ack.Accepted)
	assert.Contains(t, ack.Rejected, "bad")
}

func TestS3Client_PushBatchStopsOnTransportError(t *testing.T) {
	api := newFakeS3()
	c := NewS3ClientWithAPI(api, "goals")

	ack, err := c.PushBatch(context.Background(), "", []wire.Document{doc("a")})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ack.Accepted)

	api.putErr = statusErr(http.StatusServiceUnavailable)
	ack, err = c.PushBatch(context.Background(), "", []wire.Document{doc("b"), doc("c")})
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.Empty(t, ack.Accepted)
}

func TestMapS3Error(t *testing.T) {
	assert.ErrorIs(t, mapS3Error(statusErr(http.StatusForbidden)), common.ErrUnauthorized)
	assert.ErrorIs(t, mapS3Error(statusErr(http.StatusInternalServerError)), common.ErrUnavailable)
	assert.ErrorIs(t, mapS3Error(statusErr(http.StatusTooManyRequests)), common.ErrUnavailable)
	assert.ErrorIs(t, mapS3Error(statusErr(http.StatusBadRequest)), common.ErrRemote)
	assert.ErrorIs(t, mapS3Error(errors.New("dial tcp: connection refused")), common.ErrUnavailable)
	assert.ErrorIs(t, mapS3Error(context.Canceled), context.Canceled)
}

func TestS3Client_Ping(t *testing.T) {
	api := newFakeS3()
	c := NewS3ClientWithAPI(api, "goals")
	assert.NoError(t, c.Ping(context.Background()))

	api.headErr = statusErr(http.StatusForbidden)
	assert.ErrorIs(t, c.Ping(context.Background()), common.ErrUnauthorized)
}

func TestNewS3Client_AppliesOptions(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		assert.NotNil(t, lo.Credentials)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	c, err := NewS3Client(context.Background(), S3Options{
		Bucket: "goals", Region: "eu-central-1", BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey: "minioadmin", SecretKey: "minioadmin",
	})
	require.NoError(t, err)
	assert.Equal(t, "goals", c.bucket)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err = NewS3Client(context.Background(), S3Options{Region: "x"})
	assert.Error(t, err)
}
