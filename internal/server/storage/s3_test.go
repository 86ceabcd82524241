package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/rentdesk/internal/common"
	sc "github.com/dmitrijs2005/rentdesk/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects      map[string][]byte
	types        map[string]string
	putErr       error
	headErr      error
	createErr    error
	createCalled bool
	deleted      []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = b
	f.types[*in.Key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(b))),
		ContentType:   aws.String(f.types[*in.Key]),
		ContentLength: aws.Int64(int64(len(b))),
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	f.deleted = append(f.deleted, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createCalled = true
	return &s3.CreateBucketOutput{}, f.createErr
}

type fakePresign struct{ err error }

func (p fakePresign) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	return &v4.PresignedHTTPRequest{URL: "http://minio/" + *in.Bucket + "/" + *in.Key + "?ttl=" + o.Expires.String()}, nil
}

func newTestStore(f *fakeS3) *S3Store {
	return &S3Store{client: f, presign: fakePresign{}, bucket: "driver-licenses"}
}

func TestPutGetDelete(t *testing.T) {
	f := newFakeS3()
	s := newTestStore(f)
	ctx := context.Background()

	loc, err := s.Put(ctx, "a.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/driver-licenses/a.png", loc)

	obj, err := s.Get(ctx, "a.png")
	require.NoError(t, err)
	defer obj.Body.Close()
	b, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "png-bytes", string(b))
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, int64(9), obj.Size)

	require.NoError(t, s.Delete(ctx, "a.png"))
	_, err = s.Get(ctx, "a.png")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPut_Error(t *testing.T) {
	f := newFakeS3()
	f.putErr = errors.New("unreachable")
	s := newTestStore(f)

	_, err := s.Put(context.Background(), "a.png", []byte("x"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestPresignGet(t *testing.T) {
	s := newTestStore(newFakeS3())
	u, err := s.PresignGet(context.Background(), "a.png", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://minio/driver-licenses/a.png?ttl=15m0s", u)

	s.presign = fakePresign{err: errors.New("no creds")}
	_, err = s.PresignGet(context.Background(), "a.png", time.Minute)
	assert.Error(t, err)
}

func TestEnsureBucket(t *testing.T) {
	f := newFakeS3()
	s := newTestStore(f)
	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.False(t, f.createCalled)

	f.headErr = &smithy.GenericAPIError{Code: "NotFound"}
	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.True(t, f.createCalled)

	f.createErr = &smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"}
	require.NoError(t, s.EnsureBucket(context.Background()))

	f.createErr = errors.New("denied")
	assert.Error(t, s.EnsureBucket(context.Background()))
}

func TestNewS3Store_AppliesConfig(t *testing.T) {
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
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	cfg := &sc.Config{S3Region: "us-east-1", S3BaseEndpoint: "http://127.0.0.1:9000/", S3Bucket: "b"}
	s, err := NewS3Store(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "b", s.Bucket())
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000/", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Store_ConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad env")
	}

	_, err := NewS3Store(context.Background(), &sc.Config{})
	assert.Error(t, err)
}
