package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/S1riyS/drive-core/server/internal/blobstore"
	"github.com/S1riyS/drive-core/server/internal/blobstore/blobtest"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory stand-in for the bucket.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string][]byte)}
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	blobtest.Suite{
		NewStore: func(t *testing.T) blobstore.Store {
			s, err := New(context.Background(), newFakeS3("drive"), "drive", "blobs/")
			require.NoError(t, err)
			return s
		},
	}.Run(t)
}

func TestKeysUsePrefix(t *testing.T) {
	fake := newFakeS3("drive")
	s, err := New(context.Background(), fake, "drive", "blobs/")
	require.NoError(t, err)

	handle, err := s.Put(context.Background(), blobstore.AreaContent, []byte("x"))
	require.NoError(t, err)

	_, ok := fake.objects["blobs/"+handle]
	assert.True(t, ok)
}

func TestNewValidates(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, nil, "drive", "")
	assert.Error(t, err)

	_, err = New(ctx, newFakeS3("drive"), "", "")
	assert.Error(t, err)

	_, err = New(ctx, newFakeS3("drive"), "other", "")
	assert.Error(t, err)
}

type failingS3 struct {
	*fakeS3
}

func (f failingS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errors.New("connection reset")
}

func TestPutFailureSurfaces(t *testing.T) {
	s, err := New(context.Background(), failingS3{newFakeS3("drive")}, "drive", "")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), blobstore.AreaContent, []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, blobstore.ErrNotFound)
}
