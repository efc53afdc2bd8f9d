package weights

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridict/voiceguard-go/internal/errors"
)

type fakeS3 struct {
	objects map[string][]byte
	calls   int
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	data, ok := f.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "the specified key does not exist"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"simple", "s3://models/aasist.tflite", "models", "aasist.tflite", false},
		{"nested_key", "s3://models/v2/aasist-ft.tflite", "models", "v2/aasist-ft.tflite", false},
		{"wrong_scheme", "gs://models/aasist.tflite", "", "", true},
		{"missing_key", "s3://models", "", "", true},
		{"empty_bucket", "s3:///aasist.tflite", "", "", true},
		{"empty", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestResolveDownloadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	client := &fakeS3{objects: map[string][]byte{
		"models/aasist-ft.tflite": []byte("weights-bytes"),
	}}
	r := NewResolverWithClient(client, dir)

	path, err := r.Resolve(context.Background(), "s3://models/aasist-ft.tflite")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "weights-bytes", string(data))
	assert.Equal(t, 1, client.calls)

	// Second resolve hits the cache.
	again, err := r.Resolve(context.Background(), "s3://models/aasist-ft.tflite")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, 1, client.calls)

	// No temporary or lock files left behind.
	assert.NoFileExists(t, path+".tmp")
	assert.NoFileExists(t, path+".lock")
}

func TestResolveMissingObject(t *testing.T) {
	r := NewResolverWithClient(&fakeS3{objects: map[string][]byte{}}, t.TempDir())

	_, err := r.Resolve(context.Background(), "s3://models/absent.tflite")

	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

type failingS3 struct{}

func (failingS3) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, errors.Newf("connection reset").Component("weights").Build()
}

func TestResolveTransportFailure(t *testing.T) {
	r := NewResolverWithClient(failingS3{}, t.TempDir())

	_, err := r.Resolve(context.Background(), "s3://models/a.tflite")

	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))
}

func TestResolveBadURI(t *testing.T) {
	r := NewResolverWithClient(&fakeS3{}, t.TempDir())

	_, err := r.Resolve(context.Background(), "http://models/a.tflite")

	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestCachePathIsDeterministic(t *testing.T) {
	r := NewResolverWithClient(&fakeS3{}, "/var/cache/voiceguard")

	p := r.CachePath("models", "v2/aasist-ft.tflite")
	assert.Equal(t, filepath.Join("/var/cache/voiceguard", "models", "v2", "aasist-ft.tflite"), p)
}

func TestResolveZeroByteCacheRefetches(t *testing.T) {
	dir := t.TempDir()
	client := &fakeS3{objects: map[string][]byte{
		"models/aasist-ft.tflite": []byte("weights-bytes"),
	}}
	r := NewResolverWithClient(client, dir)

	// A truncated cache artifact must not be served to the model loader.
	path := r.CachePath("models", "aasist-ft.tflite")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	got, err := r.Resolve(context.Background(), "s3://models/aasist-ft.tflite")
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, 1, client.calls)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "weights-bytes", string(data))
}

func TestResolveCachedFileSkipsLock(t *testing.T) {
	dir := t.TempDir()
	client := &fakeS3{objects: map[string][]byte{}}
	r := NewResolverWithClient(client, dir)

	path := r.CachePath("models", "cached.tflite")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0o644))

	got, err := r.Resolve(context.Background(), "s3://models/cached.tflite")
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Zero(t, client.calls)
}
