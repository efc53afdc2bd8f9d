// Package weights downloads model weight files from object storage and
// caches them on local disk. Downloads are written to a temporary file and
// renamed into place so readers never observe a partial file, and a lock file
// serializes concurrent fetches of the same object.
package weights

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/errors"
	"github.com/veridict/voiceguard-go/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("weights")
}

const (
	lockWaitInterval = 200 * time.Millisecond
	lockWaitTimeout  = 5 * time.Minute
)

// S3Client is the subset of the S3 API used to fetch weight objects.
// The concrete client satisfies it; tests substitute fakes.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Resolver maps s3:// URIs to local file paths, downloading on first use.
type Resolver struct {
	client   S3Client
	cacheDir string
}

// NewResolver builds a resolver backed by the default AWS credential chain.
func NewResolver(ctx context.Context, settings *conf.Settings) (*Resolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(settings.Weights.Region))
	if err != nil {
		return nil, errors.New(err).
			Component("weights").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return NewResolverWithClient(s3.NewFromConfig(cfg), settings.Weights.CacheDir), nil
}

// NewResolverWithClient builds a resolver around an existing client.
func NewResolverWithClient(client S3Client, cacheDir string) *Resolver {
	return &Resolver{client: client, cacheDir: cacheDir}
}

// Resolve returns the local path for the object at uri, downloading it into
// the cache directory if it is not already present.
func (r *Resolver) Resolve(ctx context.Context, uri string) (string, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return "", err
	}

	localPath := r.CachePath(bucket, key)
	if fileExists(localPath) {
		logger.Debug("weight file already cached", "uri", uri, "path", localPath)
		return localPath, nil
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return "", errors.New(err).
			Component("weights").
			Category(errors.CategoryFileIO).
			Context("path", localPath).
			Build()
	}

	release, err := r.acquireLock(ctx, localPath)
	if err != nil {
		return "", err
	}
	defer release()

	// Another process may have finished the download while we waited.
	if fileExists(localPath) {
		return localPath, nil
	}

	if err := r.download(ctx, bucket, key, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

// CachePath returns the deterministic local path for an object.
func (r *Resolver) CachePath(bucket, key string) string {
	return filepath.Join(r.cacheDir, bucket, filepath.FromSlash(key))
}

func (r *Resolver) download(ctx context.Context, bucket, key, localPath string) error {
	start := time.Now()
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return errors.New(err).
				Component("weights").
				Category(errors.CategoryValidation).
				Context("bucket", bucket).
				Context("key", key).
				Build()
		}
		return errors.New(err).
			Component("weights").
			Category(errors.CategoryNetwork).
			Context("bucket", bucket).
			Context("key", key).
			Build()
	}
	defer out.Body.Close()

	tmpPath := localPath + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.New(err).
			Component("weights").
			Category(errors.CategoryFileIO).
			Context("path", tmpPath).
			Build()
	}

	written, err := io.Copy(tmp, out.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return errors.New(err).
			Component("weights").
			Category(errors.CategoryFileIO).
			Context("path", tmpPath).
			Build()
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return errors.New(err).
			Component("weights").
			Category(errors.CategoryFileIO).
			Context("path", localPath).
			Build()
	}

	logger.Info("weight file downloaded",
		"bucket", bucket,
		"key", key,
		"bytes", written,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// acquireLock creates a lock file next to the target path, waiting for a
// concurrent downloader to finish if the lock is already held. Stale locks
// time out rather than block startup forever.
func (r *Resolver) acquireLock(ctx context.Context, localPath string) (func(), error) {
	lockPath := localPath + ".lock"
	deadline := time.Now().Add(lockWaitTimeout)

	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, errors.New(err).
				Component("weights").
				Category(errors.CategoryFileIO).
				Context("path", lockPath).
				Build()
		}

		if time.Now().After(deadline) {
			return nil, errors.Newf("timed out waiting for download lock %s", lockPath).
				Component("weights").
				Category(errors.CategoryTimeout).
				Build()
		}

		select {
		case <-ctx.Done():
			return nil, errors.New(ctx.Err()).
				Component("weights").
				Category(errors.CategoryCancellation).
				Build()
		case <-time.After(lockWaitInterval):
		}
	}
}

// ParseS3URI splits an s3://bucket/key URI into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(uri, scheme) {
		return "", "", errors.Newf("unsupported weight URI %q, expected s3://bucket/key", uri).
			Component("weights").
			Category(errors.CategoryValidation).
			Build()
	}
	rest := strings.TrimPrefix(uri, scheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", errors.Newf("malformed weight URI %q, expected s3://bucket/key", uri).
			Component("weights").
			Category(errors.CategoryValidation).
			Build()
	}
	return bucket, key, nil
}

// fileExists reports whether a usable cached file is present. Zero-byte files
// count as absent so a truncated artifact is re-fetched rather than handed to
// the model loader.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
