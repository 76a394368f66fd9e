package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/ironsheep/scan2pdf/internal/config"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	defaultMaxRetries   = 4
	defaultBackoff      = 1 * time.Second
	defaultWriteTimeout = 50 * time.Second
)

// Destination opens a writer for a new object. The write must fail if the
// object already exists.
type Destination interface {
	NewWriter(ctx context.Context, object string) io.WriteCloser
}

// Sizer reports the size of an existing object. Destinations that implement
// it let Publish tell a prior upload of the same document from a different
// document stored under the same name.
type Sizer interface {
	Size(ctx context.Context, object string) (int64, error)
}

// Uploader copies verified documents to object storage.
type Uploader struct {
	Dest   Destination
	Bucket string
	Prefix string

	MaxRetries   int
	Backoff      time.Duration
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

// ObjectName returns the object name for localPath under prefix.
func ObjectName(prefix, localPath string) string {
	return path.Join(strings.Trim(prefix, "/"), filepath.Base(localPath))
}

// Publish uploads localPath and returns its gs:// URL. Failed attempts are
// retried with doubling backoff. An object that already exists under the
// same name counts as published unless its size differs from localPath.
func (u *Uploader) Publish(ctx context.Context, localPath string) (string, error) {
	logger := u.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := u.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := u.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	object := ObjectName(u.Prefix, localPath)
	url := fmt.Sprintf("gs://%s/%s", u.Bucket, object)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := u.upload(ctx, localPath, object)
		if err == nil {
			logger.Info("published document", zap.String("url", url))
			return url, nil
		}
		if isPreconditionFailed(err) {
			if err := u.checkExisting(ctx, logger, localPath, object, url); err != nil {
				return "", err
			}
			return url, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		lastErr = err
		logger.Warn("upload failed, will retry",
			zap.String("object", object),
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		if i == maxRetries-1 {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("upload of %s failed after %d attempts: %w", object, maxRetries, lastErr)
}

// checkExisting decides whether an object that blocked a create-only write
// is the document at localPath.
func (u *Uploader) checkExisting(ctx context.Context, logger *zap.Logger, localPath, object, url string) error {
	sizer, ok := u.Dest.(Sizer)
	if !ok {
		logger.Warn("object already exists, not overwritten", zap.String("url", url))
		return nil
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	remote, err := sizer.Size(ctx, object)
	if err != nil {
		logger.Warn("object already exists, not overwritten",
			zap.String("url", url), zap.NamedError("stat_error", err))
		return nil
	}
	if remote != info.Size() {
		return fmt.Errorf("object %s already exists with %d bytes, local document has %d", object, remote, info.Size())
	}
	logger.Info("object already exists with the same size, skipping", zap.String("url", url))
	return nil
}

func (u *Uploader) upload(ctx context.Context, localPath, object string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer f.Close()

	timeout := u.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	w := u.Dest.NewWriter(writeCtx, object)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to bucket failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// bucketDestination writes create-only objects to a Cloud Storage bucket.
type bucketDestination struct {
	bucket *storage.BucketHandle
}

func (b bucketDestination) NewWriter(ctx context.Context, object string) io.WriteCloser {
	w := b.bucket.Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/pdf"
	return w
}

func (b bucketDestination) Size(ctx context.Context, object string) (int64, error) {
	attrs, err := b.bucket.Object(object).Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

// NewGCS returns an Uploader for cfg.Bucket and a function that releases the
// storage client.
func NewGCS(ctx context.Context, cfg config.PublishConfig, logger *zap.Logger) (*Uploader, func() error, error) {
	if cfg.Bucket == "" {
		return nil, nil, errors.New("publish bucket not configured")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	u := &Uploader{
		Dest:   bucketDestination{bucket: client.Bucket(cfg.Bucket)},
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
		Logger: logger,
	}
	return u, client.Close, nil
}
