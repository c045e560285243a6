// Package backblaze is the Backblaze B2 attachment backend.
package backblaze

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kurin/blazer/b2"

	"github.com/upiiz/school-records-api/internal/attachment"
)

// Backend authenticates lazily on first use, so the API starts without B2
// credentials and reports them missing per request.
type Backend struct {
	keyID      string
	appKey     string
	bucketName string

	mu     sync.Mutex
	bucket *b2.Bucket
}

func New(keyID, appKey, bucketName string) *Backend {
	return &Backend{keyID: keyID, appKey: appKey, bucketName: bucketName}
}

func (b *Backend) open(ctx context.Context) (*b2.Bucket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bucket != nil {
		return b.bucket, nil
	}
	if b.keyID == "" || b.appKey == "" {
		return nil, attachment.ErrUnavailable
	}

	client, err := b2.NewClient(ctx, b.keyID, b.appKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attachment.ErrUnavailable, err)
	}

	bucket, err := client.Bucket(ctx, b.bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	b.bucket = bucket
	return bucket, nil
}

func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	bucket, err := b.open(ctx)
	if err != nil {
		return err
	}

	w := bucket.Object(key).NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: contentType})
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	bucket, err := b.open(ctx)
	if err != nil {
		return err
	}

	if err := bucket.Object(key).Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			return fmt.Errorf("%w: %s", attachment.ErrNotFound, key)
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
