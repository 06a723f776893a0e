package remote

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cellarsync/internal/model"
)

// UploadPhoto uploads the local file into the kind-named bucket and returns
// the publicly resolvable URL. The object key is prefixed with a timestamp so
// re-uploads for the same item never collide.
func (c *Client) UploadPhoto(ctx context.Context, kind model.Kind, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open photo %s: %w", localPath, err)
	}
	defer f.Close()

	bucket := kind.Bucket()
	key := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(localPath))

	u := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, f)
	if err != nil {
		return "", err
	}

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	if err := c.do(req, nil); err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}

	return c.PublicURL(bucket, key), nil
}

// PublicURL returns the public URL for an object in a bucket.
func (c *Client) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, key)
}
