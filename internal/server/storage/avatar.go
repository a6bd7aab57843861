// Package storage keeps avatar images in object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxAvatarSize is the largest accepted avatar upload.
const MaxAvatarSize = 5 << 20

// AvatarStore stores avatar blobs under opaque keys and hands out
// time-limited URLs for them.
type AvatarStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// NewAvatarKey returns a fresh key such as avatars/2026/3/1/<uuid>.png.
func NewAvatarKey(now time.Time, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	return fmt.Sprintf("avatars/%d/%d/%d/%v%s", now.Year(), now.Month(), now.Day(), uuid.New(), ext)
}
