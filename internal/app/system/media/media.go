// Package media stores user uploads (post attachments and avatars) in the
// configured file storage.
package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
)

// Storage folders
const (
	KindPost   = "posts"
	KindAvatar = "avatars"
)

var (
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("file is too large")
	// ErrUnsupportedType is returned for anything other than an image or video.
	ErrUnsupportedType = errors.New("only images and videos can be uploaded")
)

// Saved describes a stored upload.
type Saved struct {
	Path      string
	URL       string
	MediaType string // models.MediaImage or models.MediaVideo
}

// Uploader writes uploads to a storage.Store.
type Uploader struct {
	store    storage.Store
	maxBytes int64
}

func NewUploader(store storage.Store, maxBytes int64) *Uploader {
	return &Uploader{store: store, maxBytes: maxBytes}
}

// MaxBytes is the per-file size limit.
func (u *Uploader) MaxBytes() int64 { return u.maxBytes }

// Save sniffs the upload's content type, rejects anything that is not an
// image or video (avatars accept images only), and stores it under
// kind/YYYY/MM/.
func (u *Uploader) Save(ctx context.Context, kind string, file multipart.File, header *multipart.FileHeader) (Saved, error) {
	if header.Size > u.maxBytes {
		return Saved{}, ErrTooLarge
	}

	br := bufio.NewReaderSize(file, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Saved{}, fmt.Errorf("read upload: %w", err)
	}
	contentType := http.DetectContentType(head)
	mediaType := classify(contentType)
	if mediaType == "" || (kind == KindAvatar && mediaType != models.MediaImage) {
		return Saved{}, ErrUnsupportedType
	}

	now := time.Now().UTC()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := fmt.Sprintf("%s/%04d/%02d/%s%s", kind, now.Year(), int(now.Month()), uuid.New().String()[:8], ext)

	body := io.LimitReader(br, u.maxBytes+1)
	if err := u.store.Put(ctx, path, body, &storage.PutOptions{ContentType: contentType}); err != nil {
		return Saved{}, fmt.Errorf("store upload: %w", err)
	}
	return Saved{Path: path, URL: u.store.URL(path), MediaType: mediaType}, nil
}

// Delete removes a stored upload. An empty path is a no-op.
func (u *Uploader) Delete(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	return u.store.Delete(ctx, path)
}

// URL returns the public URL of a stored path.
func (u *Uploader) URL(path string) string {
	return u.store.URL(path)
}

func classify(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return models.MediaVideo
	default:
		return ""
	}
}
