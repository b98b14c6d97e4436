// Package media relays uploaded article images to object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"blogsvc/internal/util"
	"blogsvc/pkg/storage"
)

const defaultFolder = "articles"

var defaultExtensions = []string{"jpg", "jpeg", "png"}

// ErrUnsupportedImage is returned for files outside the allowed extensions.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Config controls where and what the relay accepts.
type Config struct {
	Folder            string
	AllowedExtensions []string
	Timeout           time.Duration
}

// Relay uploads images under a fixed folder and returns their public URLs.
type Relay struct {
	objects storage.ObjectStore
	folder  string
	allowed map[string]struct{}
	timeout time.Duration
}

func NewRelay(objects storage.ObjectStore, cfg Config) (*Relay, error) {
	if objects == nil {
		return nil, errors.New("object store required")
	}
	folder := strings.Trim(strings.TrimSpace(cfg.Folder), "/")
	if folder == "" {
		folder = defaultFolder
	}
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Relay{objects: objects, folder: folder, allowed: allowed, timeout: timeout}, nil
}

// Upload stores r under a fresh key and returns its public URL.
func (r *Relay) Upload(ctx context.Context, filename string, body io.Reader, size int64) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if _, ok := r.allowed[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, filename)
	}
	contentType := mime.TypeByExtension("." + ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := r.folder + "/" + util.NewID() + "." + ext
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.objects.Put(ctx, key, body, size, contentType); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return r.objects.PublicURL(key), nil
}

// Remove deletes an image previously returned by Upload. URLs this relay did
// not produce are ignored.
func (r *Relay) Remove(ctx context.Context, url string) error {
	key, ok := r.keyFor(url)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.objects.Delete(ctx, key)
}

func (r *Relay) keyFor(url string) (string, bool) {
	prefix := r.objects.PublicURL(r.folder + "/")
	if url == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return r.folder + "/" + name, true
}
