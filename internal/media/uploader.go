package media

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Uploader stores an optimized image outside its record and returns the URL
// it can be fetched from.
type Uploader interface {
	Put(ctx context.Context, objectPath string, data []byte) (string, error)
}

// DirUploader writes objects below Dir and serves them under BaseURL.
type DirUploader struct {
	Dir     string
	BaseURL string
}

func NewDirUploader(dir, baseURL string) *DirUploader {
	return &DirUploader{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (u *DirUploader) Put(ctx context.Context, objectPath string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := path.Clean("/" + objectPath)
	if clean == "/" {
		return "", fmt.Errorf("object path is required")
	}

	target := filepath.Join(u.Dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write media object: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", fmt.Errorf("publish media object: %w", err)
	}
	return u.BaseURL + clean, nil
}

var _ Uploader = (*DirUploader)(nil)
