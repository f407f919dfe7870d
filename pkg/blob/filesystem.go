package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// FilesPrefix is the URL path under which the admin server serves
// filesystem blobs.
const FilesPrefix = "/files/"

type Filesystem struct {
	root    string
	baseURL string
}

func NewFilesystem(root, baseURL string) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem blob root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	if baseURL == "" {
		baseURL = FilesPrefix
	}
	return &Filesystem{root: root, baseURL: baseURL}, nil
}

func (f *Filesystem) Driver() Driver { return DriverFilesystem }

func (f *Filesystem) Upload(ctx context.Context, key string, r io.Reader, _ string) error {
	if err := validKey(key); err != nil {
		return err
	}
	dst := filepath.Join(f.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (f *Filesystem) PublicURL(key string) string {
	return joinURL(f.baseURL, key)
}

// Handler serves the stored files; mount it under FilesPrefix.
func (f *Filesystem) Handler() http.Handler {
	return http.StripPrefix(FilesPrefix, http.FileServer(http.Dir(f.root)))
}
