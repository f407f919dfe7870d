// Package blob stores uploaded images and hands out their public URLs.
//
// Drivers:
//   - memory: process-local map, for tests and development
//   - filesystem: files under a root directory, served by the admin server
//   - s3: an S3-compatible bucket (AWS S3 or MinIO)
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

type Driver string

const (
	DriverMemory     Driver = "memory"
	DriverFilesystem Driver = "filesystem"
	DriverS3         Driver = "s3"
)

// Store is a single bucket of objects.
type Store interface {
	Driver() Driver
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	PublicURL(key string) string
}

type Config struct {
	Driver Driver `mapstructure:"driver"`
	// Root is the filesystem driver's directory.
	Root string `mapstructure:"root"`
	// PublicBaseURL prefixes object keys in public URLs.
	PublicBaseURL string `mapstructure:"public_base_url"`

	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemory(cfg.PublicBaseURL), nil
	case DriverFilesystem:
		return NewFilesystem(cfg.Root, cfg.PublicBaseURL)
	case DriverS3:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// ProfilePictureKey names an uploaded admin profile picture after the upload
// time, keeping the extension of the original file name.
func ProfilePictureKey(now time.Time, filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		ext = "png"
	}
	return fmt.Sprintf("admin-profiles/%d.%s", now.UnixMilli(), ext)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
