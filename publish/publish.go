// Package publish delivers rendered feed documents to their serving
// location.
package publish

import (
	"context"
	"fmt"

	"seriate/publish/fs"
	"seriate/publish/memory"
	"seriate/publish/s3"
)

// Publisher stores rendered feeds. Put replaces any previous copy of the
// key; feeds are republished whole after every change.
type Publisher interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Config selects and parameterizes a Publisher backend.
type Config struct {
	Driver string    `yaml:"driver"` // fs, memory or s3
	Root   string    `yaml:"root"`   // fs: directory feeds are written under
	S3     s3.Config `yaml:"s3"`
}

// Open builds the configured Publisher. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Publisher, error) {
	switch cfg.Driver {
	case "", "fs":
		return fs.New(cfg.Root)
	case "memory":
		return memory.New(), nil
	case "s3":
		return s3.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown publish driver %q", cfg.Driver)
	}
}
