// Package fs publishes feeds to a local directory, typically one a web
// server exports.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Publisher struct {
	root string
}

// New returns a filesystem publisher rooted at root, creating it if
// needed.
func New(root string) (*Publisher, error) {
	if root == "" {
		root = "./feeds"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Publisher{root: root}, nil
}

// Put writes the document under key, replacing any previous copy. The
// bytes land in a temp file first and move into place with a rename, so
// readers never see a partial feed. The content type is dropped; servers
// derive it from the file extension.
func (p *Publisher) Put(_ context.Context, key string, data []byte, _ string) error {
	path, err := p.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// pathFor maps a key to a file path, refusing anything that could escape
// the root.
func (p *Publisher) pathFor(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	return filepath.Join(p.root, filepath.FromSlash(clean)), nil
}
