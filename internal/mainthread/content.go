package mainthread

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedScheme is returned by content providers for URIs they do
// not serve.
var ErrUnsupportedScheme = errors.New("unsupported uri scheme")

// ContentProvider is the storage backend behind documents.
type ContentProvider interface {
	ResolveContent(ctx context.Context, uri string) (string, error)
	UpdateContent(ctx context.Context, uri, content string) error
	CreateFile(ctx context.Context, uri, content string) error
}

// FileContentProvider serves file:// URIs from the local file system.
type FileContentProvider struct{}

func (FileContentProvider) ResolveContent(_ context.Context, uri string) (string, error) {
	path, err := FilePath(uri)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func (FileContentProvider) UpdateContent(_ context.Context, uri, content string) error {
	path, err := FilePath(uri)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// CreateFile fails when the file already exists.
func (FileContentProvider) CreateFile(_ context.Context, uri, content string) error {
	path, err := FilePath(uri)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// FileURI returns the file:// URI of an absolute path.
func FileURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// FilePath returns the local path of a file:// URI.
func FilePath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, uri)
	}
	return filepath.FromSlash(u.Path), nil
}

// Scheme returns the scheme of uri, or "" when it has none.
func Scheme(uri string) string {
	if i := strings.Index(uri, ":"); i > 0 {
		return uri[:i]
	}
	return ""
}
