package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps objects under a directory on disk. Files are written to
// a temporary name and renamed, so readers never see a partial image.
type LocalStorage struct {
	basePath string
	baseURL  string
	logger   *slog.Logger
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	logger.Info("initialized local storage", "base_path", absPath, "base_url", cfg.BaseURL)

	return &LocalStorage{
		basePath: absPath,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:   logger,
	}, nil
}

// BasePath returns the directory served under the base URL.
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(key)
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	defer os.Remove(tmp.Name())

	src := data
	if opts.MaxSize > 0 {
		src = io.LimitReader(data, opts.MaxSize+1)
	}
	written, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	if opts.MaxSize > 0 && written > opts.MaxSize {
		return &Error{Op: "put", Key: key, Err: ErrTooLarge}
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}

	s.logger.Debug("stored file", "key", key, "size", written)
	return nil
}

func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	target, err := s.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, &Error{Op: "get", Key: key, Err: err}
	}

	f, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			err = ErrNotFound
		}
		return nil, ObjectInfo{}, &Error{Op: "get", Key: key, Err: err}
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, &Error{Op: "get", Key: key, Err: err}
	}

	return f, ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  mime.TypeByExtension(path.Ext(key)),
		LastModified: stat.ModTime(),
	}, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(key)
	if err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// URL ignores expires: local files are always public.
func (s *LocalStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", &Error{Op: "url", Key: key, Err: err}
	}
	return s.baseURL + "/" + key, nil
}

func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	target, err := s.resolve(key)
	if err != nil {
		return false, &Error{Op: "exists", Key: key, Err: err}
	}
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &Error{Op: "exists", Key: key, Err: err}
	}
	return true, nil
}

// resolve maps a key to a path inside the base directory.
func (s *LocalStorage) resolve(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}
