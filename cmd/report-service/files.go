package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore fetches stored document bytes by their persisted path. The
// upload transport and remote storage backends live outside this service;
// the local implementation covers single-node deployments.
type FileStore interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

type LocalFileStore struct {
	base string
}

func NewLocalFileStore(base string) *LocalFileStore {
	return &LocalFileStore{base: base}
}

func (s *LocalFileStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	full := filepath.Join(s.base, filepath.Clean("/"+path))
	if !strings.HasPrefix(full, filepath.Clean(s.base)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("path %q escapes storage root", path)
	}
	return os.ReadFile(full)
}
