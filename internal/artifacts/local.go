package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore — artifact store на локальной файловой системе.
type LocalStore struct {
	identity Identity
}

// NewLocalStore создаёт LocalStore с корнем root. Корень создаётся при необходимости.
func NewLocalStore(id, root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	identity, err := IdentityFor(id, abs)
	if err != nil {
		return nil, fmt.Errorf("parse artifact store id: %w", err)
	}
	return &LocalStore{identity: identity}, nil
}

// Identity возвращает идентичность хранилища.
func (s *LocalStore) Identity() Identity {
	return s.identity
}

// Exists проверяет, существует ли URI.
func (s *LocalStore) Exists(_ context.Context, uri string) (bool, error) {
	path, err := s.resolve(uri)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", uri, err)
	}
	return true, nil
}

// MakeDirs создаёт директорию артефакта.
//
// Родительские директории создаются через MkdirAll, а последний уровень
// через os.Mkdir: создание атомарно, и из двух конкурентных запусков
// ровно один получит ErrArtifactExists.
func (s *LocalStore) MakeDirs(_ context.Context, uri string) error {
	path, err := s.resolve(uri)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", uri, err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrArtifactExists, uri)
		}
		return fmt.Errorf("create %s: %w", uri, err)
	}
	return nil
}

// RemoveAll удаляет директорию артефакта.
func (s *LocalStore) RemoveAll(_ context.Context, uri string) error {
	path, err := s.resolve(uri)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", uri, err)
	}
	return nil
}

// WriteFile записывает файл внутри директории артефакта.
func (s *LocalStore) WriteFile(_ context.Context, uri, name string, data []byte) error {
	path, err := s.resolve(uri)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(path, filepath.Base(name)), data, 0o644); err != nil {
		return fmt.Errorf("write %s/%s: %w", uri, name, err)
	}
	return nil
}

// ReadFile читает файл из директории артефакта.
func (s *LocalStore) ReadFile(_ context.Context, uri, name string) ([]byte, error) {
	path, err := s.resolve(uri)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(path, filepath.Base(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, uri, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", uri, name, err)
	}
	return data, nil
}

// resolve проверяет, что URI лежит внутри корня хранилища.
func (s *LocalStore) resolve(uri string) (string, error) {
	path := filepath.Clean(uri)
	root := s.identity.Path
	if path == root || !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, uri)
	}
	return path, nil
}
