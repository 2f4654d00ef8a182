package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
)

// Store keeps one file per slot in a directory, the way a browser keeps local storage per origin.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("[filestore New] create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

const slotExt = ".json"

func (s *Store) path(slot string) string {
	return filepath.Join(s.dir, url.PathEscape(slot)+slotExt)
}

func (s *Store) Load(_ context.Context, slot string) ([]byte, error) {
	data, err := os.ReadFile(s.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[filestore Load] %s: %w", slot, err)
	}
	return data, nil
}

// Save writes to a temp file and renames it so a crash never leaves a half-written slot.
func (s *Store) Save(_ context.Context, slot string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("[filestore Save] %s: %w", slot, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("[filestore Save] %s: %w", slot, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[filestore Save] %s: %w", slot, err)
	}
	if err := os.Rename(tmp.Name(), s.path(slot)); err != nil {
		return fmt.Errorf("[filestore Save] %s: %w", slot, err)
	}
	return nil
}

func (s *Store) Remove(_ context.Context, slot string) error {
	err := os.Remove(s.path(slot))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("[filestore Remove] %s: %w", slot, err)
	}
	return nil
}

// List reads slot names back from the file names. Temp files are skipped.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("[filestore List] %s: %w", s.dir, err)
	}

	var slots []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, slotExt) {
			continue
		}
		slot, err := url.PathUnescape(strings.TrimSuffix(name, slotExt))
		if err != nil {
			continue
		}
		if strings.HasPrefix(slot, prefix) {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

func (s *Store) Close() error {
	return nil
}
