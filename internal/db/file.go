package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pdfchat/internal/models"
)

// File keeps the snapshot in a single JSON document, replaced atomically.
type File struct {
	path string
}

func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &File{path: path}, nil
}

func (f *File) Load(_ context.Context) (models.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.Snapshot{}, nil
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("read snapshot '%s': %w", f.path, err)
	}
	return decodeSnapshot(data)
}

func (f *File) Save(_ context.Context, snap models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".chats-*.json")
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot '%s': %w", f.path, err)
	}
	return nil
}

func (f *File) Close() error { return nil }
