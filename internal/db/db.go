package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pdfchat/internal/models"

	_ "modernc.org/sqlite"
)

// SnapshotKey names the single durable record holding the chat list.
const SnapshotKey = "pdfChats"

// SQLite keeps the snapshot as one row of a key/value table.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			key TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context) (models.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE key = ?", SnapshotKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, nil
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return decodeSnapshot([]byte(data))
}

func (s *SQLite) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots(key, data, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		SnapshotKey,
		string(data),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func decodeSnapshot(data []byte) (models.Snapshot, error) {
	var snap models.Snapshot
	if len(data) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	for i := range snap.Chats {
		if snap.Chats[i].Messages == nil {
			snap.Chats[i].Messages = []models.Message{}
		}
	}
	return snap, nil
}
