// Package execcache keeps the most recent executed copy of each notebook
// in a local sqlite database.
package execcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-coursebook/pkg/notebook"
)

// ErrNotFound is returned when no executed copy exists for a path.
var ErrNotFound = errors.New("no executed copy cached")

// Entry describes one cached execution.
type Entry struct {
	Path       string    `json:"path"`
	Cells      int       `json:"cells"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Store is a sqlite-backed cache of executed notebooks.
type Store struct {
	db     *sql.DB
	logger *logrus.Entry
	now    func() time.Time
}

// Open opens (or creates) the cache database at dbPath.
func Open(dbPath string, logger *logrus.Entry) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	s := &Store{db: db, logger: logger.WithField("component", "exec-cache"), now: time.Now}

	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		path TEXT PRIMARY KEY,
		notebook TEXT NOT NULL,
		cells INTEGER,
		executed_at TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// SaveExecuted replaces the cached copy for virtualPath with doc.
func (s *Store) SaveExecuted(ctx context.Context, virtualPath string, doc *notebook.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", virtualPath, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM executions WHERE path = ?", virtualPath); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO executions (path, notebook, cells, executed_at)
		VALUES (?, ?, ?, ?)
	`, virtualPath, string(data), len(doc.Cells), s.now().UTC()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{"path": virtualPath, "cells": len(doc.Cells)}).Debug("Cached executed notebook")
	return nil
}

// Load returns the cached executed copy for virtualPath.
func (s *Store) Load(ctx context.Context, virtualPath string) (*notebook.Document, *Entry, error) {
	var (
		data string
		e    Entry
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT path, notebook, cells, executed_at FROM executions WHERE path = ?
	`, virtualPath).Scan(&e.Path, &data, &e.Cells, &e.ExecutedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%s: %w", virtualPath, ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	doc, err := notebook.Parse([]byte(data))
	if err != nil {
		return nil, nil, fmt.Errorf("cached copy of %s: %w", virtualPath, err)
	}
	return doc, &e, nil
}

// List returns every cached entry, most recent first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, cells, executed_at FROM executions ORDER BY executed_at DESC, path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Cells, &e.ExecutedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove drops the cached copy for virtualPath, if any.
func (s *Store) Remove(ctx context.Context, virtualPath string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM executions WHERE path = ?", virtualPath)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
