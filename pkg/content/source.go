package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoSource is returned by an Index created without a Source.
var ErrNoSource = errors.New("content: no record source configured")

// Source enumerates the records of a content collection.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
}

// StaticSource serves a fixed record set.
type StaticSource []Record

// Records returns a copy of the static record set.
func (s StaticSource) Records(ctx context.Context) ([]Record, error) {
	out := make([]Record, len(s))
	copy(out, s)
	return out, nil
}

// RawExtensions are captured inline as text.
var RawExtensions = map[string]bool{
	"ipynb": true, "py": true, "m": true, "txt": true, "md": true,
	"json": true, "csv": true, "dat": true,
}

// AssetExtensions are captured as locators.
var AssetExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "svg": true, "gif": true,
	"webp": true, "pdf": true,
}

// DirSource walks a directory on disk. Text files become raw records and
// assets become URL records under AssetBase; other files are skipped.
type DirSource struct {
	Root      string
	AssetBase string // prefix for asset locators, e.g. "/content"
}

// Records walks Root and returns one record per recognised file, keyed
// by its slash-separated path relative to Root.
func (s *DirSource) Records(ctx context.Context) ([]Record, error) {
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, fmt.Errorf("stat content root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root %s is not a directory", s.Root)
	}

	var records []Record
	err = filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		virtual := filepath.ToSlash(rel)
		ext := Ext(d.Name())

		switch {
		case RawExtensions[ext]:
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read %s: %w", virtual, err)
			}
			records = append(records, Record{Path: virtual, Kind: PayloadRaw, Value: string(data)})
		case AssetExtensions[ext]:
			records = append(records, Record{Path: virtual, Kind: PayloadURL, Value: s.assetURL(virtual)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk content root: %w", err)
	}
	return records, nil
}

func (s *DirSource) assetURL(virtual string) string {
	base := strings.TrimSuffix(s.AssetBase, "/")
	return base + "/" + virtual
}
