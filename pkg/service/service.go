package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-coursebook/pkg/backend"
	"github.com/mattsolo1/grove-coursebook/pkg/content"
	"github.com/mattsolo1/grove-coursebook/pkg/execcache"
	"github.com/mattsolo1/grove-coursebook/pkg/notebook"
	"github.com/mattsolo1/grove-coursebook/pkg/search"
	"github.com/mattsolo1/grove-coursebook/pkg/selection"
	"github.com/mattsolo1/grove-coursebook/pkg/session"
	"github.com/mattsolo1/grove-coursebook/pkg/workspace"
)

// MaxTextPreview bounds the characters shown for a text data file.
const MaxTextPreview = 200000

var (
	// ErrNotFound is returned for a path that is not in the course tree.
	ErrNotFound = errors.New("not found in course")
	// ErrNotNotebook is returned by notebook operations on other files.
	ErrNotNotebook = errors.New("not a notebook")
)

// Service is the core coursebook service
type Service struct {
	Course     *workspace.Course
	Content    *content.Index
	Index      *search.Index
	Backend    *backend.Client
	Executions *execcache.Store
	Config     *Config

	logger *logrus.Entry
}

// Config holds service configuration
type Config struct {
	ContentDir string
	DataDir    string
	BackendURL string
	AssetBase  string
	Timeout    time.Duration
	MaxRows    int
}

// New opens the course at config.ContentDir and the local databases in
// config.DataDir.
func New(config *Config, logger *logrus.Entry) (*Service, error) {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}

	course, err := workspace.Open(config.ContentDir)
	if err != nil {
		return nil, fmt.Errorf("open course: %w", err)
	}

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	index, err := search.NewIndex(filepath.Join(config.DataDir, "index.db"), logger)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	executions, err := execcache.Open(filepath.Join(config.DataDir, "executions.db"), logger)
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("open execution cache: %w", err)
	}

	client := backend.NewClient(config.BackendURL,
		backend.WithExecutionTimeout(config.Timeout),
		backend.WithLogger(logger),
	)

	logger.WithFields(logrus.Fields{
		"course":  course.Title(),
		"root":    course.Root,
		"backend": config.BackendURL,
	}).Debug("Service initialized")

	return &Service{
		Course:     course,
		Content:    content.NewIndex(course.Source(config.AssetBase), course.Builder(logger), logger),
		Index:      index,
		Backend:    client,
		Executions: executions,
		Config:     config,
		logger:     logger,
	}, nil
}

// Chapters returns the course tree.
func (s *Service) Chapters(ctx context.Context) ([]content.Chapter, error) {
	return s.Content.Chapters(ctx)
}

// Filter returns the tree narrowed by query.
func (s *Service) Filter(ctx context.Context, query string) (search.Result, error) {
	chapters, err := s.Content.Chapters(ctx)
	if err != nil {
		return search.Result{}, err
	}
	return search.Filter(chapters, query), nil
}

// File looks up the file at virtualPath.
func (s *Service) File(ctx context.Context, virtualPath string) (*content.File, error) {
	chapters, err := s.Content.Chapters(ctx)
	if err != nil {
		return nil, err
	}
	f := content.FindFile(chapters, virtualPath)
	if f == nil {
		return nil, fmt.Errorf("%s: %w", virtualPath, ErrNotFound)
	}
	return f, nil
}

// Reindex rebuilds the course tree and the content-text index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	chapters, err := s.Content.Refresh(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.Index.IndexChapters(ctx, chapters)
	if err != nil {
		return 0, fmt.Errorf("index content: %w", err)
	}
	return n, nil
}

// SearchContent finds files by their text content.
func (s *Service) SearchContent(ctx context.Context, query string, options ...SearchOption) ([]search.Hit, error) {
	opts := &search.Options{Limit: 50}
	for _, opt := range options {
		opt(opts)
	}
	return s.Index.Search(ctx, query, opts)
}

// NewController returns a selection controller whose notebook sessions
// record executions in the local cache.
func (s *Service) NewController() *selection.Controller {
	return selection.New(s.Content, s.Backend,
		selection.WithLogger(s.logger),
		selection.WithSessionOptions(
			session.WithResultStore(s.Executions),
			session.WithLogger(s.logger),
		),
	)
}

// OpenNotebook selects the notebook at virtualPath in a fresh controller
// and returns its loaded session.
func (s *Service) OpenNotebook(ctx context.Context, virtualPath string) (*session.Session, error) {
	f, err := s.File(ctx, virtualPath)
	if err != nil {
		return nil, err
	}
	if !f.IsNotebook() {
		return nil, fmt.Errorf("%s: %w", virtualPath, ErrNotNotebook)
	}
	return s.NewController().Select(ctx, f)
}

// Notebook returns the notebook at virtualPath as stored in the course.
// With executed set, the most recent executed copy is returned instead:
// the local cache first, then the backend.
func (s *Service) Notebook(ctx context.Context, virtualPath string, executed bool) (*notebook.Document, error) {
	f, err := s.File(ctx, virtualPath)
	if err != nil {
		return nil, err
	}
	if !f.IsNotebook() {
		return nil, fmt.Errorf("%s: %w", virtualPath, ErrNotNotebook)
	}
	if !executed {
		return notebook.Parse([]byte(f.Raw))
	}

	doc, _, err := s.Executions.Load(ctx, virtualPath)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, execcache.ErrNotFound) {
		s.logger.WithError(err).Warn("Execution cache read failed")
	}
	data, err := s.Backend.DownloadRaw(ctx, virtualPath, true)
	if err != nil {
		return nil, err
	}
	return notebook.Parse(data)
}

// DataPreview is either a table from the backend or inline text.
type DataPreview struct {
	Path      string           `json:"path"`
	Table     *backend.Preview `json:"table,omitempty"`
	Text      string           `json:"text,omitempty"`
	Truncated bool             `json:"truncated"`
}

// Preview returns the first rows of a tabular file, or the leading text
// of any other raw file.
func (s *Service) Preview(ctx context.Context, virtualPath string, maxRows int) (*DataPreview, error) {
	f, err := s.File(ctx, virtualPath)
	if err != nil {
		return nil, err
	}
	if maxRows <= 0 {
		maxRows = s.Config.MaxRows
	}
	if f.IsTabular() {
		table, err := s.Backend.PreviewTabular(ctx, virtualPath, maxRows)
		if err != nil {
			return nil, err
		}
		return &DataPreview{Path: virtualPath, Table: table, Truncated: table.Truncated}, nil
	}
	if f.Kind != content.PayloadRaw {
		return nil, fmt.Errorf("%s: %w", virtualPath, notebook.ErrUnsupportedKind)
	}
	text, truncated := truncateRunes(f.Raw, MaxTextPreview)
	return &DataPreview{Path: virtualPath, Text: text, Truncated: truncated}, nil
}

func truncateRunes(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// Download returns the bytes and suggested file name for virtualPath.
// Tabular files come from the backend's data endpoint; with executed set
// a notebook's last executed copy is returned.
func (s *Service) Download(ctx context.Context, virtualPath string, executed bool) ([]byte, string, error) {
	f, err := s.File(ctx, virtualPath)
	if err != nil {
		return nil, "", err
	}
	name := path.Base(virtualPath)

	switch {
	case executed && f.IsNotebook():
		doc, err := s.Notebook(ctx, virtualPath, true)
		if err != nil {
			return nil, "", err
		}
		data, err := doc.Encode()
		return data, name, err
	case f.IsTabular():
		data, err := s.Backend.DownloadData(ctx, virtualPath)
		return data, name, err
	case f.Kind == content.PayloadRaw:
		return []byte(f.Raw), name, nil
	default:
		data, err := os.ReadFile(filepath.Join(s.Course.Root, filepath.FromSlash(virtualPath)))
		if err != nil {
			return nil, "", err
		}
		return data, name, nil
	}
}

// Close closes the service
func (s *Service) Close() error {
	var errs []error
	if s.Index != nil {
		errs = append(errs, s.Index.Close())
	}
	if s.Executions != nil {
		errs = append(errs, s.Executions.Close())
	}
	return errors.Join(errs...)
}

// SearchOption narrows a content search.
type SearchOption func(*search.Options)

func InChapter(id string) SearchOption {
	return func(o *search.Options) {
		o.Chapter = id
	}
}

func WithExt(ext string) SearchOption {
	return func(o *search.Options) {
		o.Ext = ext
	}
}

func WithLimit(limit int) SearchOption {
	return func(o *search.Options) {
		o.Limit = limit
	}
}
