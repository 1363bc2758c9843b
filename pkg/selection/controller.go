// Package selection tracks what a reader is looking at: the search
// query, which tree nodes are open, and the selected file with its
// notebook session.
package selection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-coursebook/pkg/content"
	"github.com/mattsolo1/grove-coursebook/pkg/search"
	"github.com/mattsolo1/grove-coursebook/pkg/session"
)

// ErrNotFound is returned by SelectPath for a path not in the tree.
var ErrNotFound = errors.New("file not found in course")

// ChapterSource provides the current chapter tree.
type ChapterSource interface {
	Chapters(ctx context.Context) ([]content.Chapter, error)
}

// Controller holds the browsing state. It is safe for concurrent use.
type Controller struct {
	chapters ChapterSource
	backend  session.Backend
	opts     []session.Option
	logger   *logrus.Entry

	mu       sync.Mutex
	query    string
	open     map[string]bool
	selected *content.File
	session  *session.Session
}

// Option configures a Controller.
type Option func(*Controller)

// WithSessionOptions is applied to every session the controller creates.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *Controller) { c.opts = append(c.opts, opts...) }
}

// WithLogger sets the controller logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger.WithField("component", "selection")
		}
	}
}

// New creates a controller with nothing selected and every node closed.
func New(chapters ChapterSource, b session.Backend, opts ...Option) *Controller {
	l := logrus.New()
	l.SetOutput(io.Discard)
	c := &Controller{
		chapters: chapters,
		backend:  b,
		logger:   logrus.NewEntry(l),
		open:     map[string]bool{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetQuery stores q and returns the filtered tree. For a non-empty query
// every key in the result's expand set is opened; other open nodes keep
// their state.
func (c *Controller) SetQuery(ctx context.Context, q string) (search.Result, error) {
	chapters, err := c.chapters.Chapters(ctx)
	if err != nil {
		return search.Result{}, fmt.Errorf("load chapters: %w", err)
	}
	res := search.Filter(chapters, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
	for key := range res.ExpandKeys {
		c.open[key] = true
	}
	return res, nil
}

// Visible returns the tree filtered by the current query.
func (c *Controller) Visible(ctx context.Context) (search.Result, error) {
	chapters, err := c.chapters.Chapters(ctx)
	if err != nil {
		return search.Result{}, fmt.Errorf("load chapters: %w", err)
	}
	return search.Filter(chapters, c.Query()), nil
}

// Query returns the current query.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Toggle flips the open state of key and returns the new state.
func (c *Controller) Toggle(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open[key] = !c.open[key]
	return c.open[key]
}

// IsOpen reports whether key is open.
func (c *Controller) IsOpen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open[key]
}

// OpenKeys returns the open keys in sorted order.
func (c *Controller) OpenKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.open))
	for k, v := range c.open {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Select makes f the selected file. Any previous session is discarded.
// For a notebook a new session is created and loaded; the load error,
// if any, is returned and also kept in the session state.
func (c *Controller) Select(ctx context.Context, f *content.File) (*session.Session, error) {
	var s *session.Session
	if f != nil && f.IsNotebook() {
		s = session.New(c.backend, c.opts...)
	}

	c.mu.Lock()
	c.selected = f
	c.session = s
	c.mu.Unlock()

	if f == nil {
		return nil, nil
	}
	c.logger.WithFields(logrus.Fields{"path": f.Path, "notebook": s != nil}).Debug("Selected file")
	if s == nil {
		return nil, nil
	}
	return s, s.Load(ctx, f.Path)
}

// SelectPath selects the file at virtualPath in the current tree.
func (c *Controller) SelectPath(ctx context.Context, virtualPath string) (*content.File, *session.Session, error) {
	chapters, err := c.chapters.Chapters(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load chapters: %w", err)
	}
	f := content.FindFile(chapters, virtualPath)
	if f == nil {
		return nil, nil, fmt.Errorf("%s: %w", virtualPath, ErrNotFound)
	}
	s, err := c.Select(ctx, f)
	return f, s, err
}

// Selected returns the selected file, or nil.
func (c *Controller) Selected() *content.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Session returns the active notebook session, or nil.
func (c *Controller) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Clear drops the selection and its session.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
	c.session = nil
}

// Home resets the query, closes every node and clears the selection.
func (c *Controller) Home() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = ""
	c.open = map[string]bool{}
	c.selected = nil
	c.session = nil
}
