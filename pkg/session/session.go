package session

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-coursebook/pkg/backend"
	"github.com/mattsolo1/grove-coursebook/pkg/notebook"
)

// Phase is where a session is in its load/run lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseRunning
	PhaseLoadError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseRunning:
		return "running"
	case PhaseLoadError:
		return "load-error"
	}
	return "unknown"
}

// Mode selects which document is presented.
type Mode int

const (
	ModeOriginal Mode = iota
	ModeEditing
)

func (m Mode) String() string {
	if m == ModeEditing {
		return "editing"
	}
	return "original"
}

// Backend is the part of the execution service a session needs.
type Backend interface {
	FetchNotebook(ctx context.Context, virtualPath string) (*notebook.Document, error)
	ExecutePath(ctx context.Context, virtualPath string) (*backend.ExecutionResult, error)
	ExecuteContent(ctx context.Context, virtualPath string, doc *notebook.Document) (*backend.ExecutionResult, error)
}

// ResultStore keeps the latest executed document per path.
type ResultStore interface {
	SaveExecuted(ctx context.Context, virtualPath string, doc *notebook.Document) error
}

// State is a snapshot of a session. Documents are private copies.
type State struct {
	Path      string
	Original  *notebook.Document
	Draft     *notebook.Document
	Mode      Mode
	Phase     Phase
	LastError error
}

// Session owns the original and draft of one selected notebook.
//
// Original is what was last loaded or executed. Draft starts as a deep
// copy of it and collects edits; it never shares storage with Original.
// All methods are safe for concurrent use; the lock is never held across
// a backend call.
type Session struct {
	backend Backend
	store   ResultStore
	logger  *logrus.Entry

	mu       sync.Mutex
	gen      uint64
	path     string
	original *notebook.Document
	draft    *notebook.Document
	mode     Mode
	phase    Phase
	lastErr  error
}

// Option configures a Session.
type Option func(*Session)

// WithResultStore records every executed document in store.
func WithResultStore(store ResultStore) Option {
	return func(s *Session) { s.store = store }
}

// WithLogger sets the session logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger.WithField("component", "session")
		}
	}
}

// New returns an idle session.
func New(b Backend, opts ...Option) *Session {
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := &Session{backend: b, logger: logrus.NewEntry(l)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load discards all state and fetches the notebook at virtualPath. If
// another Load starts before the fetch returns, the response is dropped
// and ErrSuperseded is returned.
func (s *Session) Load(ctx context.Context, virtualPath string) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.path = virtualPath
	s.original, s.draft = nil, nil
	s.mode = ModeOriginal
	s.phase = PhaseLoading
	s.lastErr = nil
	s.mu.Unlock()

	log := s.logger.WithField("path", virtualPath)
	log.Debug("Loading notebook")
	doc, err := s.backend.FetchNotebook(ctx, virtualPath)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		log.Debug("Dropping stale notebook response")
		return ErrSuperseded
	}
	if err != nil {
		s.phase = PhaseLoadError
		s.lastErr = &LoadError{Path: virtualPath, Err: err}
		log.WithError(err).Warn("Notebook load failed")
		return s.lastErr
	}
	s.original = doc
	s.draft = doc.Clone()
	s.phase = PhaseLoaded
	log.WithField("cells", len(doc.Cells)).Debug("Notebook loaded")
	return nil
}

// Reset returns the session to idle and drops any in-flight response.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.path = ""
	s.original, s.draft = nil, nil
	s.mode = ModeOriginal
	s.phase = PhaseIdle
	s.lastErr = nil
}

// SetEditing switches between presenting the original and the draft.
// Document content is never touched.
func (s *Session) SetEditing(editing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if editing && s.draft == nil {
		return ErrNoDocument
	}
	if editing {
		s.mode = ModeEditing
	} else {
		s.mode = ModeOriginal
	}
	return nil
}

// EditCellSource replaces the source of draft cell i. The previous draft
// value is left intact and other cells keep their values. An index out
// of range is ignored.
func (s *Session) EditCellSource(i int, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return ErrNoDocument
	}
	s.draft = s.draft.WithCellSource(i, source)
	return nil
}

// Run executes the notebook. In editing mode the draft content is sent;
// otherwise the backend re-reads the stored notebook by path.
//
// When the backend answers with a document, both original and draft are
// replaced by it and the phase returns to loaded. If the answer also
// reports a cell error, a *RunError with Applied set is returned and
// kept as the session's last error. A transport failure leaves the
// documents untouched, returns the phase to its pre-run value and
// records the *RunError as the last error.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	switch s.phase {
	case PhaseRunning:
		s.mu.Unlock()
		return ErrRunInFlight
	case PhaseIdle, PhaseLoading:
		s.mu.Unlock()
		return ErrNotReady
	}
	gen := s.gen
	prev := s.phase
	virtualPath := s.path
	var submit *notebook.Document
	if s.mode == ModeEditing && s.draft != nil {
		submit = s.draft.Clone()
	}
	s.phase = PhaseRunning
	s.lastErr = nil
	s.mu.Unlock()

	log := s.logger.WithFields(logrus.Fields{"path": virtualPath, "edited": submit != nil})
	log.Debug("Running notebook")

	var (
		res *backend.ExecutionResult
		err error
	)
	if submit != nil {
		res, err = s.backend.ExecuteContent(ctx, virtualPath, submit)
	} else {
		res, err = s.backend.ExecutePath(ctx, virtualPath)
	}
	if err == nil && (res == nil || res.Notebook == nil) {
		err = backend.ErrNoNotebook
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		log.Debug("Dropping stale run response")
		return ErrSuperseded
	}
	if err != nil {
		s.phase = prev
		runErr := &RunError{Path: virtualPath, Err: err}
		s.lastErr = runErr
		s.mu.Unlock()
		log.WithError(err).Warn("Notebook run failed")
		return runErr
	}

	s.original = res.Notebook
	s.draft = res.Notebook.Clone()
	s.phase = PhaseLoaded
	var runErr *RunError
	if res.Error != "" {
		runErr = &RunError{Path: virtualPath, Message: res.Error, LastCell: res.LastCell, Applied: true}
		s.lastErr = runErr
	}
	executed := res.Notebook.Clone()
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveExecuted(ctx, virtualPath, executed); err != nil {
			log.WithError(err).Warn("Failed to cache executed notebook")
		}
	}
	if runErr != nil {
		log.WithField("last_cell", res.LastCell).Info("Notebook ran with errors")
		return runErr
	}
	log.Debug("Notebook run complete")
	return nil
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Path:      s.path,
		Original:  s.original.Clone(),
		Draft:     s.draft.Clone(),
		Mode:      s.mode,
		Phase:     s.phase,
		LastError: s.lastErr,
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Path returns the path of the selected notebook.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Displayed returns a copy of the document currently presented: the
// draft while editing, the original otherwise.
func (s *Session) Displayed() *notebook.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeEditing {
		return s.draft.Clone()
	}
	return s.original.Clone()
}

// ExportName is the file name used when saving the presented document:
// "<stem>_edited.ipynb" while editing, "<stem>_current.ipynb" otherwise.
func (s *Session) ExportName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := path.Base(s.path)
	if strings.HasSuffix(strings.ToLower(base), ".ipynb") {
		base = base[:len(base)-len(".ipynb")]
	}
	if s.mode == ModeEditing {
		return base + "_edited.ipynb"
	}
	return base + "_current.ipynb"
}

// DocumentApplied reports whether err is a run failure that still
// applied a document returned by the backend.
func DocumentApplied(err error) bool {
	var re *RunError
	return errors.As(err, &re) && re.Applied
}
