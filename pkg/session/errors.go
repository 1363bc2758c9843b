package session

import (
	"errors"
	"fmt"
)

var (
	// ErrRunInFlight is returned by Run while a previous run is pending.
	ErrRunInFlight = errors.New("a run is already in progress")
	// ErrNoDocument is returned by operations that need a loaded draft.
	ErrNoDocument = errors.New("no notebook loaded")
	// ErrNotReady is returned by Run before a notebook has been selected
	// or while it is still loading.
	ErrNotReady = errors.New("notebook is not ready to run")
	// ErrSuperseded is returned when a response arrives for a load that
	// is no longer current; the response is discarded.
	ErrSuperseded = errors.New("request superseded by a newer selection")
)

// LoadError reports a notebook that could not be fetched or parsed. The
// session holds no document afterwards.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// RunError reports a failed execution. When Applied is set the backend
// still returned a document and it replaced the session's content; the
// error is an annotation on that document, e.g. a cell that raised.
type RunError struct {
	Path     string
	Message  string // error reported by the backend alongside a document
	LastCell int
	Applied  bool
	Err      error // transport failure; nil when Applied
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("run %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("run %s: %s", e.Path, e.Message)
}

func (e *RunError) Unwrap() error { return e.Err }
