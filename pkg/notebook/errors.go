package notebook

import "errors"

// ErrUnsupportedKind marks a cell or output variant outside the
// recognised set. Callers render a placeholder for it.
var ErrUnsupportedKind = errors.New("unsupported kind")

// ParseError reports a document that could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "unreadable notebook: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
