package dataset

import (
	"errors"
	"fmt"
)

// ErrMissingColumn indicates a required column is absent from a source header.
var ErrMissingColumn = errors.New("required column missing")

// LoadError reports a source that could not be read or interpreted. It is
// fatal to initialization.
type LoadError struct {
	Source string // "metadata" or "measurements"
	Path   string
	Err    error
}

func (e *LoadError) Error() string {
	if e == nil {
		return "load failed"
	}
	return fmt.Sprintf("load %s source %s: %v", e.Source, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
