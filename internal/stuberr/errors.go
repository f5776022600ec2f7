// Package stuberr defines the failure kinds of the stub build pipeline.
//
// Every stage returns a *Error whose Kind is one of the sentinel values
// below, so callers can branch with errors.Is and recover the group, path
// and subprocess diagnostics with errors.As.
package stuberr

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds.
var (
	ErrHeadersNotFound = errors.New("stubgen: headers not found")
	ErrExtraction      = errors.New("stubgen: header extraction failed")
	ErrSynthesis       = errors.New("stubgen: stub synthesis failed")
	ErrCompilation     = errors.New("stubgen: compilation failed")
	ErrArchive         = errors.New("stubgen: archive creation failed")
	ErrValidation      = errors.New("stubgen: archive validation failed")
)

// Error carries the context an operator needs to act on a failed stage.
type Error struct {
	Kind     error  // one of the Err* sentinels
	Group    string // header group identifier, empty when not group specific
	Path     string // file the stage was working on
	ExitCode int    // subprocess exit status, 0 when no subprocess was involved
	Output   string // captured subprocess diagnostics
	Err      error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Group != "" {
		fmt.Fprintf(&sb, " [group %s]", e.Group)
	}
	if e.Path != "" {
		fmt.Fprintf(&sb, " %s", e.Path)
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&sb, " (exit status %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&sb, "\n%s", out)
	}
	return sb.String()
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New builds an *Error of the given kind.
func New(kind error, group, path string, err error) *Error {
	return &Error{Kind: kind, Group: group, Path: path, Err: err}
}

// WithGroup fills in the group of a *Error that was raised without one.
// Errors of any other type are returned unchanged.
func WithGroup(err error, group string) error {
	var se *Error
	if errors.As(err, &se) && se.Group == "" {
		se.Group = group
	}
	return err
}
