// Package failure defines the typed errors returned across component
// boundaries of the headline pipeline.
package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNetwork     Kind = "network"
	KindParse       Kind = "parse"
	KindValidation  Kind = "validation"
	KindModelLoad   Kind = "model_load"
	KindPersistence Kind = "persistence"
	// KindPanic marks an adapter that crashed instead of returning an error.
	KindPanic       Kind = "panic"
)

var (
	// ErrNoArticles marks a listing that produced zero usable records.
	ErrNoArticles = errors.New("no valid articles found")
	// ErrNoContent marks a page without enough extractable text.
	ErrNoContent = errors.New("no content found")
)

// Error is the failure value every adapter, classifier and sink returns.
type Error struct {
	Kind   Kind
	Source string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Source != "" {
		prefix = e.Source + ": " + prefix
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the failure must abort the whole run.
func (e *Error) Fatal() bool {
	return e.Kind == KindModelLoad || e.Kind == KindPersistence
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Network(msg string, err error) *Error     { return newError(KindNetwork, msg, err) }
func Parse(msg string, err error) *Error       { return newError(KindParse, msg, err) }
func Validation(msg string, err error) *Error  { return newError(KindValidation, msg, err) }
func ModelLoad(msg string, err error) *Error   { return newError(KindModelLoad, msg, err) }
func Persistence(msg string, err error) *Error { return newError(KindPersistence, msg, err) }

// WithSource returns a copy of e attributed to source.
func (e *Error) WithSource(source string) *Error {
	c := *e
	c.Source = source
	return &c
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsFatal reports whether err carries a run-aborting failure.
func IsFatal(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Fatal()
}

// Wrap converts an arbitrary error into an *Error of the given kind unless
// it already is one.
func Wrap(kind Kind, msg string, err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return newError(kind, msg, err)
}
