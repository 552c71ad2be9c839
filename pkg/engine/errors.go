package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput wraps a failure that aborted a whole evaluation pass.
	ErrMalformedInput = errors.New("malformed input")
	// ErrPassageNotFound is returned by ApplyPassage for an unknown id.
	ErrPassageNotFound = errors.New("passage not found")
)

// ErrorKind classifies recoverable directive errors.
type ErrorKind string

const (
	// Malformed directives have bad shorthand or miss a required argument.
	Malformed ErrorKind = "malformed"
	// Policy violations break a structural rule such as nested batches.
	Policy ErrorKind = "policy"
	// Lookup failures name a checkpoint, save or passage that does not exist.
	Lookup ErrorKind = "lookup"
	// Grammar errors come from eval statements outside the supported subset.
	Grammar ErrorKind = "grammar"
)

// DirectiveError is one entry of the visible error list.
type DirectiveError struct {
	Kind      ErrorKind `json:"kind"`
	Directive string    `json:"directive"`
	Message   string    `json:"message"`
}

func (e *DirectiveError) Error() string {
	return e.Message
}

func newDirectiveError(kind ErrorKind, directive, format string, args ...any) *DirectiveError {
	return &DirectiveError{Kind: kind, Directive: directive, Message: fmt.Sprintf(format, args...)}
}
