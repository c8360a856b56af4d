package backend

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

var (
	ErrCompile      = errors.Base("compile failed")
	ErrQueryFailure = errors.Base("backend query failed")
	ErrUnknown      = errors.Base("unknown backend")
)

// CompileError is returned by Compile when no analyzable snapshot could be built.
type CompileError struct {
	Backend string
	Detail  string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", ErrCompile, e.Backend, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", ErrCompile, e.Backend, e.Detail)
}

func (e *CompileError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCompile, e.Err}
	}
	return []error{ErrCompile}
}

// QueryError wraps a failed hover or completion lookup.
func QueryError(op string, offset int, err error) error {
	return errors.Errorf("%w: %s at %d: %w", ErrQueryFailure, op, offset, err)
}
