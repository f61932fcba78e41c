// Package errors provides structured error types for deepforge.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrDenied       = errors.New("access denied")
	ErrEmptyBranch  = errors.New("branch has no commits")
	ErrStaleWrite   = errors.New("stale write")
	ErrExternalCall = errors.New("external call failed")
	ErrPersistence  = errors.New("persistence failure")
)

// MergeConflictError reports the file paths both branches modified since
// their common ancestor.
type MergeConflictError struct {
	Source string
	Target string
	Paths  []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflicts between %q and %q: %s",
		e.Source, e.Target, strings.Join(e.Paths, ", "))
}

func (e *MergeConflictError) Unwrap() error { return ErrConflict }

// StaleWriteError reports paths whose old content no longer matches the
// branch's current content.
type StaleWriteError struct {
	Branch string
	Paths  []string
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("stale write on branch %q: %s", e.Branch, strings.Join(e.Paths, ", "))
}

func (e *StaleWriteError) Unwrap() error { return ErrStaleWrite }

// IsNotFound returns true if the error wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true if the error wraps ErrConflict or ErrStaleWrite.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrStaleWrite)
}

// IsDenied returns true if the error wraps ErrDenied.
func IsDenied(err error) bool { return errors.Is(err, ErrDenied) }

// IsRetryable returns true for transient failures worth retrying, i.e.
// failed external calls.
func IsRetryable(err error) bool { return errors.Is(err, ErrExternalCall) }
