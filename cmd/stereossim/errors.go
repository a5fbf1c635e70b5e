package main

import (
	"errors"
	"fmt"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1
	exitFailure = 2
)

// usageError marks errors detected before the measurement starts.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by a command to the process status.
// Errors cobra raises itself (unknown flags, argument counts) are usage
// errors too; they never reach RunE.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	var fe *failureError
	if errors.As(err, &fe) {
		return exitFailure
	}
	return exitUsage
}

// failureError marks errors raised while measuring.
type failureError struct{ err error }

func (e *failureError) Error() string { return e.err.Error() }
func (e *failureError) Unwrap() error { return e.err }

func failure(err error) error {
	if err == nil {
		return nil
	}
	return &failureError{err: err}
}
