// Package errs defines the error kinds shared by every domain package.
// Domain sentinels are created with New so transports can classify them
// with errors.Is against a kind while still reporting the specific code.
package errs

import "errors"

var (
	ErrValidation     = errors.New("validation_error")
	ErrConfiguration  = errors.New("configuration_error")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyDecided = errors.New("already_decided")
	ErrPermission     = errors.New("permission_denied")
	ErrNotFound       = errors.New("not_found")
)

type codedError struct {
	kind error
	code string
}

func (e *codedError) Error() string { return e.code }

func (e *codedError) Unwrap() error { return e.kind }

// New returns a sentinel identified by code that matches kind under errors.Is.
func New(kind error, code string) error {
	return &codedError{kind: kind, code: code}
}

// Code returns the most specific code carried by err, or the kind name.
func Code(err error) string {
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ""
}

// Kind returns the kind err belongs to, or nil when it carries none.
func Kind(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

var kinds = []error{ErrValidation, ErrConfiguration, ErrConflict, ErrAlreadyDecided, ErrPermission, ErrNotFound}
