package entity

import "errors"

var (
	// ErrNotFound covers both true absence and denied access to private
	// content. The two are deliberately indistinguishable so requests
	// cannot probe for the existence of other users' files.
	ErrNotFound = errors.New("not found")

	ErrParentNotFound  = errors.New("parent not found")
	ErrParentNotFolder = errors.New("parent is not a folder")
	ErrFolderNoContent = errors.New("a folder doesn't have content")
	ErrEmailTaken      = errors.New("email already registered")
)

// ValidationError reports a missing or invalid request field. The message
// is client-facing.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Invalid builds a ValidationError with the given client-facing message.
func Invalid(msg string) error {
	return &ValidationError{Msg: msg}
}
