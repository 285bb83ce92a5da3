package position

import (
	"errors"
	"fmt"
)

// Code mirrors the device location API error codes
type Code int

const (
	PermissionDenied    Code = 1
	PositionUnavailable Code = 2
	Timeout             Code = 3
)

func (c Code) String() string {
	switch c {
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error is a location failure reported by a Source
type Error struct {
	Code    Code
	Message string
}

var (
	ErrPermissionDenied    = &Error{Code: PermissionDenied}
	ErrPositionUnavailable = &Error{Code: PositionUnavailable}
	ErrTimeout             = &Error{Code: Timeout}

	// ErrAlreadyWatching is returned when a tracker already owns an active watch
	ErrAlreadyWatching = errors.New("position watch already active")
	// ErrClosed is returned by sources that have been shut down
	ErrClosed = errors.New("position source closed")
)

// NewError creates a location error with a detail message
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "location error: " + e.Code.String()
	}
	return "location error: " + e.Code.String() + ": " + e.Message
}

// Is matches any location error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Terminal reports whether the error ends a watch subscription
func (e *Error) Terminal() bool {
	return e.Code == PermissionDenied
}

// Guidance returns a user-facing title and an actionable hint
func (e *Error) Guidance() (title, hint string) {
	switch e.Code {
	case PermissionDenied:
		return "Please enable location access for navigation features", "Check your browser or device settings"
	case PositionUnavailable:
		return "Unable to determine your current location", "Check your device GPS or network connection"
	case Timeout:
		return "Location request timed out", "Please try again or check your connection"
	default:
		return "Unable to access your location", "Please try again"
	}
}

// AsError extracts a location error from err, if any
func AsError(err error) (*Error, bool) {
	var locErr *Error
	if errors.As(err, &locErr) {
		return locErr, true
	}
	return nil, false
}
