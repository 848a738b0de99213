package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrRemoteUnavailable = errors.New("backend unavailable")
	ErrRemoteRejected    = errors.New("backend rejected request")
	ErrBusy              = errors.New("a question is already in flight for this chat")
)

// RemoteError describes a failed backend call. It matches ErrRemoteUnavailable
// or ErrRemoteRejected through errors.Is.
type RemoteError struct {
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + " failed"
}

func (e *RemoteError) Unwrap() error { return e.Err }

func IsUnavailable(err error) bool { return errors.Is(err, ErrRemoteUnavailable) }

func IsRejected(err error) bool { return errors.Is(err, ErrRemoteRejected) }

// StatusOf returns the HTTP status carried by a RemoteError, or 0.
func StatusOf(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
