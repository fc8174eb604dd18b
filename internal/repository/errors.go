package repository

import (
	"errors"
	"strings"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("repository: not found")

// Rejection is returned when the store refuses a change (constraint violation,
// invalid state transition, failed token check). Its messages are safe to show.
type Rejection struct {
	Messages []string
}

// Error implements error.
func (r *Rejection) Error() string {
	if r == nil || len(r.Messages) == 0 {
		return "repository: rejected"
	}
	return strings.Join(r.Messages, "; ")
}

// Reject builds a Rejection error from the provided messages.
func Reject(messages ...string) error {
	copied := make([]string, 0, len(messages))
	for _, m := range messages {
		if m != "" {
			copied = append(copied, m)
		}
	}
	return &Rejection{Messages: copied}
}

// AsRejection extracts a Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// First returns the first message, or "" when none were recorded.
func (r *Rejection) First() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0]
}
