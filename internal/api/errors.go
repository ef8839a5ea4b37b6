package api

import (
	"errors"
	"fmt"
)

// RemoteError is a structured error returned by the remote store: the
// request reached the server and came back non-2xx, possibly with a
// message in the body. Anything else (DNS, refused connection, timeout)
// stays a plain transport error.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error: status %d", e.Status)
	}
	return fmt.Sprintf("remote error: status %d: %s", e.Status, e.Message)
}

// UserMessage returns the text to show the user for a failed remote call:
// the server-supplied message when there is one, a generic description
// otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return "request failed, please try again"
}
