package staging

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned by transport operations the protocol cannot
// perform, such as free-space queries over FTP.
var ErrUnsupported = errors.New("operation not supported by transport")

// RemoteNotFoundError indicates a required remote directory or file is absent
// and creation was not requested.
type RemoteNotFoundError struct {
	URL string
}

func (e *RemoteNotFoundError) Error() string {
	return fmt.Sprintf("remote not found: %s", e.URL)
}

// AttemptError records one failed credential attempt.
type AttemptError struct {
	Description string
	Err         error
}

// ConnectionError indicates that every credential attempt failed. It carries
// one entry per attempt so the true cause is never masked by the last one.
type ConnectionError struct {
	Host     string
	Attempts []AttemptError
}

func (e *ConnectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d authentication attempts to %s failed:", len(e.Attempts), e.Host)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s: %v", a.Description, a.Err)
	}
	return b.String()
}

// PreconditionError indicates the local package failed a required check
// before any transfer began.
type PreconditionError struct {
	Check string
	Path  string
	Hint  string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("%s check failed for %s", e.Check, e.Path)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}
