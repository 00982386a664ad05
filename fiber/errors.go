package fiber

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrComponentPanic wraps a panic raised by a function component.
	ErrComponentPanic = errors.New("fiber: component panicked")

	// ErrNoContainer is returned by Render without a container.
	ErrNoContainer = errors.New("fiber: no render container")
)

// CommitError reports the adapter failures of a commit. The commit ran to the
// end and the tree was promoted, so the host reflects a best-effort state.
type CommitError struct {
	Generation uint64
	Errs       []error
}

func (e *CommitError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("fiber: commit %d: %d host failure(s): %s", e.Generation, len(e.Errs), strings.Join(msgs, "; "))
}

func (e *CommitError) Unwrap() []error { return e.Errs }
