package script

import (
	"errors"
	"fmt"
)

// ErrMalformedLine matches every *MalformedLineError via errors.Is.
var ErrMalformedLine = errors.New("malformed line")

// MalformedLineError reports a script line that could not be parsed.
type MalformedLineError struct {
	Line    int    // 1-based line number
	Content string // line as read, without trailing newline
	Reason  string
	Err     error // underlying cause, may be nil
}

func (e *MalformedLineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d %q: %s: %v", e.Line, e.Content, e.Reason, e.Err)
	}
	return fmt.Sprintf("line %d %q: %s", e.Line, e.Content, e.Reason)
}

func (e *MalformedLineError) Unwrap() error { return e.Err }

func (e *MalformedLineError) Is(target error) bool { return target == ErrMalformedLine }
