// Package remote talks to the remote Bible source. The engine treats it as
// an opaque fetch-by-reference service; any transport or parse failure
// surfaces as *Error.
package remote

import (
	"errors"
	"fmt"
)

// Verse is a transient value fetched from the remote service.
type Verse struct {
	BookID  string `json:"book_id"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

// Error wraps any transport or parse failure talking to the remote source.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote: %s: %v", e.Message, e.Err)
	}
	return "remote: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRemoteError reports whether err originated in the remote source.
func IsRemoteError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}
