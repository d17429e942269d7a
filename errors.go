package jdeserialize

import "fmt"

// ValidityError reports stream data that does not conform to the Object
// Serialization Stream Protocol, as opposed to an I/O failure of the
// underlying source.
type ValidityError struct {
	msg string
}

func (e *ValidityError) Error() string { return e.msg }

func validityErrorf(format string, args ...interface{}) error {
	return &ValidityError{msg: fmt.Sprintf(format, args...)}
}

// exceptionReadError signals that a serialized exception object was decoded
// inside a nested read. It propagates up the recursion, discarding the
// partially-built enclosing item, and is converted into an ExceptionState
// only at the top-level read loop.
type exceptionReadError struct {
	exception Content
}

func (e *exceptionReadError) Error() string {
	return "serialized exception read during stream"
}
