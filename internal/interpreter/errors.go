package interpreter

import "fmt"

// ErrorKind classifies why a command could not be interpreted.
type ErrorKind string

const (
	// Unparseable means the completion held no usable transaction object.
	Unparseable ErrorKind = "unparseable"
	// MissingAmount means the amount was absent, non-numeric or negative.
	MissingAmount ErrorKind = "missing_amount"
	// InvalidKind means the type was something other than income or expense.
	InvalidKind ErrorKind = "invalid_kind"
	// Timeout means the completion service did not answer in time.
	Timeout ErrorKind = "timeout"
	// ServiceFailure means the completion service returned an error.
	ServiceFailure ErrorKind = "service_failure"
)

// Error is returned by Interpret for every failure. All kinds are
// recoverable: the caller should ask the user to rephrase or try again.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("interpret: %s", e.Kind)
	}
	return fmt.Sprintf("interpret: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Kind, so callers can write
// errors.Is(err, &interpreter.Error{Kind: interpreter.Timeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage is a short explanation suitable for showing to the user.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case MissingAmount:
		return "Could not find an amount in your command. Please include how much, e.g. \"lunch 25000\"."
	case InvalidKind:
		return "Could not tell whether this is income or an expense. Please rephrase your command."
	case Timeout:
		return "The assistant took too long to respond. Please try again."
	case ServiceFailure:
		return "The assistant is unavailable right now. Please try again later."
	default:
		return "Could not process the command. Please try again with a clearer command."
	}
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
