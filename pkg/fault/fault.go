package fault

import "errors"

// Kind classifies why an operation was rejected.
type Kind uint8

const (
	Unknown Kind = iota
	Validation
	State
	Auth
	Arithmetic
	Resource
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case State:
		return "state"
	case Auth:
		return "auth"
	case Arithmetic:
		return "arithmetic"
	case Resource:
		return "resource"
	case NotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is a classified sentinel. Values are compared by identity, so
// errors.Is works on wrapped sentinels.
type Error struct {
	kind Kind
	msg  string
}

func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return Unknown
}
