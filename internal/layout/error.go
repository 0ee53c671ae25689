package layout

import (
	"fmt"

	"monoc/internal/types"
)

// ErrorKind enumerates reasons a type has no layout.
type ErrorKind uint8

const (
	// ErrUnresolvedVar: a type variable survived type solving and nothing
	// fixed it at this use.
	ErrUnresolvedVar ErrorKind = iota + 1
	// ErrErroneousType: the solver marked the type as an error.
	ErrErroneousType
	// ErrUnknownType: the TypeID is invalid or a reserved union was never
	// defined.
	ErrUnknownType
	// ErrUnresolvedLambdaSet: a function type whose closure set is still a
	// variable.
	ErrUnresolvedLambdaSet
)

// Error reports why a layout could not be computed.
type Error struct {
	Kind ErrorKind
	Type types.TypeID
	Name string // variable name, when known
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ErrUnresolvedVar:
		if e.Name != "" {
			return fmt.Sprintf("type variable %q is unresolved (type#%d)", e.Name, e.Type)
		}
		return fmt.Sprintf("type variable is unresolved (type#%d)", e.Type)
	case ErrErroneousType:
		return fmt.Sprintf("type is erroneous (type#%d)", e.Type)
	case ErrUnresolvedLambdaSet:
		return fmt.Sprintf("function type has no resolved lambda set (type#%d)", e.Type)
	case ErrUnknownType:
		return fmt.Sprintf("unknown type#%d", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
