package eval

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies an interpreter fault.
type Code int

// Stable fault codes - do not change values.
const (
	CodeUseAfterFree   Code = 2001 // RC2001: use after free
	CodeDoubleFree     Code = 2002 // RC2002: double free
	CodeInvalidHandle  Code = 2003 // RC2003: invalid handle
	CodeLeak           Code = 2004 // RC2004: heap leak detected
	CodeUnboundSymbol  Code = 2101 // RC2101: read of an unbound symbol
	CodeBadIR          Code = 2102 // RC2102: malformed IR
	CodeUnreachable    Code = 2103 // RC2103: unreachable executed outside a cleanup
	CodeStepLimit      Code = 2201 // RC2201: step budget exhausted
	CodeStackOverflow  Code = 2202 // RC2202: call depth exceeded
	CodeUnknownProc    Code = 2203 // RC2203: call to a procedure that does not exist
)

// String returns the code as "RC2001".
func (c Code) String() string {
	return fmt.Sprintf("RC%d", int(c))
}

// Error is a fault of the interpreted program's memory discipline or of
// the IR itself, as opposed to a Crash the program raises on purpose.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("eval %s: %s", e.Code, e.Message)
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func fault(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Crash is a runtime error raised by the program: a failed checked
// operation or an explicit Error statement. Backtrace lists the procedures
// it unwound through, innermost first.
type Crash struct {
	Message   string
	Backtrace []string
}

func (c *Crash) Error() string {
	if len(c.Backtrace) == 0 {
		return "crash: " + c.Message
	}
	return "crash: " + c.Message + " (in " + strings.Join(c.Backtrace, " <- ") + ")"
}

// errUnreachable signals that a cleanup block finished.
var errUnreachable = errors.New("eval: unreachable")
