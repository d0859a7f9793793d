package server

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds of recoverable command failures. Each one becomes an error reply
// and the connection keeps processing the next command
var (
	ErrWrongArity      = errors.New("wrong number of arguments")
	ErrSyntax          = errors.New("syntax error")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownCommand  = errors.New("unknown command")
)

// CommandError is a failure reported back to the client
type CommandError struct {
	Kind error  // one of the Err* kinds above
	Msg  string // text sent after the "ERR " prefix
}

func (e *CommandError) Error() string {
	return e.Msg
}

func (e *CommandError) Unwrap() error {
	return e.Kind
}

func errWrongArity(name string) error {
	return &CommandError{
		Kind: ErrWrongArity,
		Msg:  fmt.Sprintf("wrong number of arguments for '%s' command", strings.ToLower(name)),
	}
}

func errUnknownCommand(name string) error {
	return &CommandError{
		Kind: ErrUnknownCommand,
		Msg:  fmt.Sprintf("unknown command '%s'", name),
	}
}

var (
	errSyntax        = &CommandError{Kind: ErrSyntax, Msg: "syntax error"}
	errNotInteger    = &CommandError{Kind: ErrInvalidArgument, Msg: "value is not an integer or out of range"}
	errInvalidExpire = &CommandError{Kind: ErrInvalidArgument, Msg: "invalid expire time in 'set' command"}
)

// replyText renders err as the text of an error reply
func replyText(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return "ERR " + cmdErr.Msg
	}
	return "ERR " + err.Error()
}
