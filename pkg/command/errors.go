package command

import "fmt"

// ErrCode identifies a structured command error. Dispatch-time codes are
// delivered through the manager's error sink; registration-time codes are
// carried by RegistrationError values returned to the caller.
type ErrCode int

const (
	ErrUnknown ErrCode = iota
	ErrEmptyCommand
	ErrInvalidCommand
	ErrSyntaxError
	ErrUnknownCommand
	ErrMissingExecuter
	ErrInsufficientAuth
	ErrIncompleteArgs
	ErrExtraneousArgs
	ErrUnsupportedArg
	ErrBufferOverflow
	ErrExecutionFailed
	ErrExecutionAborted
	ErrPostProcessingFailed
	ErrUnresolvedFailure
	ErrNameCollision
	ErrDuplicateCommand
	ErrUnknownTypeSpecifier
)

func (c ErrCode) String() string {
	switch c {
	case ErrEmptyCommand:
		return "empty-command"
	case ErrInvalidCommand:
		return "invalid-command"
	case ErrSyntaxError:
		return "syntax-error"
	case ErrUnknownCommand:
		return "unknown-command"
	case ErrMissingExecuter:
		return "missing-executer"
	case ErrInsufficientAuth:
		return "insufficient-auth"
	case ErrIncompleteArgs:
		return "incomplete-args"
	case ErrExtraneousArgs:
		return "extraneous-args"
	case ErrUnsupportedArg:
		return "unsupported-arg"
	case ErrBufferOverflow:
		return "buffer-overflow"
	case ErrExecutionFailed:
		return "execution-failed"
	case ErrExecutionAborted:
		return "execution-aborted"
	case ErrPostProcessingFailed:
		return "post-processing-failed"
	case ErrUnresolvedFailure:
		return "unresolved-failure"
	case ErrNameCollision:
		return "name-collision"
	case ErrDuplicateCommand:
		return "duplicate-command"
	case ErrUnknownTypeSpecifier:
		return "unknown-type-specifier"
	default:
		return "unknown"
	}
}

// RegistrationError reports a configuration mistake made by the caller of the
// registration API: duplicate names, hash collisions, bad argument specifiers
// or out-of-range argument counts. These surface immediately as errors rather
// than through the dispatch error sink.
type RegistrationError struct {
	Code    ErrCode
	Command string
	Message string
}

func (e *RegistrationError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("command %q: %s: %s", e.Command, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func regErrorf(code ErrCode, name, format string, args ...any) error {
	return &RegistrationError{Code: code, Command: name, Message: fmt.Sprintf(format, args...)}
}
