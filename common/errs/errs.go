package errs

import (
	"github.com/pkg/errors"
)

const (
	CodeDuplicateStream     = 1001
	CodeStreamNotExist      = 1002
	CodeConnectURL          = 2001
	CodeHandshake           = 2002
	CodeNoVideoStream       = 2003
	CodeUnsupportedProtocol = 2004
	CodeConnectionLost      = 2005
	CodeInvalidConfig       = 3001
	CodeInvalidPayload      = 4001
	CodeFrameTooLarge       = 4002
	CodeDecoderUnavailable  = 5001
	CodeUnknown             = 9999
)

var (
	ErrDuplicateStream     = New(CodeDuplicateStream, "duplicate stream")
	ErrStreamNotExist      = New(CodeStreamNotExist, "stream not exist")
	ErrConnectURL          = New(CodeConnectURL, "connect url error")
	ErrHandshake           = New(CodeHandshake, "handshake error")
	ErrNoVideoStream       = New(CodeNoVideoStream, "no video stream")
	ErrUnsupportedProtocol = New(CodeUnsupportedProtocol, "unsupported protocol")
	ErrConnectionLost      = New(CodeConnectionLost, "connection lost")
	ErrInvalidConfig       = New(CodeInvalidConfig, "invalid config")
	ErrInvalidPayload      = New(CodeInvalidPayload, "invalid payload")
	ErrFrameTooLarge       = New(CodeFrameTooLarge, "frame too large")
	ErrDecoderUnavailable  = New(CodeDecoderUnavailable, "decoder unavailable")
)

const (
	Success = "success"
)

type Error struct {
	Code int32
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func New(code int32, msg string) error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Code returns the code of the innermost coded error, unwrapping pkg/errors wrappers.
func Code(e error) int32 {
	if e == nil {
		return 0
	}
	err, ok := errors.Cause(e).(*Error)
	if !ok {
		return CodeUnknown
	}

	if err == (*Error)(nil) {
		return 0
	}
	return err.Code
}

func Msg(e error) string {
	if e == nil {
		return Success
	}
	err, ok := errors.Cause(e).(*Error)
	if !ok {
		return "unknown error: " + e.Error()
	}

	if err == (*Error)(nil) {
		return Success
	}

	return err.Msg
}

// Is reports whether the cause of err is target.
func Is(err, target error) bool {
	return errors.Cause(err) == target
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
