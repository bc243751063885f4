package outcome

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"drg/client/common"
	"drg/config"
	"drg/pkg/helper"
	"drg/trust"
)

type Kind int

const (
	KindUnexpectedClient Kind = iota
	KindInvalidInput
	KindNotFound
	KindService
	KindConfigIssue
)

var kindToStr = map[Kind]string{
	KindUnexpectedClient: "unexpected client error",
	KindInvalidInput:     "invalid input",
	KindNotFound:         "not found",
	KindService:          "service error",
	KindConfigIssue:      "configuration issue",
}

func (k Kind) String() string { return kindToStr[k] }

// Error classified operation error. Only KindService carries a http status.
type Error struct {
	Kind    Kind
	Message string
	Status  int

	cause error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}

	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// NewError classify err as kind
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), cause: err}
}

func InvalidInput(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Service(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Kind: KindService, Message: message, Status: status}
}

func UnexpectedClient(err error) *Error {
	return &Error{Kind: KindUnexpectedClient, Message: err.Error(), cause: err}
}

func ConfigIssue(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfigIssue, Message: fmt.Sprintf(format, args...)}
}

// FromError classify error
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var httpErr *common.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Code == http.StatusNotFound {
			return &Error{Kind: KindNotFound, Message: httpErr.Error(), cause: err}
		}
		return &Error{Kind: KindService, Message: httpErr.Error(), Status: httpErr.Code, cause: err}
	}

	kind := KindUnexpectedClient
	switch {
	case errors.Is(err, config.ErrContextNotFound):
		kind = KindNotFound
	case errors.Is(err, config.ErrContextExists),
		errors.Is(err, config.ErrNoApplication),
		errors.Is(err, trust.ErrUnknownAlgorithm),
		errors.Is(err, trust.ErrUnsupportedKey),
		helper.IsValidationError(err):
		kind = KindInvalidInput
	case errors.Is(err, config.ErrConfigNotFound),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrNoActiveContext),
		errors.Is(err, trust.ErrKeyMismatch):
		kind = KindConfigIssue
	}

	return &Error{Kind: kind, Message: err.Error(), cause: err}
}

// IsNotFound returns true if err is classified as not found
func IsNotFound(err error) bool { return err != nil && FromError(err).Kind == KindNotFound }

// StatusCode returns http status of service error or 0
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	return FromError(err).Status
}
