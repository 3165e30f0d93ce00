package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/msniranjan18/chit-chat-client/pkg/models"
)

// FallbackMessage is shown when a failure carries no usable server message.
const FallbackMessage = "Something went wrong. Please try again."

const transportMessage = "Unable to reach the server. Check your connection."

// ErrMissingPeerID is returned before any request is made when a
// peer-scoped call is given an empty identifier.
var ErrMissingPeerID = errors.New("api: peer id is required")

type Kind int

const (
	KindTransport Kind = iota + 1
	KindValidation
	KindAuth
	KindServer
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that fails after the request was
// built. Message is safe to show to a user.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api %s error", e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the user-facing text for err. It never panics on
// unexpected shapes: anything without a server message yields
// FallbackMessage.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return FallbackMessage
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IsUnauthorized reports whether the server rejected the session.
func IsUnauthorized(err error) bool {
	return IsKind(err, KindAuth)
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// newStatusError builds an Error from a non-2xx response. The body is parsed
// defensively: {"message": ...} is preferred, {"error": ...} is accepted,
// and anything else leaves Message empty so callers fall back.
func newStatusError(status int, body []byte) *Error {
	apiErr := &Error{
		Kind:   kindForStatus(status),
		Status: status,
	}

	var parsed struct {
		models.ErrorResponse
		Error string `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		switch {
		case strings.TrimSpace(parsed.Message) != "":
			apiErr.Message = parsed.Message
		case strings.TrimSpace(parsed.Error) != "":
			apiErr.Message = parsed.Error
		}
	}
	return apiErr
}
