package searchads

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

var (
	ErrLoginFailed          = errors.New("searchads: login failed")
	ErrLoginInProgress      = errors.New("searchads: login already in progress")
	ErrTwoFactorUnavailable = errors.New("searchads: two-factor verification required but no handler is configured")
	ErrRequestFailed        = errors.New("searchads: request failed")
	ErrClosed               = errors.New("searchads: client closed")
)

// ResponseError is returned when the vendor answers with an unexpected status.
type ResponseError struct {
	// Kind is ErrLoginFailed or ErrRequestFailed.
	Kind       error
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func newResponseError(kind error, res *resty.Response) *ResponseError {
	return &ResponseError{
		Kind:       kind,
		Method:     res.Request.Method,
		URL:        res.Request.URL,
		StatusCode: res.StatusCode(),
		Header:     res.Header(),
		Body:       res.Body(),
	}
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s %s: status %d", e.Kind, e.Method, e.URL, e.StatusCode)
}

func (e *ResponseError) Unwrap() error {
	return e.Kind
}

func loginFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLoginFailed, fmt.Sprintf(format, args...))
}
