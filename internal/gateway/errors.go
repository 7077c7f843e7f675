package gateway

import (
	"errors"
	"fmt"
)

// HTTPError is a non-2xx response. Body holds the parsed error body, or nil
// when the body was not valid JSON.
type HTTPError struct {
	Status  int
	Method  string
	URL     string
	Message string
	Body    Body
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NetworkError is a request that failed before a response arrived.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return "network error"
	}
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

var errEmptyBody = errors.New("empty response body")

// ParseError is a 2xx response whose body is not JSON. Only GetJSON
// returns it.
type ParseError struct {
	Method string
	URL    string
	Err    error
}

func (e *ParseError) Error() string {
	return "响应解析失败：" + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsHTTP reports whether err carries an HTTP failure.
func IsHTTP(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

// IsNetwork reports whether err carries a transport failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// ResponseBody returns the parsed error body attached to an HTTP failure.
func ResponseBody(err error) Body {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Body
	}
	return nil
}

func statusMessage(status int) string {
	return fmt.Sprintf("请求失败，状态码：%d", status)
}
