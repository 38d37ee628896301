package marathon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Response is the outcome of one call to Marathon.
//
// A request that reached the scheduler carries its status code and raw body.
// A request that never completed (connection refused, timeout, bad URL)
// carries only an error message and a zero status code. Client methods
// always return a Response; transport failures are not Go errors.
type Response struct {
	StatusCode int
	Body       []byte

	err string
}

// ErrorResponse builds a Response for a request that never completed.
func ErrorResponse(message string) *Response {
	return &Response{err: message}
}

// Success reports whether the request completed with a 2xx status.
func (r *Response) Success() bool {
	return r != nil && r.err == "" && r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Conflict reports whether Marathon refused the request with 409.
func (r *Response) Conflict() bool {
	return r != nil && r.StatusCode == http.StatusConflict
}

// ErrorMessage returns the transport error, or the body of a non-2xx
// response. It is empty on success.
func (r *Response) ErrorMessage() string {
	switch {
	case r == nil:
		return "no response"
	case r.Success():
		return ""
	case r.err != "":
		return r.err
	default:
		return string(r.Body)
	}
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || r.err != "" {
		return errors.New(r.ErrorMessage())
	}
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	return json.Unmarshal(r.Body, v)
}

func (r *Response) String() string {
	if r.Success() {
		return "OK"
	}
	return "ERROR: " + r.ErrorMessage()
}
