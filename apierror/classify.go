package apierror

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Kind is the class of a failure surfaced by the core.
type Kind int

const (
	KindNone Kind = iota
	KindAPI
	KindConnectivity
)

func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindConnectivity:
		return "connectivity"
	}
	return ""
}

// KindOf reports which kind err is. Errors that were never classified
// report KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConnectivity):
		return KindConnectivity
	case errors.Is(err, ErrAPI):
		return KindAPI
	}
	return KindNone
}

// Classify turns the outcome of an HTTP exchange into a classified error.
// It returns nil for a response below 400. The response body is buffered
// and restored so the caller can still read it.
func Classify(resp *http.Response, err error) error {
	if err != nil {
		return FromTransportError(err)
	}
	if resp == nil {
		return &ConnectivityError{Message: ConnectivityMessage}
	}
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	var body []byte
	if resp.Body != nil {
		body, err = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil && resp.StatusCode >= http.StatusInternalServerError {
			return &ConnectivityError{Message: ConnectivityMessage, Status: resp.StatusCode, Cause: err}
		}
	}
	return FromResponse(resp.StatusCode, body)
}

// FromTransportError classifies an error returned before any response was
// received. Every such error, including context cancellation and deadline
// expiry, is a connectivity failure. Errors that are already classified pass
// through unchanged.
func FromTransportError(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindNone {
		return err
	}
	return &ConnectivityError{Message: ConnectivityMessage, Cause: err}
}

// FromResponse classifies a response that was received with the given status
// and body. Below 500 the result is always an APIError. At 500 and above the
// body decides: an envelope is an APIError, anything else (an HTML page from
// a proxy, an empty body) is a ConnectivityError.
func FromResponse(status int, body []byte) error {
	if status < http.StatusBadRequest {
		return nil
	}

	env, conforming := parseEnvelope(body)
	if status >= http.StatusInternalServerError && !conforming {
		return &ConnectivityError{Message: ConnectivityMessage, Status: status}
	}

	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	if apiErr.Message == "" {
		apiErr.Message = DefaultMessage
	}
	if env != nil && env.Error != nil {
		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
		apiErr.Code = env.Error.Code
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

// FromEnvelopeError builds the APIError for an envelope that reported failure
// on an otherwise successful response.
func FromEnvelopeError(status int, message, code string, details any) *APIError {
	if message == "" {
		message = DefaultMessage
	}
	return &APIError{Status: status, Message: message, Code: code, Details: details}
}

type errorEnvelope struct {
	Success *bool      `json:"success"`
	Error   *errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details"`
}

// parseEnvelope reports whether body is a JSON object carrying a boolean
// success field. The error member is decoded leniently.
func parseEnvelope(body []byte) (*errorEnvelope, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, false
	}

	var success *bool
	raw, ok := fields["success"]
	if !ok || json.Unmarshal(raw, &success) != nil || success == nil {
		return nil, false
	}

	env := &errorEnvelope{Success: success}
	if rawErr, ok := fields["error"]; ok {
		var eb errorBody
		if json.Unmarshal(rawErr, &eb) == nil {
			env.Error = &eb
		} else {
			var msg string
			if json.Unmarshal(rawErr, &msg) == nil {
				env.Error = &errorBody{Message: msg}
			}
		}
	}
	return env, true
}
