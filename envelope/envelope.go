// Package envelope normalises the server's {success, data, error, meta}
// response wrapper into a plain value or a classified error.
package envelope

import (
	"encoding/json"

	"github.com/jrsteele09/go-workforce-client/apierror"
)

// Envelope is the wire shape of every JSON response body.
type Envelope[T any] struct {
	Success bool       `json:"success"`
	Data    T          `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Meta describes one page of a paginated list.
type Meta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Page is the unwrapped result of a list endpoint.
type Page[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// OK wraps data in a successful envelope.
func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: data}
}

// OKPage wraps one page of items in a successful envelope.
func OKPage[T any](items []T, meta Meta) Envelope[[]T] {
	return Envelope[[]T]{Success: true, Data: items, Meta: &meta}
}

// Fail builds a failure envelope.
func Fail(message, code string) Envelope[any] {
	return Envelope[any]{Success: false, Error: &ErrorBody{Message: message, Code: code}}
}

// raw keeps data undecoded so presence can be told apart from a zero value.
type raw struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
	Meta    *Meta           `json:"meta"`
}

func decode(status int, body []byte) (raw, error) {
	var r raw
	if err := json.Unmarshal(body, &r); err != nil {
		return raw{}, apierror.FromEnvelopeError(status, "", "", nil)
	}
	return r, nil
}

func failure(status int, r raw) error {
	if r.Error == nil {
		return apierror.FromEnvelopeError(status, "", "", nil)
	}
	return apierror.FromEnvelopeError(status, r.Error.Message, r.Error.Code, r.Error.Details)
}

func decodeData[T any](status int, data json.RawMessage) (T, error) {
	var out T
	if len(data) == 0 || string(data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, apierror.FromEnvelopeError(status, "Malformed response data", "", err.Error())
	}
	return out, nil
}

// Unwrap returns data from a successful envelope, or the zero value of T when
// data is absent. A body without success=true is always an APIError; a
// missing error message falls back to apierror.DefaultMessage.
func Unwrap[T any](status int, body []byte) (T, error) {
	var zero T
	r, err := decode(status, body)
	if err != nil {
		return zero, err
	}
	if r.Success == nil || !*r.Success {
		return zero, failure(status, r)
	}
	return decodeData[T](status, r.Data)
}

// UnwrapPage is Unwrap for list endpoints. A missing meta block is reported
// as a single page holding every returned item.
func UnwrapPage[T any](status int, body []byte) (Page[T], error) {
	r, err := decode(status, body)
	if err != nil {
		return Page[T]{}, err
	}
	if r.Success == nil || !*r.Success {
		return Page[T]{}, failure(status, r)
	}
	items, err := decodeData[[]T](status, r.Data)
	if err != nil {
		return Page[T]{}, err
	}
	page := Page[T]{Data: items}
	if r.Meta != nil {
		page.Meta = *r.Meta
	} else {
		page.Meta = Meta{Total: len(items), Page: 1, Limit: len(items), TotalPages: 1}
	}
	return page, nil
}

// UnwrapLenient accepts everything Unwrap does and additionally a bare
// {data} object with no success discriminant, as older administrative
// endpoints return.
func UnwrapLenient[T any](status int, body []byte) (T, error) {
	var zero T
	r, err := decode(status, body)
	if err != nil {
		return zero, err
	}
	if r.Success == nil {
		if r.Error != nil || len(r.Data) == 0 {
			return zero, failure(status, r)
		}
		return decodeData[T](status, r.Data)
	}
	if !*r.Success {
		return zero, failure(status, r)
	}
	return decodeData[T](status, r.Data)
}

// UnwrapPageLenient is UnwrapPage with the lenient discriminant rule.
func UnwrapPageLenient[T any](status int, body []byte) (Page[T], error) {
	r, err := decode(status, body)
	if err != nil {
		return Page[T]{}, err
	}
	if r.Success == nil {
		if r.Error != nil || len(r.Data) == 0 {
			return Page[T]{}, failure(status, r)
		}
		yes := true
		r.Success = &yes
		patched, _ := json.Marshal(r)
		return UnwrapPage[T](status, patched)
	}
	return UnwrapPage[T](status, body)
}
