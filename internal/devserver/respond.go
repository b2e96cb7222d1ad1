package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-workforce-client/envelope"
	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK[T any](w http.ResponseWriter, status int, data T) {
	writeJSON(w, status, envelope.OK(data))
}

func writePage[T any](w http.ResponseWriter, items []T, page, limit, total int) {
	writeJSON(w, http.StatusOK, envelope.OKPage(items, pageMeta(page, limit, total)))
}

func writeFail(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, envelope.Fail(message, code))
}

// writeBare writes a {data} body without the success flag, the way the
// administrative endpoints do.
func writeBare(w http.ResponseWriter, data any, meta *envelope.Meta) {
	body := map[string]any{"data": data}
	if meta != nil {
		body["meta"] = meta
	}
	writeJSON(w, http.StatusOK, body)
}

// writeError maps repository errors onto envelope failures.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, wferrors.ErrNotFound) {
		writeFail(w, http.StatusNotFound, "Resource not found", "NOT_FOUND")
		return
	}
	writeFail(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFail(w, http.StatusBadRequest, "Malformed request body", "BAD_REQUEST")
		return false
	}
	return true
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func pageMeta(page, limit, total int) envelope.Meta {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = total
	}
	pages := 1
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return envelope.Meta{Total: total, Page: page, Limit: limit, TotalPages: max(pages, 1)}
}

// validationFailed reports struct validation errors as a 422 with one
// detail per field.
func (s *Server) validationFailed(w http.ResponseWriter, v any) bool {
	err := s.validate.Struct(v)
	if err == nil {
		return false
	}
	var details []string
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details = append(details, fe.Field()+" failed "+fe.Tag())
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, envelope.Envelope[any]{
		Success: false,
		Error:   &envelope.ErrorBody{Message: "Validation failed", Code: "VALIDATION_ERROR", Details: details},
	})
	return true
}
