package rest

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/jrsteele09/go-workforce-client/transport"
)

// File is one file part of a multipart upload.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Form is a multipart/form-data body.
type Form struct {
	Fields map[string]string
	Files  []File
}

func (f Form) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range f.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for _, file := range f.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Name))
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Upload posts form as multipart/form-data. The response is the usual
// envelope.
func Upload[T any](ctx context.Context, c *Client, path string, form Form) (T, error) {
	var zero T
	body, contentType, err := form.encode()
	if err != nil {
		return zero, fmt.Errorf("failed to encode upload: %w", err)
	}
	req := transport.NewRequest(http.MethodPost, path)
	req.Body = body
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(ctx, req)
	if err != nil {
		return zero, err
	}
	unwrap := envelope.Unwrap[T]
	if c.lenient {
		unwrap = envelope.UnwrapLenient[T]
	}
	v, err := unwrap(resp.StatusCode, resp.Body)
	return v, c.classified(req, err)
}

func filename(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
