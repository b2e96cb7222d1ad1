package rest_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jrsteele09/go-workforce-client/apierror"
	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/jrsteele09/go-workforce-client/rest"
	"github.com/jrsteele09/go-workforce-client/transport"
	"github.com/stretchr/testify/require"
)

type goal struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /goals/g-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope.OK(goal{ID: "g-1", Title: "Ship it"}))
	})
	mux.HandleFunc("GET /goals", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, envelope.OKPage([]goal{{ID: "g-3"}}, envelope.Meta{Total: 3, Page: 2, Limit: 2, TotalPages: 2}))
	})
	mux.HandleFunc("POST /goals", func(w http.ResponseWriter, r *http.Request) {
		var g goal
		_ = json.NewDecoder(r.Body).Decode(&g)
		g.ID = "g-9"
		writeJSON(w, http.StatusCreated, envelope.OK(g))
	})
	mux.HandleFunc("GET /bare", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": goal{ID: "bare"}})
	})
	mux.HandleFunc("GET /rejected", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, envelope.Fail("Not allowed", "FORBIDDEN"))
	})
	mux.HandleFunc("GET /enveloped-500", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, envelope.Fail("Review cycle is locked", "LOCKED"))
	})
	mux.HandleFunc("GET /gateway", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html><body>Bad gateway</body></html>")
	})
	mux.HandleFunc("GET /export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="goals.csv"`)
		_, _ = io.WriteString(w, "id,title\ng-1,Ship it\n")
	})
	mux.HandleFunc("POST /import", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, envelope.Fail(err.Error(), ""))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, envelope.Fail(err.Error(), ""))
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		writeJSON(w, http.StatusOK, envelope.OK(map[string]any{
			"filename": header.Filename,
			"bytes":    len(data),
			"mode":     r.FormValue("mode"),
		}))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetAndSend(t *testing.T) {
	srv := newServer(t)
	c := rest.New(transport.New(srv.URL))
	ctx := context.Background()

	t.Run("get unwraps data", func(t *testing.T) {
		g, err := rest.Get[goal](ctx, c, "/goals/g-1", nil)
		require.NoError(t, err)
		require.Equal(t, "Ship it", g.Title)
	})

	t.Run("list unwraps page", func(t *testing.T) {
		page, err := rest.List[goal](ctx, c, "/goals", url.Values{"page": {"2"}})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		require.Equal(t, 3, page.Meta.Total)
		require.Equal(t, 2, page.Meta.TotalPages)
	})

	t.Run("send posts json", func(t *testing.T) {
		g, err := rest.Send[goal](ctx, c, http.MethodPost, "/goals", goal{Title: "New"})
		require.NoError(t, err)
		require.Equal(t, "g-9", g.ID)
		require.Equal(t, "New", g.Title)
	})
}

func TestClassification(t *testing.T) {
	srv := newServer(t)
	c := rest.New(transport.New(srv.URL))
	ctx := context.Background()

	t.Run("4xx envelope is an API error with the server message", func(t *testing.T) {
		_, err := rest.Get[goal](ctx, c, "/rejected", nil)
		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusForbidden, apiErr.Status)
		require.Equal(t, "Not allowed", apiErr.Message)
		require.Equal(t, "FORBIDDEN", apiErr.Code)
	})

	t.Run("5xx envelope is an API error", func(t *testing.T) {
		_, err := rest.Get[goal](ctx, c, "/enveloped-500", nil)
		require.ErrorIs(t, err, apierror.ErrAPI)
		require.Contains(t, err.Error(), "Review cycle is locked")
	})

	t.Run("5xx html page is a connectivity error", func(t *testing.T) {
		_, err := rest.Get[goal](ctx, c, "/gateway", nil)
		require.ErrorIs(t, err, apierror.ErrConnectivity)
	})

	t.Run("404 without envelope uses status text", func(t *testing.T) {
		_, err := rest.Get[goal](ctx, c, "/missing", nil)
		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusNotFound, apiErr.Status)
	})

	t.Run("bare data is rejected by the strict client", func(t *testing.T) {
		_, err := rest.Get[goal](ctx, c, "/bare", nil)
		require.ErrorIs(t, err, apierror.ErrAPI)
	})

	t.Run("unreachable server is a connectivity error", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()
		_, err := rest.Get[goal](ctx, rest.New(transport.New(dead.URL)), "/goals/g-1", nil)
		require.ErrorIs(t, err, apierror.ErrConnectivity)
	})
}

func TestLenientClient(t *testing.T) {
	srv := newServer(t)
	c := rest.New(transport.New(srv.URL), rest.WithLenientEnvelope())

	g, err := rest.Get[goal](context.Background(), c, "/bare", nil)
	require.NoError(t, err)
	require.Equal(t, "bare", g.ID)

	_, err = rest.Get[goal](context.Background(), c, "/rejected", nil)
	require.ErrorIs(t, err, apierror.ErrAPI)
}

func TestRawAndUpload(t *testing.T) {
	srv := newServer(t)
	c := rest.New(transport.New(srv.URL))
	ctx := context.Background()

	t.Run("raw bypasses the envelope", func(t *testing.T) {
		raw, err := c.Raw(ctx, http.MethodGet, "/export", nil)
		require.NoError(t, err)
		require.Equal(t, "text/csv", raw.ContentType)
		require.Equal(t, "goals.csv", raw.Filename)
		require.Equal(t, "id,title\ng-1,Ship it\n", string(raw.Body))
	})

	t.Run("raw failures are classified", func(t *testing.T) {
		_, err := c.Raw(ctx, http.MethodGet, "/gateway", nil)
		require.ErrorIs(t, err, apierror.ErrConnectivity)
	})

	t.Run("multipart upload", func(t *testing.T) {
		type result struct {
			Filename string `json:"filename"`
			Bytes    int    `json:"bytes"`
			Mode     string `json:"mode"`
		}
		res, err := rest.Upload[result](ctx, c, "/import", rest.Form{
			Fields: map[string]string{"mode": "merge"},
			Files:  []rest.File{{Field: "file", Name: "users.csv", ContentType: "text/csv", Data: []byte("a,b\n1,2\n")}},
		})
		require.NoError(t, err)
		require.Equal(t, result{Filename: "users.csv", Bytes: 8, Mode: "merge"}, res)
	})
}
