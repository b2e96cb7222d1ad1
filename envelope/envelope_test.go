package envelope_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jrsteele09/go-workforce-client/apierror"
	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestUnwrap(t *testing.T) {
	t.Run("success returns data", func(t *testing.T) {
		got, err := envelope.Unwrap[item](200, []byte(`{"success":true,"data":{"id":"t1","name":"Acme"}}`))
		require.NoError(t, err)
		require.Equal(t, item{ID: "t1", Name: "Acme"}, got)
	})

	t.Run("success without data is the zero value", func(t *testing.T) {
		got, err := envelope.Unwrap[*item](200, []byte(`{"success":true}`))
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("failure uses error message", func(t *testing.T) {
		_, err := envelope.Unwrap[item](200, []byte(`{"success":false,"error":{"message":"quota exceeded","code":"QUOTA"}}`))
		require.ErrorIs(t, err, apierror.ErrAPI)

		var apiErr *apierror.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, "quota exceeded", apiErr.Message)
		require.Equal(t, "QUOTA", apiErr.Code)
	})

	t.Run("failure without message uses default", func(t *testing.T) {
		_, err := envelope.Unwrap[item](200, []byte(`{"success":false}`))

		var apiErr *apierror.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, apierror.DefaultMessage, apiErr.Message)
	})

	t.Run("missing discriminant is a failure", func(t *testing.T) {
		_, err := envelope.Unwrap[item](200, []byte(`{"data":{"id":"t1"}}`))
		require.ErrorIs(t, err, apierror.ErrAPI)
	})

	t.Run("non json body is a failure", func(t *testing.T) {
		_, err := envelope.Unwrap[item](200, []byte(`<html/>`))
		require.ErrorIs(t, err, apierror.ErrAPI)
	})
}

func TestUnwrapPage(t *testing.T) {
	body := `{"success":true,"data":[{"id":"a"},{"id":"b"}],"meta":{"total":12,"page":2,"limit":2,"totalPages":6}}`
	page, err := envelope.UnwrapPage[item](200, []byte(body))
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	require.Equal(t, envelope.Meta{Total: 12, Page: 2, Limit: 2, TotalPages: 6}, page.Meta)

	t.Run("without meta", func(t *testing.T) {
		page, err := envelope.UnwrapPage[item](200, []byte(`{"success":true,"data":[{"id":"a"}]}`))
		require.NoError(t, err)
		require.Equal(t, 1, page.Meta.Total)
		require.Equal(t, 1, page.Meta.TotalPages)
	})

	t.Run("failure", func(t *testing.T) {
		_, err := envelope.UnwrapPage[item](200, []byte(`{"success":false,"error":{"message":"nope"}}`))
		require.ErrorIs(t, err, apierror.ErrAPI)
	})
}

func TestUnwrapLenient(t *testing.T) {
	t.Run("bare data", func(t *testing.T) {
		got, err := envelope.UnwrapLenient[item](200, []byte(`{"data":{"id":"m1","name":"metrics"}}`))
		require.NoError(t, err)
		require.Equal(t, "m1", got.ID)
	})

	t.Run("full envelope", func(t *testing.T) {
		got, err := envelope.UnwrapLenient[item](200, []byte(`{"success":true,"data":{"id":"m2"}}`))
		require.NoError(t, err)
		require.Equal(t, "m2", got.ID)
	})

	t.Run("explicit failure", func(t *testing.T) {
		_, err := envelope.UnwrapLenient[item](200, []byte(`{"success":false,"error":{"message":"denied"}}`))
		require.ErrorIs(t, err, apierror.ErrAPI)
	})

	t.Run("neither shape", func(t *testing.T) {
		_, err := envelope.UnwrapLenient[item](200, []byte(`{"other":1}`))
		require.ErrorIs(t, err, apierror.ErrAPI)
	})

	t.Run("bare page", func(t *testing.T) {
		page, err := envelope.UnwrapPageLenient[item](200, []byte(`{"data":[{"id":"a"}],"meta":{"total":1,"page":1,"limit":10,"totalPages":1}}`))
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		require.Equal(t, 10, page.Meta.Limit)
	})
}

func TestOK_Encodes(t *testing.T) {
	b, err := json.Marshal(envelope.OK(item{ID: "x"}))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"data":{"id":"x","name":""}}`, string(b))

	b, err = json.Marshal(envelope.Fail("db down", ""))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":false,"error":{"message":"db down"}}`, string(b))
}
