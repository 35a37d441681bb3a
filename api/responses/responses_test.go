package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "world", body.Data.(map[string]any)["hello"])
}

func TestWriteErrorMapsDomainCodes(t *testing.T) {
	cases := []struct {
		code   pkgerrors.Code
		status int
	}{
		{pkgerrors.CodeInvalidCart, http.StatusBadRequest},
		{pkgerrors.CodeOutOfStock, http.StatusBadRequest},
		{pkgerrors.CodeInsufficientStock, http.StatusConflict},
		{pkgerrors.CodeIllegalTransition, http.StatusBadRequest},
		{pkgerrors.CodeNoPickupMapped, http.StatusUnprocessableEntity},
		{pkgerrors.CodeCourierUnavailable, http.StatusBadGateway},
		{pkgerrors.CodeCourierAuthExpired, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		WriteError(context.Background(), nil, w, pkgerrors.New(tc.code, "specific message"))
		assert.Equal(t, tc.status, w.Code, tc.code)
		body := decodeError(t, w)
		assert.Equal(t, string(tc.code), body.Error.Code)
		if tc.status < 500 {
			assert.Equal(t, "specific message", body.Error.Message, tc.code)
		} else {
			assert.Equal(t, pkgerrors.MetadataFor(tc.code).PublicMessage, body.Error.Message, tc.code)
		}
	}
}

func TestWriteErrorIncludesAllowedDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeOutOfStock, "no branch has enough stock").
		WithDetails(map[string]any{"variant_id": 42})
	WriteError(context.Background(), nil, w, err)

	body := decodeError(t, w)
	details, ok := body.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), details["variant_id"])
}

func TestWriteErrorDefaultsToInternalForUntypedErrors(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{Level: "debug", Output: &buf})

	w := httptest.NewRecorder()
	WriteError(context.Background(), logg, w, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, string(pkgerrors.CodeInternal), body.Error.Code)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.Nil(t, body.Error.Details)
	assert.Contains(t, buf.String(), "request.error")
}
