package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/types"
)

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError_MapsCodeToStatus(t *testing.T) {
	tests := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrRunNotFound, http.StatusNotFound},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{types.ErrScriptGeneration, http.StatusBadGateway},
		{types.ErrScriptExecution, http.StatusInternalServerError},
		{types.ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{types.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{types.ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, types.NewError(tt.code, "boom"), zap.NewNop())

			assert.Equal(t, tt.want, rec.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.code), resp.Error.Code)
		})
	}
}

func TestWriteError_ExplicitStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	err := types.NewError(types.ErrInvalidRequest, "nope").WithHTTPStatus(http.StatusTeapot)
	WriteError(rec, err, zap.NewNop())

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestWriteAnyError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAnyError(rec, assert.AnError, zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrInternalError), resp.Error.Code)
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))

		var dst payload
		require.NoError(t, DecodeJSONBody(rec, req, &dst, zap.NewNop()))
		assert.Equal(t, "ok", dst.Name)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok","extra":1}`))

		var dst payload
		err := DecodeJSONBody(rec, req, &dst, zap.NewNop())
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))

		var dst payload
		require.Error(t, DecodeJSONBody(rec, req, &dst, zap.NewNop()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusInternalServerError) // second call ignored
	rw.Write([]byte("x"))

	assert.Equal(t, http.StatusAccepted, rw.StatusCode)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestResponseWriter_DefaultStatusOnWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.Write([]byte("x"))
	assert.Equal(t, http.StatusOK, rw.StatusCode)
}
