package respond

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs swaps the default logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

/* ───── JSON ───── */

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, http.StatusOK, map[string]int{"count": 3})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())
}

func TestJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestJSON_EncodingErrorIsLogged(t *testing.T) {
	logs := captureLogs(t)
	rec := httptest.NewRecorder()

	JSON(rec, http.StatusOK, make(chan int))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "failed to encode JSON response")
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()

	Error(rec, http.StatusMethodNotAllowed, errors.New("method not allowed"))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", decodeError(t, rec))
}

/* ───── SafeError ───── */

func TestSafeError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		err     error
		wantMsg string
	}{
		{
			name:    "unknown category",
			code:    http.StatusBadRequest,
			err:     fmt.Errorf("%w: %q", errors.New("unknown category"), "vision"),
			wantMsg: `unknown category: "vision"`,
		},
		{
			name:    "invalid parameter",
			code:    http.StatusBadRequest,
			err:     errors.New("invalid force_update value"),
			wantMsg: "invalid force_update value",
		},
		{
			name:    "rate limited",
			code:    http.StatusTooManyRequests,
			err:     errors.New("too many forced refreshes"),
			wantMsg: "too many forced refreshes",
		},
		{
			name:    "internal detail hidden on 4xx",
			code:    http.StatusBadRequest,
			err:     errors.New("sql: connection refused"),
			wantMsg: "internal server error",
		},
		{
			name:    "safe words hidden on 5xx",
			code:    http.StatusInternalServerError,
			err:     errors.New("invalid snapshot"),
			wantMsg: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captureLogs(t)
			rec := httptest.NewRecorder()

			SafeError(rec, tt.code, tt.err)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rec))
		})
	}
}

func TestSafeError_Nil(t *testing.T) {
	rec := httptest.NewRecorder()

	SafeError(rec, http.StatusBadRequest, nil)

	assert.Empty(t, rec.Body.String())
}

func TestSafeError_LogsSanitized(t *testing.T) {
	logs := captureLogs(t)
	rec := httptest.NewRecorder()

	SafeError(rec, http.StatusInternalServerError, errors.New("open postgres://digest:hunter2@db/digest"))

	assert.NotContains(t, logs.String(), "hunter2")
	assert.Contains(t, logs.String(), "digest:****@db")
	assert.NotContains(t, rec.Body.String(), "postgres")
}

/* ───── AppError ───── */

func TestAppError(t *testing.T) {
	inner := errors.New("disk full")
	err := NewAppError(http.StatusServiceUnavailable, "store unavailable", inner)

	assert.Equal(t, "disk full", err.Error())
	assert.ErrorIs(t, err, inner)

	noInner := NewAppError(http.StatusBadRequest, "bad input", nil)
	assert.Equal(t, "bad input", noInner.Error())
}

func TestFail(t *testing.T) {
	t.Run("app error uses its own code and message", func(t *testing.T) {
		logs := captureLogs(t)
		rec := httptest.NewRecorder()
		err := fmt.Errorf("query: %w", NewAppError(http.StatusServiceUnavailable, "store unavailable", errors.New("password=x")))

		Fail(rec, http.StatusInternalServerError, err)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "store unavailable", decodeError(t, rec))
		assert.Contains(t, logs.String(), "password=****")
	})

	t.Run("plain error falls back to SafeError", func(t *testing.T) {
		captureLogs(t)
		rec := httptest.NewRecorder()

		Fail(rec, http.StatusBadRequest, errors.New("category is required"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "category is required", decodeError(t, rec))
	})
}
