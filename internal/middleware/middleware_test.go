package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamestore-lobby/internal/testutil"
)

func TestRecoveryWritesPanicResponse(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(testutil.CaptureLogger(&buf), DefaultPanicHandler)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "boom")
}

func TestLoggingLevels(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		want   string
	}{
		{"quiet path", "/health", http.StatusOK, "DEBUG"},
		{"normal path", "/rooms", http.StatusOK, "INFO"},
		{"server error", "/health", http.StatusInternalServerError, "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := Logging(testutil.CaptureLogger(&buf), QuietPaths("/health"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("hello"))
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.want, entry["level"])
			assert.Equal(t, tt.path, entry["path"])
			assert.InDelta(t, float64(tt.status), entry["status"], 0)
			assert.InDelta(t, 5, entry["size"], 0)
		})
	}
}

func TestLoggingWithoutLevelFunc(t *testing.T) {
	var buf bytes.Buffer
	h := Logging(testutil.CaptureLogger(&buf), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestRecoveryReraisesAbort(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(testutil.CaptureLogger(&buf), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events", nil))
	})
	assert.Empty(t, buf.String())
}
