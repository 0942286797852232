package broadcast

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCore struct {
	key  string
	sent []string
}

func (f *fakeCore) VerifyBroadcastKey(key string) bool {
	return f.key != "" && key == f.key
}

func (f *fakeCore) Broadcast(message string) {
	f.sent = append(f.sent, message)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSend(t *testing.T) {
	t.Run("accepted with valid key", func(t *testing.T) {
		core := &fakeCore{key: "topsecret"}
		r := httptest.NewRequest(http.MethodPost, "/v1/notify/global",
			strings.NewReader(`{"text":"maintenance tonight"}`))
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("x-broadcast-key", "topsecret")
		w := httptest.NewRecorder()

		Send(testLogger(), core)(w, r)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, []string{"maintenance tonight"}, core.sent)
	})

	t.Run("rejected without key", func(t *testing.T) {
		core := &fakeCore{key: "topsecret"}
		r := httptest.NewRequest(http.MethodPost, "/v1/notify/global",
			strings.NewReader(`{"text":"nope"}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		Send(testLogger(), core)(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, core.sent)
	})

	t.Run("rejected when key unset", func(t *testing.T) {
		core := &fakeCore{}
		r := httptest.NewRequest(http.MethodPost, "/v1/notify/global",
			strings.NewReader(`{"text":"nope"}`))
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("x-broadcast-key", "")
		w := httptest.NewRecorder()

		Send(testLogger(), core)(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("empty text rejected", func(t *testing.T) {
		core := &fakeCore{key: "topsecret"}
		r := httptest.NewRequest(http.MethodPost, "/v1/notify/global",
			strings.NewReader(`{"text":""}`))
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("x-broadcast-key", "topsecret")
		w := httptest.NewRecorder()

		Send(testLogger(), core)(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, core.sent)
	})
}
