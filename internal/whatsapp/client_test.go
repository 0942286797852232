package whatsapp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refhub/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Send(t *testing.T) {
	channel := entity.Channel{
		Kind:   entity.ChannelWhatsApp,
		Phone:  "+15550001111",
		ApiKey: "cmb-key",
	}

	t.Run("query parameters", func(t *testing.T) {
		var got *http.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Clone(context.Background())
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, testLogger())
		require.NoError(t, c.Send(context.Background(), channel, "New signup: jo"))

		require.NotNil(t, got)
		assert.Equal(t, http.MethodGet, got.Method)
		q := got.URL.Query()
		assert.Equal(t, "+15550001111", q.Get("phone"))
		assert.Equal(t, "New signup: jo", q.Get("text"))
		assert.Equal(t, "cmb-key", q.Get("apikey"))
	})

	t.Run("gateway error surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "APIKey is invalid", http.StatusForbidden)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, testLogger())
		err := c.Send(context.Background(), channel, "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "APIKey is invalid")
	})

	t.Run("unreachable gateway surfaces", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:0", testLogger())
		assert.Error(t, c.Send(context.Background(), channel, "hello"))
	})
}
