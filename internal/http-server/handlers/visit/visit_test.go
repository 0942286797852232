package visit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refhub/entity"
	"refhub/lib/api/response"
)

type fakeCore struct {
	lastEvent *entity.VisitEvent
	logErr    error
	stats     *entity.VisitStats
	statsErr  error
}

func (f *fakeCore) LogVisit(_ context.Context, event *entity.VisitEvent) (*entity.Visit, error) {
	f.lastEvent = event
	if f.logErr != nil {
		return nil, f.logErr
	}
	return &entity.Visit{Path: event.Path, Referrer: event.Referrer, IP: event.IP}, nil
}

func (f *fakeCore) VisitStats(_ context.Context) (*entity.VisitStats, error) {
	return f.stats, f.statsErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLog(t *testing.T) {
	t.Run("records and fills request fields", func(t *testing.T) {
		core := &fakeCore{}
		r := httptest.NewRequest(http.MethodPost, "/v1/visit/log",
			strings.NewReader(`{"path":"/landing","referrer":"JD123456"}`))
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("X-Forwarded-For", "203.0.113.9")
		r.Header.Set("User-Agent", "test-agent")
		w := httptest.NewRecorder()

		Log(testLogger(), core)(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, core.lastEvent)
		assert.Equal(t, "203.0.113.9", core.lastEvent.IP)
		assert.Equal(t, "test-agent", core.lastEvent.UserAgent)

		var resp response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
	})

	t.Run("missing path rejected", func(t *testing.T) {
		core := &fakeCore{}
		r := httptest.NewRequest(http.MethodPost, "/v1/visit/log",
			strings.NewReader(`{"referrer":"JD123456"}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		Log(testLogger(), core)(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, core.lastEvent)
	})

	t.Run("store failure returns 500", func(t *testing.T) {
		core := &fakeCore{logErr: assert.AnError}
		r := httptest.NewRequest(http.MethodPost, "/v1/visit/log",
			strings.NewReader(`{"path":"/"}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		Log(testLogger(), core)(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestStats(t *testing.T) {
	core := &fakeCore{stats: &entity.VisitStats{
		Total:        7,
		TopReferrers: []entity.ReferrerStat{{Referrer: "JD123456", Count: 3}},
	}}
	r := httptest.NewRequest(http.MethodGet, "/v1/visit/stats", nil)
	w := httptest.NewRecorder()

	Stats(testLogger(), core)(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}
