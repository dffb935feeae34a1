package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcal/internal/auth"
	"shopcal/internal/calendar"
	"shopcal/internal/clock"
	"shopcal/internal/config"
	"shopcal/internal/model"
)

const jobsFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//jobs//EN
BEGIN:VEVENT
UID:job-overdue
DTSTART:20240608T100000
DTEND:20240608T110000
SUMMARY:Alignment
X-JOB-STATUS:scheduled
END:VEVENT
BEGIN:VEVENT
UID:job-done
DTSTART:20240609T100000
DTEND:20240609T110000
SUMMARY:Wash
X-JOB-STATUS:completed
END:VEVENT
BEGIN:VEVENT
UID:job-early
DTSTART:20240610T070000
DTEND:20240610T080000
SUMMARY:Early drop-off
X-JOB-PRIORITY:high
END:VEVENT
BEGIN:VEVENT
UID:job-normal
DTSTART:20240610T100000
DTEND:20240610T113000
SUMMARY:Battery swap
X-JOB-PRIORITY:low
END:VEVENT
END:VCALENDAR
`

// mondayMorning is 2024-06-10 09:30 UTC, a Monday.
var mondayMorning = time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.ics")
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(jobsFeed, "\n", "\r\n")), 0o600))

	cfg := config.DefaultConfig()
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.Feeds = []config.FeedConfig{{ID: "local", Name: "Local jobs", Path: path}}
	cfg.Normalize()
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	src := clock.Fixed(mondayMorning)
	store := NewStore(cfg, cfg.Location(), src)
	require.NoError(t, store.Refresh(context.Background()))
	return NewServer(cfg, store, src)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestStoreRefreshLoadsFeeds(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	events := s.store.Snapshot()
	assert.Len(t, events, 4)

	updatedAt, truncated := s.store.Status()
	assert.True(t, updatedAt.Equal(mondayMorning))
	assert.Empty(t, truncated)
}

func TestStoreRefreshReportsBadFeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Feeds = append(cfg.Feeds, config.FeedConfig{ID: "gone", Path: filepath.Join(t.TempDir(), "missing.ics")})

	store := NewStore(cfg, cfg.Location(), clock.Fixed(mondayMorning))
	err := store.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed gone")
	assert.Len(t, store.Snapshot(), 4, "healthy feeds are still loaded")
}

func TestStoreRefreshKeepsLastGoodFeed(t *testing.T) {
	cfg := testConfig(t)
	store := NewStore(cfg, cfg.Location(), clock.Fixed(mondayMorning))
	require.NoError(t, store.Refresh(context.Background()))
	require.Len(t, store.Snapshot(), 4)

	require.NoError(t, os.Remove(cfg.Feeds[0].Path))
	err := store.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed local")
	assert.Len(t, store.Snapshot(), 4, "failed feed keeps its last good jobs")

	require.NoError(t, os.WriteFile(cfg.Feeds[0].Path, []byte("not a calendar"), 0o600))
	require.Error(t, store.Refresh(context.Background()))
	assert.Len(t, store.Snapshot(), 4)
}

func TestBuildSourcesUniqueIDs(t *testing.T) {
	sources := buildSources([]config.FeedConfig{
		{ID: "shop", Path: "a.ics"},
		{ID: "shop", Path: "b.ics"},
		{Name: "Fleet", URL: "https://example.com/fleet.ics"},
		{ID: "empty"},
	}, time.UTC)

	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"shop", "shop#2", "Fleet"}, ids)
}

func TestDayView(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := get(t, s.Handler(), "/api/calendar/day?date=2024-06-10")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[calendar.DayView](t, rec)

	assert.True(t, view.IsToday)
	assert.True(t, view.BusinessDay)
	require.Len(t, view.Agenda, 2)
	assert.Equal(t, "job-early", view.Agenda[0].ID)
	assert.True(t, view.Agenda[0].OutsideHours)
	assert.Equal(t, "job-normal", view.Agenda[1].ID)
	assert.False(t, view.Agenda[1].OutsideHours)

	require.Len(t, view.CarryOver, 1)
	assert.Equal(t, "job-overdue", view.CarryOver[0].ID)
	require.NotNil(t, view.Indicator)
	assert.True(t, view.Indicator.Visible)
}

func TestMonthViewOrdersByPriority(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := get(t, s.Handler(), "/api/calendar/month?date=2024-06-01")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[calendar.MonthView](t, rec)

	require.Len(t, view.Weeks, 5)
	monday := view.Weeks[2][0]
	assert.Equal(t, 10, monday.Date.Day())
	assert.True(t, monday.IsToday)
	require.Len(t, monday.Events, 2)
	assert.Equal(t, model.PriorityHigh, monday.Events[0].Priority)
	assert.Equal(t, model.PriorityLow, monday.Events[1].Priority)

	rec = get(t, s.Handler(), "/api/calendar/month?date=2024-06-01&max=1")
	view = decode[calendar.MonthView](t, rec)
	monday = view.Weeks[2][0]
	assert.Len(t, monday.Events, 1)
	assert.Equal(t, 1, monday.Overflow)
}

func TestWeekView(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := get(t, s.Handler(), "/api/calendar/week?date=2024-06-12")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[calendar.WeekView](t, rec)

	require.Len(t, view.Days, 7)
	assert.Equal(t, 10, view.Days[0].Date.Day())
	assert.False(t, view.Days[6].BusinessDay, "Sunday is closed")
	require.NotNil(t, view.Indicator)
	assert.Len(t, view.Rows, 14)
}

func TestCarryOver(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := get(t, s.Handler(), "/api/carryover")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[carryOverResponse](t, rec)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "job-overdue", resp.Events[0].ID)

	// Preview from the Saturday: nothing is overdue yet.
	rec = get(t, s.Handler(), "/api/carryover?now=2024-06-08T12:00:00Z")
	resp = decode[carryOverResponse](t, rec)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Events)
}

func TestIndicator(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := get(t, s.Handler(), "/api/indicator?now=2024-06-10T12:30:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[indicatorResponse](t, rec)

	// Default grid shows 06:00 for 14 hours at 60px.
	assert.InDelta(t, 6.5/14, resp.Indicator.Fraction, 1e-9)
	assert.InDelta(t, 390, resp.Indicator.PixelOffset, 1e-9)
	assert.True(t, resp.Indicator.Visible)
	assert.True(t, resp.BusinessDay)
	assert.True(t, resp.WithinHours)
}

func TestBusinessHours(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := get(t, s.Handler(), "/api/business-hours")
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[[]calendar.WindowDTO](t, rec)

	require.Len(t, days, 7)
	assert.Equal(t, "Sunday", days[0].Weekday)
	assert.True(t, days[0].IsClosed)
	assert.Equal(t, "08:00", days[1].OpenTime)
	assert.Equal(t, "13:00", days[6].CloseTime)
}

func TestBadQueries(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	for _, target := range []string{
		"/api/calendar/day?date=10/06/2024",
		"/api/calendar/week?now=yesterday",
		"/api/indicator?now=2024-06-10",
	} {
		rec := get(t, s.Handler(), target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestExport(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := get(t, s.Handler(), "/api/export.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	body := rec.Body.String()
	assert.Equal(t, 4, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "UID:job-early")
}

func TestRefreshEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[refreshResponse](t, rec)
	assert.Equal(t, 4, resp.Events)
	assert.Empty(t, resp.Error)

	rec = get(t, s.Handler(), "/api/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	hash, err := auth.HashPasswordWith("torque", auth.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8})
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "front-desk", PasswordHash: hash}
	h := newTestServer(t, cfg).Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)

	rec := get(t, h, "/api/business-hours")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	tests := []struct {
		user, pass string
		want       int
	}{
		{"front-desk", "torque", http.StatusOK},
		{"front-desk", "torque", http.StatusOK},
		{"front-desk", "wrench", http.StatusUnauthorized},
		{"mechanic", "torque", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/business-hours", nil)
		req.SetBasicAuth(tt.user, tt.pass)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, "%s:%s", tt.user, tt.pass)
	}
}
