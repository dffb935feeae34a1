package web

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"shopcal/internal/auth"
	"shopcal/internal/calendar"
	"shopcal/internal/clock"
	"shopcal/internal/config"
	"shopcal/internal/hours"
	"shopcal/internal/ics"
	appLog "shopcal/internal/log"
	"shopcal/internal/model"
	"shopcal/internal/schedule"
)

const exportProdID = "-//shopcal//jobs//EN"

// Server exposes the calendar views and compliance data over HTTP.
type Server struct {
	cfg   *config.Config
	loc   *time.Location
	table *hours.Table
	opts  calendar.Options
	store *Store
	clock clock.Source
	mux   *http.ServeMux

	// Last credential digest that verified, so repeat requests skip argon2.
	authMu       sync.Mutex
	authVerified [sha256.Size]byte
}

// NewServer constructs a Server over store. src supplies "now" for views.
func NewServer(cfg *config.Config, store *Store, src clock.Source) *Server {
	s := &Server{
		cfg:   cfg,
		loc:   cfg.Location(),
		table: hours.NewTable(cfg.BusinessHours),
		opts:  ViewOptions(cfg),
		store: store,
		clock: src,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// ViewOptions maps the view section of cfg onto calendar options.
func ViewOptions(cfg *config.Config) calendar.Options {
	return calendar.Options{
		WeekStart:      cfg.WeekStartDay(),
		StartHour:      cfg.View.StartHour,
		HourCount:      cfg.View.HourCount,
		PxPerHour:      cfg.View.PxPerHour,
		MaxMonthEvents: cfg.View.MaxMonthEvents,
		MaxHourEvents:  cfg.View.MaxWeekEvents,
		CarryOver:      cfg.CarryOver,
	}
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "username", s.cfg.BasicAuth.Username)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.PasswordHash != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	hash := s.cfg.BasicAuth.PasswordHash

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !s.checkPassword(p, hash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="shopcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkPassword(password, hash string) bool {
	digest := sha256.Sum256([]byte(password))

	s.authMu.Lock()
	cached := s.authVerified
	s.authMu.Unlock()
	if subtle.ConstantTimeCompare(digest[:], cached[:]) == 1 {
		return true
	}

	ok, err := auth.VerifyPassword(password, hash)
	if err != nil {
		appLog.Error("basic auth: stored hash unusable", err)
		return false
	}
	if ok {
		s.authMu.Lock()
		s.authVerified = digest
		s.authMu.Unlock()
	}
	return ok
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/calendar/month", s.handleMonth)
	s.mux.HandleFunc("GET /api/calendar/week", s.handleWeek)
	s.mux.HandleFunc("GET /api/calendar/day", s.handleDay)
	s.mux.HandleFunc("GET /api/carryover", s.handleCarryOver)
	s.mux.HandleFunc("GET /api/indicator", s.handleIndicator)
	s.mux.HandleFunc("GET /api/business-hours", s.handleBusinessHours)
	s.mux.HandleFunc("GET /api/export.ics", s.handleExport)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// requestTimes resolves "now" (clock, or the now= RFC3339 override) and the
// anchor date (date=YYYY-MM-DD, default today), both in the shop's zone.
func (s *Server) requestTimes(r *http.Request) (now, anchor time.Time, err error) {
	q := r.URL.Query()

	now = s.clock.Now().In(s.loc)
	if v := q.Get("now"); v != "" {
		t, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			return now, now, errors.New("invalid now: want RFC3339")
		}
		now = t.In(s.loc)
	}

	anchor = now
	if v := q.Get("date"); v != "" {
		d, perr := time.ParseInLocation(time.DateOnly, v, s.loc)
		if perr != nil {
			return now, now, errors.New("invalid date: want YYYY-MM-DD")
		}
		anchor = d
	}
	return now, anchor, nil
}

// handleMonth serves the month grid. max=N overrides the per-cell chip cap,
// as it does for the week grid's hour cells.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	now, anchor, err := s.requestTimes(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := s.opts
	opts.MaxMonthEvents = parseIntDefault(r.URL.Query().Get("max"), opts.MaxMonthEvents)
	writeJSON(w, http.StatusOK, calendar.Month(s.store.Snapshot(), s.table, anchor, now, opts))
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	now, anchor, err := s.requestTimes(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := s.opts
	opts.MaxHourEvents = parseIntDefault(r.URL.Query().Get("max"), opts.MaxHourEvents)
	writeJSON(w, http.StatusOK, calendar.Week(s.store.Snapshot(), s.table, anchor, now, opts))
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	now, anchor, err := s.requestTimes(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, calendar.Day(s.store.Snapshot(), s.table, anchor, now, s.opts))
}

// carryOverResponse is the JSON response shape for /api/carryover.
type carryOverResponse struct {
	Today  time.Time     `json:"today"`
	Count  int           `json:"count"`
	Events []model.Event `json:"events"`
}

func (s *Server) handleCarryOver(w http.ResponseWriter, r *http.Request) {
	now, _, err := s.requestTimes(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events := schedule.ResolveCarryOver(s.store.Snapshot(), now, s.cfg.CarryOver)
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, carryOverResponse{
		Today:  schedule.Midnight(now),
		Count:  len(events),
		Events: events,
	})
}

// indicatorResponse is the JSON response shape for /api/indicator.
type indicatorResponse struct {
	Now         time.Time          `json:"now"`
	Indicator   schedule.Indicator `json:"indicator"`
	BusinessDay bool               `json:"business_day"`
	WithinHours bool               `json:"within_hours"`
}

func (s *Server) handleIndicator(w http.ResponseWriter, r *http.Request) {
	now, _, err := s.requestTimes(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, indicatorResponse{
		Now:         now,
		Indicator:   schedule.PositionIndicator(now, s.opts.StartHour, s.opts.HourCount, s.opts.PxPerHour),
		BusinessDay: s.table.IsBusinessDay(now.Weekday()),
		WithinHours: s.table.HourWithinBusinessHours(now.Weekday(), now.Hour()),
	})
}

func (s *Server) handleBusinessHours(w http.ResponseWriter, _ *http.Request) {
	days := s.table.Days()
	out := make([]calendar.WindowDTO, 0, len(days))
	for _, d := range days {
		out = append(out, calendar.NewWindowDTO(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	body := ics.Export(s.store.Snapshot(), exportProdID, s.clock.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="shopcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// refreshResponse is the JSON response shape for /api/refresh.
type refreshResponse struct {
	Events        int       `json:"events"`
	UpdatedAt     time.Time `json:"updated_at"`
	TruncatedUIDs []string  `json:"truncated_uids,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// handleRefresh reloads feeds. Partial feed failures still return 200 with
// the joined error so the caller sees what was kept.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	err := s.store.Refresh(ctx)
	updatedAt, truncated := s.store.Status()
	resp := refreshResponse{
		Events:        len(s.store.Snapshot()),
		UpdatedAt:     updatedAt,
		TruncatedUIDs: truncated,
	}
	if err != nil {
		appLog.Error("api refresh: one or more feeds failed", err)
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
