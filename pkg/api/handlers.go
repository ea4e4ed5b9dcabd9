package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/Sternrassler/results-ingest/pkg/ingest"
	"github.com/Sternrassler/results-ingest/pkg/model"
	"github.com/Sternrassler/results-ingest/pkg/query"
	"github.com/Sternrassler/results-ingest/pkg/runlog"
)

// ErrBadDate is the message returned for an unparseable date parameter.
const ErrBadDate = "This is the incorrect date string format. It should be YYYY-MM-DD"

type errorResponse struct {
	Error string `json:"error"`
}

type runResponse struct {
	RunID      string    `json:"run_id,omitempty"`
	Status     string    `json:"status"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Queries    int       `json:"queries,omitempty"`
	Succeeded  int       `json:"succeeded,omitempty"`
	Failed     int       `json:"failed,omitempty"`
	Events     int       `json:"events,omitempty"`
	Deleted    int64     `json:"deleted,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Failures   []failure `json:"failures,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type failure struct {
	Day   string `json:"day"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Checks))
	status := http.StatusOK
	for name, p := range s.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": checks})
}

// handleRunParser starts an ingestion run. from/to default to the configured
// range ending today; async=true returns 202 without waiting for the run.
func (s *Server) handleRunParser(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.rangeParams(w, r)
	if !ok {
		return
	}

	if s.deps.Ingester.Running() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: ingest.ErrRunInProgress.Error()})
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		go func() {
			report, err := s.deps.Ingester.Run(s.baseCtx, from, to)
			s.noteRun(report, err)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Background ingestion run failed")
			}
		}()
		writeJSON(w, http.StatusAccepted, runResponse{
			Status: "started",
			From:   from.Format(query.DateLayout),
			To:     to.Format(query.DateLayout),
		})
		return
	}

	report, err := s.deps.Ingester.Run(s.baseCtx, from, to)
	s.noteRun(report, err)
	var rangeErr *query.InvalidRangeError
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &rangeErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil:
		resp := newRunResponse(report, from, to)
		resp.Status = "error"
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		writeJSON(w, http.StatusOK, newRunResponse(report, from, to))
	}
}

func (s *Server) rangeParams(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	to = s.today()
	from = to.AddDate(0, 0, -(s.cfg.DefaultRangeDays - 1))

	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		d, err := query.ParseDay(raw, s.cfg.Location)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: ErrBadDate})
			return from, to, false
		}
		from = d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := query.ParseDay(raw, s.cfg.Location)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: ErrBadDate})
			return from, to, false
		}
		to = d
	}
	return from, to, true
}

// handleEvents answers ?search= (name prefix) before ?date=; with neither it
// returns today's events, ingesting today first if no run has covered it yet.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Has("search") {
		events, err := s.deps.Reader.FindByNamePrefix(r.Context(), q.Get("search"), SearchLimit)
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeEvents(w, events)
		return
	}

	var day time.Time
	if q.Has("date") {
		d, err := query.ParseDay(q.Get("date"), s.cfg.Location)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: ErrBadDate})
			return
		}
		day = d
	} else {
		day = s.today()
		s.ensureIngested(day)
	}

	events, err := s.deps.Reader.FindByStartTime(r.Context(), day, day.AddDate(0, 0, 1), DateLimit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeEvents(w, events)
}

// ensureIngested runs ingestion for day when no run has covered it yet.
// The ledger answers that when configured, otherwise the runs started by this
// server do. Failures are logged; the caller still serves whatever the store holds.
func (s *Server) ensureIngested(day time.Time) {
	if s.deps.Ledger == nil {
		if s.covered(day) {
			return
		}
	} else {
		_, err := s.deps.Ledger.LastRunForDay(s.baseCtx, day)
		if err == nil {
			return
		}
		if !errors.Is(err, runlog.ErrNoRun) {
			s.logger.Warn().Err(err).Msg("Run ledger lookup failed")
			return
		}
	}

	s.logger.Info().Str("day", day.Format(query.DateLayout)).Msg("No run covers today, ingesting")
	report, err := s.deps.Ingester.Run(s.baseCtx, day, day)
	s.noteRun(report, err)
	if err != nil && !errors.Is(err, ingest.ErrRunInProgress) {
		s.logger.Warn().Err(err).Msg("On-demand ingestion failed")
	}
}

func (s *Server) today() time.Time {
	return query.StartOfDay(s.cfg.Now().In(s.cfg.Location))
}

func (s *Server) covered(day time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coveredDay == day.Format(query.DateLayout)
}

// noteRun updates coveredDay from a finished run. A run that included today
// but failed it has already cleared today's events, so coverage is dropped.
func (s *Server) noteRun(report *ingest.Report, err error) {
	if report == nil {
		return
	}
	today := s.today()
	if !report.Includes(today) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil && report.Covers(today) {
		s.coveredDay = today.Format(query.DateLayout)
		return
	}
	s.coveredDay = ""
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("Event query failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func newRunResponse(report *ingest.Report, from, to time.Time) runResponse {
	resp := runResponse{
		Status: "completed",
		From:   from.Format(query.DateLayout),
		To:     to.Format(query.DateLayout),
	}
	if report == nil {
		return resp
	}
	resp.RunID = report.RunID
	resp.Queries = report.Queries
	resp.Succeeded = report.Succeeded
	resp.Failed = report.Failed
	resp.Events = report.Events
	resp.Deleted = report.Deleted
	resp.DurationMS = report.Duration().Milliseconds()
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, failure{
			Day:   f.Query.Date(),
			Stage: string(f.Stage),
			Error: f.Err.Error(),
		})
	}
	if report.Failed > 0 {
		resp.Status = "partial"
	}
	return resp
}

func writeEvents(w http.ResponseWriter, events []model.Event) {
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
