package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tkbcal/internal/config"
	"tkbcal/internal/export"
	appLog "tkbcal/internal/log"
	"tkbcal/internal/model"
	"tkbcal/internal/notify"
	"tkbcal/internal/sheet"
	"tkbcal/internal/timetable"
)

const maxUploadBytes = 10 << 20

// Options carries the collaborators' settings the handlers need.
type Options struct {
	Sheet    sheet.Options
	Plan     notify.PlanOptions
	Location *time.Location
	Now      func() time.Time
}

// Server exposes the stored timetable over HTTP.
type Server struct {
	cfg  *config.Config
	svc  *timetable.Service
	opts Options
	mux  *http.ServeMux
}

func NewServer(cfg *config.Config, svc *timetable.Service, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Plan.Location == nil {
		opts.Plan.Location = opts.Location
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		cfg:  cfg,
		svc:  svc,
		opts: opts,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Serve runs the HTTP server until ctx is canceled, then shuts it down.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/timetable", s.handleTimetableInfo)
	s.mux.HandleFunc("POST /api/timetable", s.handleUpload)
	s.mux.HandleFunc("DELETE /api/timetable", s.handleClear)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/subjects", s.handleSubjects)
	s.mux.HandleFunc("GET /api/reminders", s.handleReminders)
	s.mux.HandleFunc("GET /export/calendar.csv", s.handleExportCSV)
	s.mux.HandleFunc("GET /export/calendar.ics", s.handleExportICS)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards every path except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tkbcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type timetableInfo struct {
	Found      bool      `json:"found"`
	FileName   string    `json:"file_name,omitempty"`
	UploadedAt time.Time `json:"uploaded_at,omitempty"`
	Rows       int       `json:"rows"`
	Dates      int       `json:"dates"`
	Subjects   []string  `json:"subjects"`
}

func infoOf(cur timetable.Current) timetableInfo {
	return timetableInfo{
		Found:      cur.Found,
		FileName:   cur.Snapshot.FileName,
		UploadedAt: cur.Snapshot.UploadedAt,
		Rows:       len(cur.Snapshot.Rows),
		Dates:      len(cur.Result.ScheduleByDate),
		Subjects:   cur.Result.Subjects,
	}
}

func (s *Server) handleTimetableInfo(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, infoOf(cur))
}

// handleUpload accepts a multipart "file" field holding an .xlsx or .xls
// timetable export and makes it the current timetable.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	rows, err := sheet.Decode(file, hdr.Filename, s.opts.Sheet)
	if err != nil {
		appLog.Error("upload decode failed", err, "file", hdr.Filename)
		switch {
		case errors.Is(err, sheet.ErrUnsupportedFormat):
			writeError(w, http.StatusUnsupportedMediaType, "unsupported spreadsheet format")
		case errors.Is(err, sheet.ErrNoRows):
			writeError(w, http.StatusUnprocessableEntity, "no data found in spreadsheet")
		default:
			writeError(w, http.StatusBadRequest, "failed to read spreadsheet")
		}
		return
	}

	cur, err := s.svc.Import(r.Context(), hdr.Filename, rows)
	if errors.Is(err, timetable.ErrEmptySchedule) {
		writeError(w, http.StatusUnprocessableEntity, "no schedule found in spreadsheet")
		return
	}
	if err != nil {
		appLog.Error("upload import failed", err, "file", hdr.Filename)
		writeError(w, http.StatusInternalServerError, "failed to store timetable")
		return
	}

	writeJSON(w, http.StatusCreated, infoOf(cur))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Clear(r.Context()); err != nil {
		appLog.Error("clear timetable failed", err)
		writeError(w, http.StatusInternalServerError, "failed to clear timetable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dayResponse struct {
	Date    string                `json:"date"`
	Entries []model.ScheduleEntry `json:"entries"`
}

// handleSchedule returns the whole date index, or one day with ?date=.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.current(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		writeJSON(w, http.StatusOK, cur.Result.ScheduleByDate)
		return
	}
	entries := cur.Result.Entries(date)
	if entries == nil {
		entries = []model.ScheduleEntry{}
	}
	writeJSON(w, http.StatusOK, dayResponse{Date: date, Entries: entries})
}

type subjectsResponse struct {
	Subjects      []string                      `json:"subjects"`
	SubjectGroups map[string]model.SubjectGroup `json:"subjectGroups"`
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, subjectsResponse{
		Subjects:      cur.Result.Subjects,
		SubjectGroups: cur.Result.SubjectGroups,
	})
}

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, notify.Plan(cur.Result, s.opts.Now(), s.opts.Plan))
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.current(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.csv"`)
	if err := export.WriteCSV(w, cur.Result, s.svc.Options().Periods); err != nil {
		appLog.Error("csv export failed", err)
	}
}

func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.current(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	err := export.WriteICS(w, cur.Result, export.ICSOptions{
		Periods:  s.svc.Options().Periods,
		Location: s.opts.Location,
		Now:      s.opts.Now,
	})
	if err != nil {
		appLog.Error("ics export failed", err)
	}
}

func (s *Server) current(w http.ResponseWriter, r *http.Request) (timetable.Current, bool) {
	cur, err := s.svc.Current(r.Context())
	if err != nil {
		appLog.Error("load timetable failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load timetable")
		return cur, false
	}
	return cur, true
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
