// Package web serves the daemon's read-only status surface: pending
// schedules, health and prometheus metrics. Informational only; the
// pipeline never depends on it.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/javierhonduco/sweeper/database"
)

const pendingLimit = 100

// Server exposes the schedule store over HTTP.
type Server struct {
	db  *database.DB
	log *slog.Logger
}

func NewServer(db *database.DB, log *slog.Logger) *Server {
	return &Server{db: db, log: log}
}

type scheduleRow struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	Name     string `json:"name"`
	ExpireAt int64  `json:"expireAt"`
}

// Handler returns the status mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/schedules", s.handleSchedules)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ListenAndServe blocks serving the status interface on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.ListPending(pendingLimit)
	if err != nil {
		s.log.Error("listing pending schedules", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rows := make([]scheduleRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, scheduleRow{
			ID:       rec.ID,
			Path:     rec.Path,
			Name:     rec.Name,
			ExpireAt: rec.ExpireAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		s.log.Error("encoding schedules response", "error", err)
	}
}
