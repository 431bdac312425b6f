// Package status serves health, progress and metrics over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quorum-indexer/internal/correlator"
	"quorum-indexer/internal/metrics"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Source reports correlator progress.
type Source interface {
	Statuses() []correlator.Status
}

// Server is the HTTP status endpoint of the process.
type Server struct {
	src    Source
	log    *zap.Logger
	server *http.Server
}

// NewServer creates a server for addr; call Start to listen.
func NewServer(addr string, src Source, log *zap.Logger) *Server {
	s := &Server{src: src, log: log}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// Start listens in the background. Listen errors are logged.
func (s *Server) Start() {
	s.log.Info("status server listening", zap.String("addr", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth fails once any correlator stopped on a fatal error.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	for _, st := range s.src.Statuses() {
		if st.State == correlator.StateFatal {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":     "fatal",
				"correlator": st.Name,
				"error":      st.LastError,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Statuses())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
