package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/topicbench/offtopic/internal/dataset"
	"github.com/topicbench/offtopic/internal/session"
	"github.com/topicbench/offtopic/internal/store"
)

// Server hosts the annotation UI: a JSON API over the loaded dataset plus
// the single active session. One annotator at a time; every action runs to
// completion under the session mutex.
type Server struct {
	router *chi.Mux
	http   *http.Server
	split  string
	index  *dataset.Index
	store  *store.Store
	logger *slog.Logger

	mu   sync.Mutex
	sess *session.Session
}

func NewServer(port int, split string, index *dataset.Index, st *store.Store, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		http:   &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: router},
		split:  split,
		index:  index,
		store:  st,
		logger: logger,
	}

	router.Get("/", s.ui)
	router.Get("/health", s.health)
	router.Get("/api/v1/status", s.status)

	router.Get("/api/v1/domains", s.domains)
	router.Get("/api/v1/scenarios", s.scenarios)
	router.Get("/api/v1/rows", s.rows)
	router.Get("/api/v1/row", s.row)

	router.Post("/api/v1/session", s.sessionCreate)
	router.Get("/api/v1/session", s.sessionGet)
	router.Post("/api/v1/session/rules/segment", s.rulesSegment)
	router.Post("/api/v1/session/rules", s.rulesAdd)
	router.Post("/api/v1/session/annotations", s.annotationAdd)
	router.Delete("/api/v1/session/annotations/{id}", s.annotationRemove)
	router.Post("/api/v1/session/save", s.sessionSave)
	router.Post("/api/v1/session/load", s.sessionLoad)
	router.Get("/api/v1/session/export", s.sessionExport)

	router.Get("/api/v1/saves", s.savesList)
	router.Delete("/api/v1/saves/{name}", s.savesDelete)

	return s
}

// Start serves until Shutdown is called. A shutdown-triggered close is
// not an error.
func (s *Server) Start() error {
	s.logger.Info("annotation UI starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError surfaces a failure as a JSON body. Validation states use 422
// so the UI can show them inline without treating them as crashes.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	annotations := 0
	active := false
	if s.sess != nil {
		active = true
		annotations = len(s.sess.Annotations())
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"tool":           "offtopic",
		"split":          s.split,
		"dataset_rows":   s.index.Len(),
		"session_active": active,
		"annotations":    annotations,
	})
}
