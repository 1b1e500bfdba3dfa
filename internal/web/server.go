package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/risuops/risuctl/internal/diag"
)

// Server exposes the adapter over HTTP so callers that cannot shell out
// (schedulers, MCP-style integrations) can submit requests and poll
// async jobs.
type Server struct {
	adapter *diag.Adapter
	jobs    diag.JobStore
	log     *logrus.Logger
	addr    string
}

// NewServer builds the HTTP surface around an adapter.
func NewServer(adapter *diag.Adapter, jobs diag.JobStore, log *logrus.Logger, addr string, allowedOrigins []string) (*Server, http.Handler) {
	s := &Server{adapter: adapter, jobs: jobs, log: log, addr: addr}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	mux.Use(s.logRequests)

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Post("/v1/diagnostics", s.handleExecute)
	mux.Route("/v1/jobs", func(rt chi.Router) {
		rt.Get("/", s.handleListJobs)
		rt.Get("/{id}", s.handlePoll)
	})

	return s, mux
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe(handler http.Handler) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.WithField("addr", s.addr).Info("http server listening")
	return srv.ListenAndServe()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start).Seconds(),
		}).Debug("http request")
	})
}
