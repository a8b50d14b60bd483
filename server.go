package issuesheet

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/coder/issuesheet/httpjson"
)

// Server triggers exports over HTTP.
type Server struct {
	Logged
	Runner *Runner
	Jobs   *Jobs
	// WebhookSecret verifies webhook deliveries when set.
	WebhookSecret string

	router *chi.Mux
	wg     sync.WaitGroup
}

func (s *Server) Init() {
	s.router = chi.NewRouter()
	s.router.Method(http.MethodPost, "/export", httpjson.Handler(s.export))
	s.router.Method(http.MethodPost, "/webhook", httpjson.Handler(s.webhook))
	s.router.Method(http.MethodGet, "/jobs", httpjson.Handler(s.jobs))
}

func (s *Server) serverError(msg error) *httpjson.Response {
	s.logger().Error("server error", "error", msg)
	return httpjson.ErrorMessage(http.StatusInternalServerError, msg)
}

// runInBackground runs jobs detached from the request.
func (s *Server) runInBackground(ctx context.Context, jobs []Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.Runner.RunAll(context.WithoutCancel(ctx), jobs)
	}()
}

// Wait blocks until background exports are done.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
