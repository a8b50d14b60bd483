package issuesheet

import (
	"net/http"

	"github.com/coder/issuesheet/httpjson"
)

func (s *Server) jobs(w http.ResponseWriter, r *http.Request) *httpjson.Response {
	return httpjson.OK(httpjson.M{
		"repositories": s.Jobs.Repositories(),
		"exports":      s.Jobs.Exports,
	})
}

// export runs the jobs of the repository query parameter, or every job
// without one, and waits for them.
func (s *Server) export(w http.ResponseWriter, r *http.Request) *httpjson.Response {
	repository := r.URL.Query().Get("repository")

	jobs := s.Jobs.ForRepository(repository)
	if len(jobs) == 0 {
		return httpjson.Errorf(http.StatusNotFound, "no export configured for %s", repository)
	}

	results, err := s.Runner.RunAll(r.Context(), jobs)
	if err != nil {
		s.logger().Error("triggered export", "repository", repository, "error", err)
		return &httpjson.Response{
			Status: http.StatusBadGateway,
			Body:   httpjson.M{"error": err.Error(), "results": results},
		}
	}

	return httpjson.OK(httpjson.M{"results": results})
}
