package issuesheet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coder/issuesheet/ghapi"
	"github.com/coder/issuesheet/gsheets"
)

// Runner executes export jobs one at a time so that the process is the only
// writer of the sheets it manages.
type Runner struct {
	Logged
	// NewExporter builds the exporter of a repository.
	NewExporter func(ctx context.Context, repository string) (*Exporter, error)

	mu sync.Mutex
}

// ExporterFor returns a NewExporter that searches with a client of clients
// and writes through sheets.
func ExporterFor(clients *ghapi.Clients, sheets gsheets.Opener) func(context.Context, string) (*Exporter, error) {
	return func(ctx context.Context, repository string) (*Exporter, error) {
		client, err := clients.ForRepo(ctx, repository)
		if err != nil {
			return nil, err
		}
		return ToGoogleSheets(client, sheets), nil
	}
}

// Result is the outcome of one job.
type Result struct {
	Repository string `json:"repository"`
	SheetURL   string `json:"sheet_url"`
	Count      int    `json:"count"`
	Error      string `json:"error,omitempty"`
}

// Run exports a single job and returns the number of issues written.
func (r *Runner) Run(ctx context.Context, job Job) (int, error) {
	criteria, err := job.Criteria()
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.logger().With(
		"run", uuid.NewString(),
		"repo", job.Repository,
	)

	exporter, err := r.NewExporter(ctx, job.Repository)
	if err != nil {
		log.Error("create exporter", "error", err)
		return 0, fmt.Errorf("create exporter for %s: %w", job.Repository, err)
	}
	exporter.SetLogger(log)

	start := time.Now()
	n, err := exporter.ExportIssues(ctx, criteria, job.Props())
	if err != nil {
		log.Error("export failed", "error", err)
		return 0, fmt.Errorf("export %s: %w", job.Repository, err)
	}
	log.Info("export finished",
		"count", n,
		"delta", job.DeltaUpdate,
		"took", time.Since(start).Truncate(time.Millisecond),
	)
	return n, nil
}

// RunAll runs every job in order. A failing job does not stop the others;
// the failures are joined into the returned error.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, 0, len(jobs))
	var errs []error
	for _, job := range jobs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		n, err := r.Run(ctx, job)
		result := Result{
			Repository: job.Repository,
			SheetURL:   job.SheetURL,
			Count:      n,
		}
		if err != nil {
			result.Error = err.Error()
			errs = append(errs, err)
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}
