package ghapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/retry"
	"github.com/google/go-github/v59/github"
	"golang.org/x/time/rate"
)

// IssueSearcher runs a single page of an issue search.
type IssueSearcher interface {
	SearchIssues(ctx context.Context, query string, opts *github.SearchOptions) ([]*github.Issue, error)
}

// Search runs issue searches against the GitHub API.
//
// Server errors and secondary rate limits are retried with backoff. Every
// other error is returned as go-github reported it.
type Search struct {
	Client *github.Client
	Log    *slog.Logger
	// Limiter paces requests when set.
	Limiter *rate.Limiter

	MaxAttempts int
	RetryFloor  time.Duration
	RetryCeil   time.Duration
}

// NewSearchLimiter allows the 30 authenticated searches per minute GitHub
// grants, with a small burst.
func NewSearchLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(2*time.Second), 5)
}

func (s *Search) SetLogger(log *slog.Logger) {
	s.Log = log
}

func (s *Search) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

func (s *Search) SearchIssues(ctx context.Context, query string, opts *github.SearchOptions) ([]*github.Issue, error) {
	var (
		floor       = s.RetryFloor
		ceil        = s.RetryCeil
		maxAttempts = s.MaxAttempts
	)
	if floor == 0 {
		floor = time.Second
	}
	if ceil == 0 {
		ceil = time.Minute
	}
	if maxAttempts == 0 {
		maxAttempts = 5
	}

	ret := retry.New(floor, ceil)
	for attempt := 1; ; attempt++ {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		result, _, err := s.Client.Search.Issues(ctx, query, opts)
		if err == nil {
			return result.Issues, nil
		}
		if attempt < maxAttempts && retryable(err) && ret.Wait(ctx) {
			s.log().Warn("retrying issue search",
				"query", query,
				"page", pageOf(opts),
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		return nil, err
	}
}

func pageOf(opts *github.SearchOptions) int {
	if opts == nil {
		return 0
	}
	return opts.Page
}

func retryable(err error) bool {
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode >= 500
	}
	return false
}
