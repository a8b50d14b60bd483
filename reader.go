package issuesheet

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coder/issuesheet/ghapi"
	"github.com/google/go-github/v59/github"
)

const (
	searchPageSize = 100
	// GitHub only serves the first 1000 results of a search.
	searchWindowPages = 10
)

// GitHubReader reads issues and pull requests through the search API.
type GitHubReader struct {
	Logged
	Search ghapi.IssueSearcher
}

// SetLogger also hands the logger to the searcher when it takes one.
func (r *GitHubReader) SetLogger(log *slog.Logger) {
	r.Logged.SetLogger(log)
	if s, ok := r.Search.(interface{ SetLogger(*slog.Logger) }); ok {
		s.SetLogger(log)
	}
}

// FindByCriteria returns every issue matching criteria, oldest first.
//
// A single search can only page through 1000 results. When a whole window
// is full, the search is repeated with the creation time of the last
// issue as an exclusive lower bound until a page comes back empty.
func (r *GitHubReader) FindByCriteria(ctx context.Context, criteria IssueSearchCriteria) ([]Issue, error) {
	var result []Issue
	for {
		window, more, err := r.findWindow(ctx, criteria)
		if err != nil {
			return nil, err
		}
		result = append(result, window...)
		if len(window) > 0 {
			criteria.CreatedAfter = window[len(window)-1].CreatedAt
		}
		if !more {
			return result, nil
		}
		r.logger().Debug("search window exhausted, reading next batch",
			"created_after", criteria.CreatedAfter,
			"read", len(result),
		)
	}
}

// findWindow pages through one search. more is true when the window was
// exhausted without reaching an empty page.
func (r *GitHubReader) findWindow(ctx context.Context, criteria IssueSearchCriteria) (issues []Issue, more bool, err error) {
	query := r.BuildQuery(criteria)
	for page := 1; page <= searchWindowPages; page++ {
		hits, err := r.Search.SearchIssues(ctx, query, &github.SearchOptions{
			Sort:  "created",
			Order: "asc",
			ListOptions: github.ListOptions{
				Page:    page,
				PerPage: searchPageSize,
			},
		})
		if err != nil {
			return nil, false, err
		}
		r.logger().Debug("retrieved issue page", "page", page, "count", len(hits))
		if len(hits) == 0 {
			r.logger().Debug("page was empty, issue list was fully read")
			return issues, false, nil
		}
		for _, hit := range hits {
			issues = append(issues, r.normalize(hit))
		}
	}
	return issues, true, nil
}

// BuildQuery renders criteria as a search query. Asking for both issues
// and pull requests needs no type qualifier.
func (r *GitHubReader) BuildQuery(criteria IssueSearchCriteria) string {
	var sb strings.Builder
	sb.WriteString("repo:" + criteria.Repo)

	wantIssues, wantPRs := criteria.has(TypeIssue), criteria.has(TypePullRequest)
	switch {
	case wantIssues && !wantPRs:
		sb.WriteString(" is:issue")
	case wantPRs && !wantIssues:
		sb.WriteString(" is:pr")
	}
	if criteria.CreatedAfter != "" {
		sb.WriteString(" created:>" + criteria.CreatedAfter)
	}

	query := sb.String()
	r.logger().Debug("built search query", "query", query, "repo", criteria.Repo, "types", criteria.Types)
	return query
}

func (r *GitHubReader) normalize(hit *github.Issue) Issue {
	issue := Issue{
		ID:         strconv.Itoa(hit.GetNumber()),
		Type:       TypeIssue,
		Title:      hit.GetTitle(),
		State:      hit.GetState(),
		CreatedAt:  formatTimestamp(hit.GetCreatedAt()),
		URL:        hit.GetHTMLURL(),
		Repository: r.repoFromURL(hit.GetRepositoryURL()),
	}
	if hit.IsPullRequest() {
		issue.Type = TypePullRequest
	}
	if hit.Assignee != nil {
		issue.Assignee = github.String(hit.Assignee.GetLogin())
	}
	if hit.Milestone != nil {
		issue.Milestone = github.String(hit.Milestone.GetTitle())
	}
	if hit.User != nil {
		issue.CreatedBy = github.String(hit.User.GetLogin())
	}
	if hit.ClosedAt != nil {
		issue.ClosedAt = github.String(formatTimestamp(*hit.ClosedAt))
	}
	return issue
}

// repoFromURL turns https://api.github.com/repos/owner/name into
// owner/name. The search API does not return the repository otherwise.
func (r *GitHubReader) repoFromURL(u string) string {
	parts := strings.Split(u, "/")
	if len(parts) <= 4 {
		return ""
	}
	return strings.Join(parts[4:], "/")
}

func formatTimestamp(ts github.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
