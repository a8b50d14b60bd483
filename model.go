package issuesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// IssueType distinguishes issues from pull requests.
type IssueType string

const (
	TypeIssue       IssueType = "issue"
	TypePullRequest IssueType = "pr"
)

var ErrInvalidIssueType = errors.New("invalid issue type")

// ParseIssueTypes parses a comma separated list such as "issue, PR".
// An empty list means issues only.
func ParseIssueTypes(s string) ([]IssueType, error) {
	var types []IssueType
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		t := IssueType(part)
		if t != TypeIssue && t != TypePullRequest {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIssueType, part)
		}
		types = append(types, t)
	}
	if len(types) == 0 {
		return []IssueType{TypeIssue}, nil
	}
	return types, nil
}

// Issue is an issue or pull request normalised from a search hit.
//
// Optional fields are nil when GitHub did not set them, which is kept
// distinct from an empty string.
type Issue struct {
	ID         string
	Type       IssueType
	Title      string
	State      string
	Assignee   *string
	Milestone  *string
	CreatedBy  *string
	CreatedAt  string
	ClosedAt   *string
	URL        string
	Repository string
}

// Header is the fixed column order of every exported tab.
var Header = []string{
	"repository", "id", "type", "title", "state", "url",
	"assignee", "milestone", "createdBy", "createdAt", "closedAt",
}

// Field returns the value of the named column and whether it is set.
func (i *Issue) Field(name string) (string, bool) {
	opt := func(s *string) (string, bool) {
		if s == nil {
			return "", false
		}
		return *s, true
	}
	switch name {
	case "repository":
		return i.Repository, true
	case "id":
		return i.ID, true
	case "type":
		return string(i.Type), true
	case "title":
		return i.Title, true
	case "state":
		return i.State, true
	case "url":
		return i.URL, true
	case "assignee":
		return opt(i.Assignee)
	case "milestone":
		return opt(i.Milestone)
	case "createdBy":
		return opt(i.CreatedBy)
	case "createdAt":
		return i.CreatedAt, true
	case "closedAt":
		return opt(i.ClosedAt)
	}
	return "", false
}

// Row renders the issue in Header order. Unset fields become empty cells.
func (i *Issue) Row() []string {
	row := make([]string, len(Header))
	for n, name := range Header {
		row[n], _ = i.Field(name)
	}
	return row
}

// Values renders the issue keyed by column name.
func (i *Issue) Values() map[string]string {
	values := make(map[string]string, len(Header))
	for _, name := range Header {
		values[name], _ = i.Field(name)
	}
	return values
}

type issueKey struct {
	repository, id string
}

func (i *Issue) key() issueKey {
	return issueKey{repository: i.Repository, id: i.ID}
}

// IssueSearchCriteria selects the issues to export.
type IssueSearchCriteria struct {
	Repo  string
	Types []IssueType
	// CreatedAfter is an exclusive lower bound on the creation time. The
	// reader advances it to page past GitHub's result window.
	CreatedAfter string
}

func (c IssueSearchCriteria) has(t IssueType) bool {
	for _, v := range c.Types {
		if v == t {
			return true
		}
	}
	return false
}

// SheetProps locates the target tab and picks the sync strategy.
type SheetProps struct {
	SheetURL    string
	DeltaUpdate bool
}

// IssueReader fetches issues matching a criteria.
type IssueReader interface {
	SetLogger(*slog.Logger)
	FindByCriteria(ctx context.Context, criteria IssueSearchCriteria) ([]Issue, error)
}

// IssueWriter materialises issues into a spreadsheet tab.
type IssueWriter interface {
	SetLogger(*slog.Logger)
	WriteIssues(ctx context.Context, issues []Issue, props SheetProps) error
}
