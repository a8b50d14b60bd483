package issuesheet

import (
	"context"
	"log/slog"

	"github.com/google/go-github/v59/github"

	"github.com/coder/issuesheet/ghapi"
	"github.com/coder/issuesheet/gsheets"
)

// Exporter copies the issues of a repository into a spreadsheet tab.
type Exporter struct {
	Logged
	Reader IssueReader
	Writer IssueWriter
}

// ToGoogleSheets composes a search backed reader with a Google Sheets
// writer.
func ToGoogleSheets(client *github.Client, sheets gsheets.Opener) *Exporter {
	return &Exporter{
		Reader: &GitHubReader{Search: &ghapi.Search{
			Client:  client,
			Limiter: ghapi.NewSearchLimiter(),
		}},
		Writer: &SheetWriter{Sheets: sheets},
	}
}

// ExportIssues reads the issues matching criteria and writes them to the
// tab in props. It returns how many issues were read.
func (e *Exporter) ExportIssues(ctx context.Context, criteria IssueSearchCriteria, props SheetProps) (int, error) {
	issues, err := e.Reader.FindByCriteria(ctx, criteria)
	if err != nil {
		return 0, err
	}
	e.logger().Info("read issues from GitHub", "count", len(issues), "repo", criteria.Repo)

	if err := e.Writer.WriteIssues(ctx, issues, props); err != nil {
		return 0, err
	}
	return len(issues), nil
}

// SetLogger sets the logger of the exporter, its reader and its writer.
func (e *Exporter) SetLogger(log *slog.Logger) {
	e.Logged.SetLogger(log)
	e.Reader.SetLogger(log)
	e.Writer.SetLogger(log)
}
