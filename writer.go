package issuesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/exp/maps"

	"github.com/coder/issuesheet/gsheets"
)

var ErrInvalidSheetURL = errors.New("invalid google sheet URL")

// DefaultBackoff is the wait before each attempt to save a row.
var DefaultBackoff = []time.Duration{
	0,
	time.Second,
	3 * time.Second,
	9 * time.Second,
	27 * time.Second,
	81 * time.Second,
}

// mutableColumns are compared to decide whether a stored row is stale.
// repository and id form the key and never change.
var mutableColumns = []string{
	"type", "title", "state", "url",
	"assignee", "milestone", "createdBy", "createdAt", "closedAt",
}

var sheetURLPattern = regexp.MustCompile(
	`^https://docs\.google\.com/spreadsheets/d/([^/#?]+)(?:/[^#]*)?(?:#gid=([0-9]+))?$`,
)

// ParseSheetURL extracts the spreadsheet ID and the tab gid from an URL like
// https://docs.google.com/spreadsheets/d/<id>/edit#gid=<gid>. The gid
// defaults to "0", the first tab.
func ParseSheetURL(u string) (spreadsheetID, tabID string, err error) {
	m := sheetURLPattern.FindStringSubmatch(u)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSheetURL, u)
	}
	tabID = m[2]
	if tabID == "" {
		tabID = "0"
	}
	return m[1], tabID, nil
}

// SheetWriter writes issues to a Google Sheets tab.
type SheetWriter struct {
	Logged
	Sheets gsheets.Opener
	// Backoff is the wait before each save attempt of a row. One attempt is
	// made per entry. Defaults to DefaultBackoff.
	Backoff []time.Duration
}

// SetLogger also hands the logger to the spreadsheet client when it takes
// one.
func (w *SheetWriter) SetLogger(log *slog.Logger) {
	w.Logged.SetLogger(log)
	if s, ok := w.Sheets.(interface{ SetLogger(*slog.Logger) }); ok {
		s.SetLogger(log)
	}
}

// WriteIssues replaces the tab with issues, or with props.DeltaUpdate,
// updates stale rows in place and appends the issues the tab lacks.
func (w *SheetWriter) WriteIssues(ctx context.Context, issues []Issue, props SheetProps) error {
	log := w.logger()

	sheetID, tabID, err := ParseSheetURL(props.SheetURL)
	if err != nil {
		log.Error("got an unparseable sheet URL", "url", props.SheetURL)
		return err
	}
	log.Debug("parsed sheet URL", "sheet_id", sheetID, "tab_id", tabID)

	tab, err := w.Sheets.OpenTab(ctx, sheetID, tabID)
	if err != nil {
		return err
	}
	log.Debug("loaded the sheet", "tab", tab.Title())

	if props.DeltaUpdate {
		if err := w.writeDelta(ctx, tab, issues); err != nil {
			return err
		}
		log.Debug("finished syncing the issues in the sheet")
		return nil
	}

	if err := tab.Clear(ctx); err != nil {
		return err
	}
	log.Debug("cleared the sheet")
	if err := w.writeFull(ctx, tab, issues); err != nil {
		return err
	}
	log.Debug("wrote the issues to the sheet", "count", len(issues))
	return nil
}

func (w *SheetWriter) writeFull(ctx context.Context, tab gsheets.Tab, issues []Issue) error {
	if err := tab.SetHeaderRow(ctx, Header); err != nil {
		return err
	}
	if err := tab.AddRows(ctx, issueRows(issues)); err != nil {
		return err
	}
	return nil
}

func (w *SheetWriter) writeDelta(ctx context.Context, tab gsheets.Tab, issues []Issue) error {
	log := w.logger()

	if err := tab.SetHeaderRow(ctx, Header); err != nil {
		return err
	}
	rows, err := tab.Rows(ctx)
	if err != nil {
		return err
	}
	log.Info("loaded existing rows from the sheet", "count", len(rows))

	// The first issue wins when a key repeats.
	byKey := make(map[issueKey]int, len(issues))
	for i := range issues {
		if _, ok := byKey[issues[i].key()]; !ok {
			byKey[issues[i].key()] = i
		}
	}

	matched := make(map[int]bool, len(rows))
	for _, row := range rows {
		repo, _ := row.Get("repository")
		id, _ := row.Get("id")
		index, ok := byKey[issueKey{repository: repo, id: id}]
		if !ok {
			// Rows outside the current query are kept as they are.
			log.Debug("row not in the issue list, skipping", "repository", repo, "id", id, "row", row.Number)
			continue
		}
		if err := w.updateRow(ctx, tab, row, &issues[index]); err != nil {
			return err
		}
		matched[index] = true
	}

	var newIssues []Issue
	for i := range issues {
		if !matched[i] {
			newIssues = append(newIssues, issues[i])
		}
	}
	log.Info("adding new issues at the end of the sheet", "count", len(newIssues))
	if err := tab.AddRows(ctx, issueRows(newIssues)); err != nil {
		return err
	}
	return nil
}

// updateRow saves the issue over row if any mutable column changed.
func (w *SheetWriter) updateRow(ctx context.Context, tab gsheets.Tab, row *gsheets.Row, issue *Issue) error {
	log := w.logger().With("repository", issue.Repository, "id", issue.ID, "row", row.Number)

	var changed []string
	for _, column := range mutableColumns {
		stored, present := row.Get(column)
		value, _ := issue.Field(column)
		if fieldChanged(stored, present, value) {
			changed = append(changed, column)
		}
	}
	if len(changed) == 0 {
		log.Debug("issue was already up to date")
		return nil
	}

	// Columns outside Header are written back as loaded.
	values := make(map[string]string, len(row.Values)+len(Header))
	maps.Copy(values, row.Values)
	maps.Copy(values, issue.Values())
	updated := &gsheets.Row{Number: row.Number, Values: values}
	err := w.retry(ctx, func() error {
		return tab.SaveRow(ctx, updated)
	})
	if err != nil {
		return err
	}
	row.Values = updated.Values
	log.Debug("updated row with the latest data", "changed", changed)
	return nil
}

// fieldChanged reports whether a cell must be rewritten. An absent cell and
// an empty value are equal; so are an empty cell and an empty value.
func fieldChanged(stored string, present bool, value string) bool {
	differs := !present || stored != value
	return differs && (value != "" || (present && stored != ""))
}

// retry calls fn once per backoff entry, waiting that long first, until it
// succeeds. The last error is returned.
func (w *SheetWriter) retry(ctx context.Context, fn func() error) error {
	backoff := w.Backoff
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}

	var err error
	for attempt, delay := range backoff {
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				if err == nil {
					err = ctx.Err()
				}
				w.logger().Error("gave up retrying", "attempt", attempt, "error", err)
				return err
			case <-t.C:
			}
		}
		err = fn()
		if err == nil {
			return nil
		}
		w.logger().Info("got error while executing retry",
			"attempt", attempt+1,
			"rate_limited", gsheets.IsRateLimited(err),
			"error", err,
		)
	}
	w.logger().Error("retries exhausted", "attempts", len(backoff), "error", err)
	return err
}

func issueRows(issues []Issue) [][]string {
	rows := make([][]string, len(issues))
	for i := range issues {
		rows[i] = issues[i].Row()
	}
	return rows
}
