// Command issuesheet-action runs one export as a GitHub Actions step.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sethvargo/go-githubactions"

	"github.com/coder/issuesheet"
	"github.com/coder/issuesheet/ghapi"
	"github.com/coder/issuesheet/gsheets"
)

type inputs struct {
	job        issuesheet.Job
	token      string
	sheetCreds string
}

func readInputs(action *githubactions.Action) (*inputs, error) {
	in := &inputs{
		token:      strings.TrimSpace(action.GetInput("github-token")),
		sheetCreds: action.GetInput("sheet-creds"),
		job: issuesheet.Job{
			Repository: action.GetInput("repository"),
			Types:      action.GetInput("issue-types"),
			SheetURL:   action.GetInput("sheet-url"),
		},
	}

	if in.job.Repository == "" {
		gh, err := action.Context()
		if err != nil {
			return nil, fmt.Errorf("read workflow context: %w", err)
		}
		owner, repo := gh.Repo()
		if owner != "" && repo != "" {
			in.job.Repository = owner + "/" + repo
		}
	}

	if v := action.GetInput("delta-update"); v != "" {
		delta, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse delta-update %q: %w", v, err)
		}
		in.job.DeltaUpdate = delta
	}

	if in.sheetCreds == "" {
		return nil, fmt.Errorf("input sheet-creds is required")
	}
	if err := in.job.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func run(ctx context.Context, action *githubactions.Action, log *slog.Logger) error {
	in, err := readInputs(action)
	if err != nil {
		return err
	}
	if in.token != "" {
		action.AddMask(in.token)
	}

	criteria, err := in.job.Criteria()
	if err != nil {
		return err
	}

	sheets, err := gsheets.NewClient(ctx, []byte(in.sheetCreds))
	if err != nil {
		return err
	}
	exporter := issuesheet.ToGoogleSheets(ghapi.NewTokenClient(ctx, in.token), sheets)
	exporter.SetLogger(log)

	n, err := exporter.ExportIssues(ctx, criteria, in.job.Props())
	if err != nil {
		return err
	}
	action.SetOutput("count", strconv.Itoa(n))
	return nil
}

// failureMessage renders a recovered panic value.
func failureMessage(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("an unknown error occurred: %v", v)
}

func main() {
	action := githubactions.New()
	log := slog.New(newActionHandler(action, slog.LevelDebug))

	defer func() {
		if v := recover(); v != nil {
			action.Fatalf("%s", failureMessage(v))
		}
	}()

	if err := run(context.Background(), action, log); err != nil {
		action.Fatalf("%s", err)
	}
}
