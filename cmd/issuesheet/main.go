package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"github.com/beatlabs/github-auth/app"
	appkey "github.com/beatlabs/github-auth/key"
	"github.com/coder/serpent"
	"github.com/joho/godotenv"
	"github.com/jussi-kalliokoski/slogdriver"
	"github.com/lmittmann/tint"

	"github.com/coder/issuesheet"
	"github.com/coder/issuesheet/ghapi"
	"github.com/coder/issuesheet/gsheets"
)

func newLogger() *slog.Logger {
	gcpProjectID, err := metadata.ProjectID()
	if err != nil {
		logOpts := &tint.Options{
			AddSource:  true,
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen + " 05.999",
		}
		return slog.New(tint.NewHandler(os.Stderr, logOpts))
	}

	return slog.New(
		slogdriver.NewHandler(
			os.Stderr,
			slogdriver.Config{
				ProjectID: gcpProjectID,
				Level:     slog.LevelDebug,
			},
		),
	)
}

type rootCmd struct {
	githubToken    string
	appPEMFile     string
	appPEMEnv      string
	appID          string
	sheetCreds     string
	sheetCredsFile string

	job   issuesheet.Job
	delta bool
}

// appConfig returns nil when no GitHub App is configured.
func (r *rootCmd) appConfig() (*app.Config, error) {
	if r.appID == "" {
		return nil, nil
	}
	var (
		err    error
		appKey *rsa.PrivateKey
	)
	switch {
	case r.appPEMEnv != "":
		appKey, err = appkey.Parse([]byte(r.appPEMEnv))
		if err != nil {
			return nil, fmt.Errorf("parse app key: %w", err)
		}
	case r.appPEMFile != "":
		appKey, err = appkey.FromFile(r.appPEMFile)
		if err != nil {
			return nil, fmt.Errorf("load app key: %w", err)
		}
	default:
		return nil, errors.New("app-id needs app-pem-file or GITHUB_APP_PEM")
	}

	appConfig, err := app.NewConfig(r.appID, appKey)
	if err != nil {
		return nil, fmt.Errorf("create app config: %w", err)
	}

	return appConfig, nil
}

func (r *rootCmd) clients() (*ghapi.Clients, error) {
	appConfig, err := r.appConfig()
	if err != nil {
		return nil, err
	}
	return &ghapi.Clients{
		Token:     strings.TrimSpace(r.githubToken),
		AppConfig: appConfig,
	}, nil
}

func (r *rootCmd) sheets(ctx context.Context, log *slog.Logger) (*gsheets.Client, error) {
	creds := []byte(r.sheetCreds)
	if len(creds) == 0 {
		if r.sheetCredsFile == "" {
			return nil, errors.New("GSHEET_AUTH or sheet-creds-file is required")
		}
		var err error
		creds, err = os.ReadFile(r.sheetCredsFile)
		if err != nil {
			return nil, fmt.Errorf("read sheet credentials: %w", err)
		}
	}
	client, err := gsheets.NewClient(ctx, creds)
	if err != nil {
		return nil, err
	}
	client.SetLogger(log)
	return client, nil
}

func (r *rootCmd) options() []serpent.Option {
	return []serpent.Option{
		{
			Flag:        "app-id",
			Env:         "GITHUB_APP_ID",
			Description: "GitHub App ID. When set, repositories are read as the app installation instead of with GITHUB_TOKEN.",
			Value:       serpent.StringOf(&r.appID),
		},
		{
			Flag:        "app-pem-file",
			Description: "Path to the GitHub App PEM file.",
			Value:       serpent.StringOf(&r.appPEMFile),
		},
		{
			Flag:        "sheet-creds-file",
			Description: "Path to the Google service account credentials.",
			Value:       serpent.StringOf(&r.sheetCredsFile),
		},
		// SECRETS: only configurable via environment variables.
		{
			Env:         "GITHUB_TOKEN",
			Description: "GitHub token used to search issues.",
			Value:       serpent.StringOf(&r.githubToken),
		},
		{
			Env:         "GITHUB_APP_PEM",
			Description: "APP PEM in raw form.",
			Value:       serpent.StringOf(&r.appPEMEnv),
		},
		{
			Env:         "GSHEET_AUTH",
			Description: "Google service account credentials in raw JSON form.",
			Value:       serpent.StringOf(&r.sheetCreds),
		},
	}
}

func (r *rootCmd) exportCmd() *serpent.Command {
	return &serpent.Command{
		Use:   "issuesheet",
		Short: "issuesheet exports the issues and pull requests of a GitHub repository to a Google Sheets tab",
		Children: []*serpent.Command{
			r.serveCmd(),
			r.dumpCmd(),
		},
		Handler: func(inv *serpent.Invocation) error {
			log := newLogger()
			ctx := inv.Context()

			job := r.job
			job.DeltaUpdate = r.delta
			if err := job.Validate(); err != nil {
				return err
			}

			clients, err := r.clients()
			if err != nil {
				return fmt.Errorf("github: %w", err)
			}
			sheets, err := r.sheets(ctx, log)
			if err != nil {
				return fmt.Errorf("sheets: %w", err)
			}

			runner := &issuesheet.Runner{
				NewExporter: issuesheet.ExporterFor(clients, sheets),
			}
			runner.SetLogger(log)

			n, err := runner.Run(ctx, job)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(inv.Stdout, "exported %d issues from %s\n", n, job.Repository)
			return nil
		},
		Options: append(r.options(),
			serpent.Option{
				Flag:        "repository",
				Env:         "GITHUB_REPO",
				Description: "Repository to export, as owner/name.",
				Value:       serpent.StringOf(&r.job.Repository),
			},
			serpent.Option{
				Flag:        "issue-types",
				Env:         "ISSUE_TYPES",
				Default:     "issue",
				Description: "Comma separated types to export: issue, pr.",
				Value:       serpent.StringOf(&r.job.Types),
			},
			serpent.Option{
				Flag:        "sheet-url",
				Env:         "GSHEET_URL",
				Description: "URL of the target tab, https://docs.google.com/spreadsheets/d/<id>/edit#gid=<tab>.",
				Value:       serpent.StringOf(&r.job.SheetURL),
			},
			serpent.Option{
				Flag:        "delta-update",
				Env:         "DELTA_UPDATE",
				Default:     "false",
				Description: "Update changed rows and append new ones instead of replacing the tab.",
				Value:       serpent.BoolOf(&r.delta),
			},
		),
	}
}

func main() {
	// A local .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("load .env: " + err.Error() + "\n")
		os.Exit(1)
	}

	var root rootCmd
	cmd := root.exportCmd()

	err := cmd.Invoke().WithOS().Run()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
