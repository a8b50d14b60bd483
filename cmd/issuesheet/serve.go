package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/coder/serpent"

	"github.com/coder/issuesheet"
)

func (r *rootCmd) serveCmd() *serpent.Command {
	var (
		jobsFile      string
		bindAddr      string
		interval      time.Duration
		webhookSecret string
	)
	return &serpent.Command{
		Use:   "serve",
		Short: "Run the configured exports periodically and on GitHub events",
		Handler: func(inv *serpent.Invocation) error {
			log := newLogger()
			log.Debug("starting issuesheet server")

			ctx, cancel := context.WithCancel(inv.Context())
			defer cancel()

			jobs, err := issuesheet.LoadJobs(jobsFile)
			if err != nil {
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

			// support Cloud Run
			if port := os.Getenv("PORT"); port != "" {
				bindAddr = ":" + port
			}

			listener, err := net.Listen("tcp", bindAddr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			log.Info("listening", "addr", listener.Addr())

			go func() {
				<-ctx.Done()
				listener.Close()
			}()

			srv := &issuesheet.Server{
				Runner:        runner,
				Jobs:          jobs,
				WebhookSecret: webhookSecret,
			}
			srv.SetLogger(log)
			srv.Init()
			defer srv.Wait()

			if interval > 0 {
				scheduler := &issuesheet.Scheduler{
					Runner:   runner,
					Jobs:     jobs,
					Interval: interval,
				}
				scheduler.SetLogger(log)
				go func() {
					_ = scheduler.Run(ctx)
				}()
			}

			err = http.Serve(listener, srv)
			if ctx.Err() != nil && errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		},
		Options: []serpent.Option{
			{
				Flag:        "jobs-file",
				Env:         "JOBS_FILE",
				Default:     "./issuesheet.yml",
				Description: "YAML file listing the exports to run.",
				Value:       serpent.StringOf(&jobsFile),
			},
			{
				Flag:        "bind-addr",
				Description: "Address to bind to.",
				Default:     "localhost:8080",
				Value:       serpent.StringOf(&bindAddr),
			},
			{
				Flag:        "interval",
				Env:         "EXPORT_INTERVAL",
				Default:     "1h",
				Description: "How often every export runs. Zero disables scheduled exports.",
				Value:       serpent.DurationOf(&interval),
			},
			{
				Env:         "WEBHOOK_SECRET",
				Description: "Secret of the GitHub webhook.",
				Value:       serpent.StringOf(&webhookSecret),
			},
		},
	}
}
