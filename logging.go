package issuesheet

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

var (
	consoleOnce sync.Once
	console     *slog.Logger
)

// ConsoleLogger is the logger components use until one is set.
func ConsoleLogger() *slog.Logger {
	consoleOnce.Do(func() {
		console = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen + " 05.999",
		}))
	})
	return console
}

// Logged is embedded by every component that logs.
type Logged struct {
	Log *slog.Logger
}

func (l *Logged) SetLogger(log *slog.Logger) {
	l.Log = log
}

func (l *Logged) logger() *slog.Logger {
	if l.Log == nil {
		return ConsoleLogger()
	}
	return l.Log
}
