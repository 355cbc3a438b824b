// Package logging renders the structured diagnostic output spec §7
// requires: per-channel status, counts processed, and the tail of any
// error, to standard error.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

// New builds the run logger, writing to w (os.Stderr in production).
func New(w io.Writer) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(console).With().Timestamp().Logger()
}

// Default is the process-wide stderr logger.
var Default = New(os.Stderr)

// LogRunResult emits one line per channel plus a summary line (spec §7).
func LogRunResult(log zerolog.Logger, rr model.RunResult) {
	for _, cr := range rr.Channels {
		ev := log.Info()
		if cr.Status != model.StatusOK {
			ev = log.Warn()
		}
		ev = ev.Str("channel_id", cr.ChannelID).
			Str("status", string(cr.Status)).
			Int("videos_seen", cr.VideosSeen).
			Int("videos_new", cr.VideosNew).
			Int("rows_emitted", cr.RowsEmitted)
		if cr.Err != nil {
			ev = ev.Str("error", tail(cr.Err.Error(), 500))
		}
		ev.Msg("channel run")
	}

	log.Info().
		Dur("elapsed", rr.FinishedAt.Sub(rr.StartedAt)).
		Int("channels", len(rr.Channels)).
		Int("exit_code", rr.ExitCode).
		Msg("run complete")
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
