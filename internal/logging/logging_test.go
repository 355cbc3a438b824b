package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

func TestLogRunResult_EmitsOneLinePerChannelPlusSummary(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	rr := model.RunResult{
		StartedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC),
		ExitCode:   2,
		Channels: []model.ChannelResult{
			{ChannelID: "UC1", Status: model.StatusOK, VideosSeen: 3, VideosNew: 1, RowsEmitted: 5},
			{ChannelID: "UC2", Status: model.StatusPartial, Err: errors.New("quota exceeded")},
		},
	}

	LogRunResult(log, rr)

	out := buf.String()
	assert.Contains(t, out, "UC1")
	assert.Contains(t, out, "UC2")
	assert.Contains(t, out, "quota exceeded")
	assert.Contains(t, out, "run complete")
}

func TestTail_TruncatesLongStringsToLastN(t *testing.T) {
	assert.Equal(t, "short", tail("short", 10))
	assert.Equal(t, "world", tail("hello world", 5))
}
