// Package model holds the domain types shared by every stage of the
// harvest pipeline: channel configuration, platform resources fetched at
// run time, and the catalog row that is ultimately persisted.
package model

import "time"

// Channel is a configured upload source. ID is immutable once set; Name
// and Enabled may change across config edits.
type Channel struct {
	ID      string `koanf:"channel_id" validate:"required,channel_id"`
	Name    string `koanf:"name" validate:"required"`
	Enabled bool   `koanf:"enabled"`
}

// VideoRef is the lightweight identifier returned by upload listing, before
// the full metadata fetch.
type VideoRef struct {
	ID          string
	PublishedAt time.Time
}

// Video is full per-video metadata as returned by the platform's batched
// video-metadata endpoint.
type Video struct {
	ID            string
	ChannelID     string
	Title         string
	Description   string
	PublishedAt   time.Time
	DurationS     int
	ViewCount     int64
	CommentCount  int64
}

// Comment is a top-level comment. AuthorHash is a one-way hash of the
// platform's author identifier; no other author PII is retained.
type Comment struct {
	VideoID     string
	AuthorHash  string
	Text        string
	LikeCount   int64
	PublishedAt time.Time
}

// OriginKind tags where a CandidateSetlist came from.
type OriginKind int

const (
	OriginDescription OriginKind = iota
	OriginComment
)

func (k OriginKind) String() string {
	if k == OriginDescription {
		return "description"
	}
	return "comment"
}

// Origin identifies the source of a CandidateSetlist. CommentIndex,
// LikeCount and PublishedAt are only meaningful when Kind is OriginComment;
// they are exactly the fields the selector's tie-break rule (spec §4.3)
// needs.
type Origin struct {
	Kind          OriginKind
	CommentIndex  int
	LikeCount     int64
	PublishedAt   time.Time
}

// TimestampLine is one parsed (offset, song, artist) entry.
type TimestampLine struct {
	OffsetS int
	Song    string
	Artist  string // empty when no artist could be split out
	Raw     string
}

// CandidateSetlist is one parsed, ranked reading of a video's setlist.
type CandidateSetlist struct {
	Origin  Origin
	Lines   []TimestampLine
	Quality float64
}

// ArtistRatio returns the fraction of lines carrying a non-empty artist.
func (c *CandidateSetlist) ArtistRatio() float64 {
	if len(c.Lines) == 0 {
		return 0
	}
	n := 0
	for _, l := range c.Lines {
		if l.Artist != "" {
			n++
		}
	}
	return float64(n) / float64(len(c.Lines))
}

// CatalogRow is the persisted, canonical row. No field is mutated in
// place once written; updates replace rows keyed by (VideoID, OffsetS).
type CatalogRow struct {
	No              int // assigned only at serialization; not identity
	Song            string
	Artist          string
	NormalizedSong  string
	Genre           string
	OffsetS         int
	TimestampHMS    string
	StreamDate      string // ISO-8601 date, JST (UTC+9)
	VideoID         string
	ChannelID       string
	Confidence      float64
}

// Key returns the merge/uniqueness primary key (spec §3).
func (r CatalogRow) Key() CatalogRowKey {
	return CatalogRowKey{VideoID: r.VideoID, OffsetS: r.OffsetS}
}

// CatalogRowKey is the (video_id, offset_s) primary key.
type CatalogRowKey struct {
	VideoID string
	OffsetS int
}

// WatermarkStatus is the outcome of the most recent channel run.
type WatermarkStatus string

const (
	StatusOK      WatermarkStatus = "ok"
	StatusPartial WatermarkStatus = "partial"
	StatusFailed  WatermarkStatus = "failed"
)

// Watermark is the per-channel incremental-update marker.
type Watermark struct {
	ChannelID       string          `json:"channel_id"`
	LastRunAt       time.Time       `json:"last_run_at"`
	LastVideoID     string          `json:"last_video_id,omitempty"`
	LastPublishedAt time.Time       `json:"last_published_at"`
	Status          WatermarkStatus `json:"status"`
	LastError       string          `json:"last_error,omitempty"`
}

// ChannelResult is the per-channel diagnostic summary for one run,
// rendered to stderr by internal/logging and never persisted.
type ChannelResult struct {
	ChannelID  string
	Status     WatermarkStatus
	VideosSeen int
	VideosNew  int
	RowsEmitted int
	Err        error
}

// RunResult aggregates all channel results for one invocation.
type RunResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Channels   []ChannelResult
	ExitCode   int
}
