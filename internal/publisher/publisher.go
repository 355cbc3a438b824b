// Package publisher projects the catalog into the two front-end JSON
// documents plus channels.json (spec §4.8, §6).
package publisher

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/atomicfile"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/catalog"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

// TimestampEntry mirrors the catalog columns with the fixed JSON key
// names spec §4.8 requires.
type TimestampEntry struct {
	Song         string  `json:"曲"`
	Artist       string  `json:"歌手-ユニット"`
	Search       string  `json:"検索用"`
	Genre        string  `json:"ジャンル"`
	Timestamp    string  `json:"タイムスタンプ"`
	StreamDate   string  `json:"配信日"`
	VideoID      string  `json:"動画ID"`
	Confidence   float64 `json:"確度スコア"`
	ChannelID    string  `json:"チャンネルID"`
}

// Document is the shape of timestamps_singing.json / timestamps_all.json.
type Document struct {
	LastUpdated string           `json:"last_updated"`
	TotalCount  int              `json:"total_count"`
	Timestamps  []TimestampEntry `json:"timestamps"`
}

// ChannelEntry is one row of channels.json.
type ChannelEntry struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}

// VideoConfidence looks up a video's confidence score by id, so the
// publisher can apply the singing-only filter (spec §4.8) without
// re-running the scorer.
type VideoConfidence func(videoID string) (float64, bool)

// Paths is the persisted-state layout for published artifacts (spec §6).
type Paths struct {
	SingingJSON string
	AllJSON     string
	ChannelsJSON string
}

// Publish writes the three JSON documents atomically. threshold is the
// singing-only cutoff (spec §4.8), normally the run config's
// confidence_threshold (spec §6), defaulting to the scorer's own
// SingingThreshold constant when the operator leaves it unset.
func Publish(cat *catalog.Catalog, channels []model.Channel, confidenceOf VideoConfidence, threshold float64, runStart time.Time, paths Paths) error {
	all := toEntries(cat.Rows)

	var singing []TimestampEntry
	for i, r := range cat.Rows {
		c, ok := confidenceOf(r.VideoID)
		if ok && c >= threshold {
			singing = append(singing, all[i])
		}
	}

	lastUpdated := runStart.UTC().Format(time.RFC3339)

	if err := writeDocument(paths.AllJSON, Document{LastUpdated: lastUpdated, TotalCount: len(all), Timestamps: all}); err != nil {
		return err
	}
	if err := writeDocument(paths.SingingJSON, Document{LastUpdated: lastUpdated, TotalCount: len(singing), Timestamps: singing}); err != nil {
		return err
	}

	entries := make([]ChannelEntry, 0, len(channels))
	for _, c := range channels {
		entries = append(entries, ChannelEntry{ID: c.ID, Name: c.Name})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return model.NewError(model.KindIO, "publisher.Publish", err)
	}
	return atomicfile.Write(paths.ChannelsJSON, data)
}

func toEntries(rows []model.CatalogRow) []TimestampEntry {
	out := make([]TimestampEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, TimestampEntry{
			Song:       r.Song,
			Artist:     r.Artist,
			Search:     r.NormalizedSong,
			Genre:      r.Genre,
			Timestamp:  r.TimestampHMS,
			StreamDate: r.StreamDate,
			VideoID:    r.VideoID,
			Confidence: r.Confidence,
			ChannelID:  r.ChannelID,
		})
	}
	return out
}

func writeDocument(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return model.NewError(model.KindIO, "publisher.writeDocument", err)
	}
	return atomicfile.Write(path, data)
}
