// Package catalog owns the canonical tabular dataset: load/merge/dedupe/
// sort/save of CatalogRow (spec §4.6), including the CSV on-disk format
// that is a stability contract (spec §6).
package catalog

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/atomicfile"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/timestamp"
)

// Header is the stability-contract CSV header (spec §6), written with a
// UTF-8 BOM.
var Header = []string{
	"No", "曲", "歌手-ユニット", "検索用", "ジャンル", "タイムスタンプ", "配信日", "動画ID", "確度スコア", "チャンネルID",
}

const utf8BOM = "﻿"

// Order is a sort key (spec §4.6).
type Order string

const (
	OrderDateDesc  Order = "date-desc"
	OrderDateAsc   Order = "date-asc"
	OrderSongAsc   Order = "song-asc"
	OrderArtistAsc Order = "artist-asc"
)

// Catalog is the in-memory canonical dataset.
type Catalog struct {
	Rows []model.CatalogRow
}

// Load reads the canonical CSV file; a missing file yields an empty
// catalog (spec §4.6 load()).
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{}, nil
		}
		return nil, model.NewError(model.KindIO, "catalog.Load", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, model.NewError(model.KindIO, "catalog.Load", err)
	}
	if len(records) == 0 {
		return &Catalog{}, nil
	}

	rows := make([]model.CatalogRow, 0, len(records)-1)
	for _, rec := range records[1:] { // skip header
		if len(rec) < 10 {
			continue
		}
		no, _ := strconv.Atoi(strings.TrimPrefix(rec[0], utf8BOM))
		offsetS, conf := 0, 0.0
		if s, ok := timestamp.ParseHMS(rec[5]); ok {
			offsetS = s
		}
		conf, _ = strconv.ParseFloat(rec[8], 64)
		rows = append(rows, model.CatalogRow{
			No:             no,
			Song:           rec[1],
			Artist:         rec[2],
			NormalizedSong: rec[3],
			Genre:          rec[4],
			TimestampHMS:   rec[5],
			OffsetS:        offsetS,
			StreamDate:     rec[6],
			VideoID:        rec[7],
			Confidence:     conf,
			ChannelID:      rec[9],
		})
	}
	return &Catalog{Rows: rows}, nil
}

// Merge implements spec §4.6 merge(): inserts rows whose key is absent;
// for an existing key, replaces only when the new row has strictly higher
// confidence, or fills a previously-empty artist.
func (c *Catalog) Merge(newRows []model.CatalogRow) error {
	index := make(map[model.CatalogRowKey]int, len(c.Rows))
	for i, r := range c.Rows {
		if _, dup := index[r.Key()]; dup {
			return model.NewError(model.KindIntegrity, "catalog.Merge", nil)
		}
		index[r.Key()] = i
	}

	for _, nr := range newRows {
		key := nr.Key()
		i, exists := index[key]
		if !exists {
			index[key] = len(c.Rows)
			c.Rows = append(c.Rows, nr)
			continue
		}
		existing := c.Rows[i]
		if nr.Confidence > existing.Confidence || (existing.Artist == "" && nr.Artist != "") {
			c.Rows[i] = nr
		}
	}
	return nil
}

// DedupeGlobal implements spec §4.6 dedupe_global(): collapses rows whose
// (normalized_song, normalized_artist, video_id) collide into the one
// with the highest confidence, tie-broken by earliest offset_s.
func (c *Catalog) DedupeGlobal() {
	type groupKey struct {
		song, artist, videoID string
	}
	best := make(map[groupKey]model.CatalogRow)
	order := make([]groupKey, 0, len(c.Rows))

	for _, r := range c.Rows {
		gk := groupKey{NormalizeSong(r.Song), NormalizeSong(r.Artist), r.VideoID}
		cur, ok := best[gk]
		if !ok {
			best[gk] = r
			order = append(order, gk)
			continue
		}
		if r.Confidence > cur.Confidence ||
			(r.Confidence == cur.Confidence && r.OffsetS < cur.OffsetS) {
			best[gk] = r
		}
	}

	rows := make([]model.CatalogRow, 0, len(order))
	for _, gk := range order {
		rows = append(rows, best[gk])
	}
	c.Rows = rows
}

// collator is shared across Sort calls; safe for concurrent read-only use
// once built, and we only ever call Sort from the single post-merge step.
var jaCollator = collate.New(language.Japanese)

// Sort orders rows by the given key (spec §4.6). Song/artist orderings use
// Japanese collation (golang.org/x/text/collate); date orderings are plain
// lexicographic on the ISO-8601 stream_date, which sorts correctly as a
// string.
func (c *Catalog) Sort(order Order) {
	rows := c.Rows
	switch order {
	case OrderDateDesc:
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].StreamDate > rows[j].StreamDate })
	case OrderDateAsc:
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].StreamDate < rows[j].StreamDate })
	case OrderSongAsc:
		sort.SliceStable(rows, func(i, j int) bool { return jaCollator.CompareString(rows[i].Song, rows[j].Song) < 0 })
	case OrderArtistAsc:
		sort.SliceStable(rows, func(i, j int) bool { return jaCollator.CompareString(rows[i].Artist, rows[j].Artist) < 0 })
	}
}

// Save writes the catalog atomically as the stability-contract CSV (spec
// §6): UTF-8 BOM, RFC-4180 quoting, No assigned only at serialization.
func (c *Catalog) Save(path string) error {
	var sb strings.Builder
	sb.WriteString(utf8BOM)

	w := csv.NewWriter(&sb)
	if err := w.Write(Header); err != nil {
		return model.NewError(model.KindIO, "catalog.Save", err)
	}

	for i, r := range c.Rows {
		rec := []string{
			strconv.Itoa(i + 1),
			r.Song,
			r.Artist,
			r.NormalizedSong,
			r.Genre,
			r.TimestampHMS,
			r.StreamDate,
			r.VideoID,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			r.ChannelID,
		}
		if err := w.Write(rec); err != nil {
			return model.NewError(model.KindIO, "catalog.Save", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return model.NewError(model.KindIO, "catalog.Save", err)
	}

	return atomicfile.Write(path, []byte(sb.String()))
}

// NormalizeSong implements spec §4.6's normalized_song definition:
// whitespace-fold, case-fold, full-width-digit fold, NFKC normalize.
func NormalizeSong(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(strings.TrimSpace(s))
}
