package publisher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/catalog"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

func testPaths(t *testing.T) Paths {
	dir := t.TempDir()
	return Paths{
		SingingJSON:  filepath.Join(dir, "timestamps_singing.json"),
		AllJSON:      filepath.Join(dir, "timestamps_all.json"),
		ChannelsJSON: filepath.Join(dir, "channels.json"),
	}
}

func sampleCatalog() *catalog.Catalog {
	return &catalog.Catalog{Rows: []model.CatalogRow{
		{Song: "夜に駆ける", Artist: "YOASOBI", VideoID: "v1", Confidence: 0.9},
		{Song: "chit-chat clip", Artist: "", VideoID: "v2", Confidence: 0.2},
	}}
}

func confidenceByVideo(cat *catalog.Catalog) VideoConfidence {
	byVideo := map[string]float64{}
	for _, r := range cat.Rows {
		byVideo[r.VideoID] = r.Confidence
	}
	return func(videoID string) (float64, bool) { v, ok := byVideo[videoID]; return v, ok }
}

func TestPublish_SingingRowsAreSubsetOfAllRows(t *testing.T) {
	cat := sampleCatalog()
	paths := testPaths(t)
	channels := []model.Channel{{ID: "UCabc", Name: "Example"}}

	require.NoError(t, Publish(cat, channels, confidenceByVideo(cat), 0.7, time.Now(), paths))

	all := readDocument(t, paths.AllJSON)
	singing := readDocument(t, paths.SingingJSON)

	assert.Equal(t, 2, all.TotalCount)
	assert.Equal(t, 1, singing.TotalCount)
	assert.Equal(t, "夜に駆ける", singing.Timestamps[0].Song)
}

func TestPublish_ThresholdIsInclusive(t *testing.T) {
	cat := &catalog.Catalog{Rows: []model.CatalogRow{{Song: "s", VideoID: "v1", Confidence: 0.7}}}
	paths := testPaths(t)

	require.NoError(t, Publish(cat, nil, confidenceByVideo(cat), 0.7, time.Now(), paths))

	singing := readDocument(t, paths.SingingJSON)
	assert.Equal(t, 1, singing.TotalCount)
}

func TestPublish_WritesChannelsJSON(t *testing.T) {
	cat := sampleCatalog()
	paths := testPaths(t)
	channels := []model.Channel{{ID: "UCabc", Name: "Example Channel"}}

	require.NoError(t, Publish(cat, channels, confidenceByVideo(cat), 0.7, time.Now(), paths))

	data, err := os.ReadFile(paths.ChannelsJSON)
	require.NoError(t, err)
	var entries []ChannelEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "UCabc", entries[0].ID)
}

func TestPublish_EntriesUseJapaneseJSONKeys(t *testing.T) {
	cat := sampleCatalog()
	paths := testPaths(t)

	require.NoError(t, Publish(cat, nil, confidenceByVideo(cat), 0.7, time.Now(), paths))

	raw, err := os.ReadFile(paths.AllJSON)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"曲"`)
	assert.Contains(t, string(raw), `"歌手-ユニット"`)
	assert.Contains(t, string(raw), `"確度スコア"`)
}

func readDocument(t *testing.T, path string) Document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}
