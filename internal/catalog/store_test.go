package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/timestamp"
)

func row(videoID string, offset int, song, artist string, conf float64) model.CatalogRow {
	return model.CatalogRow{
		Song: song, Artist: artist, NormalizedSong: NormalizeSong(song),
		OffsetS: offset, TimestampHMS: timestamp.RenderHMS(offset), StreamDate: "2026-01-01",
		VideoID: videoID, ChannelID: "UCabc", Confidence: conf,
	}
}

func TestLoad_MissingFileYieldsEmptyCatalog(t *testing.T) {
	cat, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.Empty(t, cat.Rows)
}

func TestSaveThenLoad_RoundTripsWithBOMAndQuoting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	cat := &Catalog{Rows: []model.CatalogRow{
		row("v1", 83, "song, with comma", `artist "quoted"`, 0.91),
		row("v1", 347, "千本桜", "初音ミク", 0.5),
	}}
	require.NoError(t, cat.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), utf8BOM))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, reloaded.Rows, 2)
	assert.Equal(t, "song, with comma", reloaded.Rows[0].Song)
	assert.Equal(t, `artist "quoted"`, reloaded.Rows[0].Artist)
	assert.Equal(t, 83, reloaded.Rows[0].OffsetS)
	assert.Equal(t, 347, reloaded.Rows[1].OffsetS)
}

func TestSave_HeaderMatchesStabilityContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	cat := &Catalog{}
	require.NoError(t, cat.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	firstLine := strings.SplitN(strings.TrimPrefix(string(raw), utf8BOM), "\n", 2)[0]
	assert.Equal(t, strings.Join(Header, ","), firstLine)
}

func TestMerge_InsertsAbsentKey(t *testing.T) {
	cat := &Catalog{}
	require.NoError(t, cat.Merge([]model.CatalogRow{row("v1", 0, "a", "b", 0.5)}))
	assert.Len(t, cat.Rows, 1)
}

func TestMerge_ReplacesOnHigherConfidence(t *testing.T) {
	cat := &Catalog{Rows: []model.CatalogRow{row("v1", 0, "a", "b", 0.3)}}
	require.NoError(t, cat.Merge([]model.CatalogRow{row("v1", 0, "a-updated", "b", 0.9)}))
	require.Len(t, cat.Rows, 1)
	assert.Equal(t, "a-updated", cat.Rows[0].Song)
}

func TestMerge_DoesNotReplaceOnLowerConfidence(t *testing.T) {
	cat := &Catalog{Rows: []model.CatalogRow{row("v1", 0, "a", "b", 0.9)}}
	require.NoError(t, cat.Merge([]model.CatalogRow{row("v1", 0, "a-updated", "b", 0.3)}))
	require.Len(t, cat.Rows, 1)
	assert.Equal(t, "a", cat.Rows[0].Song)
}

func TestMerge_FillsPreviouslyEmptyArtistEvenAtLowerConfidence(t *testing.T) {
	cat := &Catalog{Rows: []model.CatalogRow{row("v1", 0, "a", "", 0.9)}}
	require.NoError(t, cat.Merge([]model.CatalogRow{row("v1", 0, "a", "filled-artist", 0.1)}))
	require.Len(t, cat.Rows, 1)
	assert.Equal(t, "filled-artist", cat.Rows[0].Artist)
}

func TestMerge_DuplicatePrimaryKeyInExistingRowsIsIntegrityError(t *testing.T) {
	cat := &Catalog{Rows: []model.CatalogRow{row("v1", 0, "a", "b", 0.5), row("v1", 0, "c", "d", 0.5)}}
	err := cat.Merge([]model.CatalogRow{row("v2", 0, "e", "f", 0.5)})
	require.Error(t, err)
	assert.Equal(t, model.KindIntegrity, model.KindOf(err))
}

func TestMerge_IsIdempotentForIdenticalRows(t *testing.T) {
	cat := &Catalog{}
	rows := []model.CatalogRow{row("v1", 0, "a", "b", 0.5)}
	require.NoError(t, cat.Merge(rows))
	require.NoError(t, cat.Merge(rows))
	assert.Len(t, cat.Rows, 1)
}

func TestDedupeGlobal_KeepsHighestConfidence(t *testing.T) {
	cat := &Catalog{Rows: []model.CatalogRow{
		row("v1", 10, "Song", "Artist", 0.4),
		row("v1", 90, "song", "artist", 0.9),
	}}
	cat.DedupeGlobal()
	require.Len(t, cat.Rows, 1)
	assert.Equal(t, 0.9, cat.Rows[0].Confidence)
}

func TestDedupeGlobal_TieBreaksOnEarliestOffset(t *testing.T) {
	cat := &Catalog{Rows: []model.CatalogRow{
		row("v1", 90, "song", "artist", 0.5),
		row("v1", 10, "song", "artist", 0.5),
	}}
	cat.DedupeGlobal()
	require.Len(t, cat.Rows, 1)
	assert.Equal(t, 10, cat.Rows[0].OffsetS)
}

func TestDedupeGlobal_DistinctVideosNotCollapsed(t *testing.T) {
	cat := &Catalog{Rows: []model.CatalogRow{
		row("v1", 0, "song", "artist", 0.5),
		row("v2", 0, "song", "artist", 0.5),
	}}
	cat.DedupeGlobal()
	assert.Len(t, cat.Rows, 2)
}

func TestSort_DateDescAndAsc(t *testing.T) {
	cat := &Catalog{Rows: []model.CatalogRow{
		{StreamDate: "2026-01-01"}, {StreamDate: "2026-03-01"}, {StreamDate: "2026-02-01"},
	}}
	cat.Sort(OrderDateDesc)
	assert.Equal(t, []string{"2026-03-01", "2026-02-01", "2026-01-01"}, streamDates(cat))

	cat.Sort(OrderDateAsc)
	assert.Equal(t, []string{"2026-01-01", "2026-02-01", "2026-03-01"}, streamDates(cat))
}

func TestSort_SongAscUsesJapaneseCollation(t *testing.T) {
	cat := &Catalog{Rows: []model.CatalogRow{
		{Song: "千本桜"}, {Song: "アイドル"},
	}}
	cat.Sort(OrderSongAsc)
	assert.Equal(t, "アイドル", cat.Rows[0].Song)
}

func streamDates(c *Catalog) []string {
	out := make([]string, len(c.Rows))
	for i, r := range c.Rows {
		out[i] = r.StreamDate
	}
	return out
}

func TestNormalizeSong_FoldsWhitespaceCaseAndWidth(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeSong("  Hello   World  "))
	assert.Equal(t, NormalizeSong("ABC"), NormalizeSong("ＡＢＣ"))
}
