package genre

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCache_MissingFileStartsEmpty(t *testing.T) {
	c, err := LoadCache(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	defer c.Close()
	_, fresh := c.Get(CacheKey{ArtistLower: "a", SongLower: "b"})
	assert.False(t, fresh)
}

func TestCache_PutThenGetIsFresh(t *testing.T) {
	c := &Cache{entries: map[CacheKey]cacheEntry{}, ttl: DefaultTTL}
	key := CacheKey{ArtistLower: "yoasobi", SongLower: "idol"}
	c.Put(key, "J-POP")

	g, fresh := c.Get(key)
	require.True(t, fresh)
	assert.Equal(t, "J-POP", g)
}

func TestCache_ExpiredEntryIsNotFresh(t *testing.T) {
	c := &Cache{entries: map[CacheKey]cacheEntry{}, ttl: time.Millisecond}
	key := CacheKey{ArtistLower: "a", SongLower: "b"}
	c.entries[key] = cacheEntry{Key: key, Genre: "old", FetchedAt: time.Now().Add(-time.Hour), TTL: time.Millisecond}

	_, fresh := c.Get(key)
	assert.False(t, fresh)
}

func TestCache_SaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genre_cache.json")
	c := &Cache{path: path, entries: map[CacheKey]cacheEntry{}, ttl: DefaultTTL}
	key := CacheKey{ArtistLower: "initial d", SongLower: "deja vu"}
	c.Put(key, "Eurobeat")
	require.NoError(t, c.Save())

	_, err := os.Stat(path)
	require.NoError(t, err)

	reloaded, err := LoadCache(path)
	require.NoError(t, err)
	defer reloaded.Close()
	g, fresh := reloaded.Get(key)
	require.True(t, fresh)
	assert.Equal(t, "Eurobeat", g)
}

func TestLoadCache_AcquiresLockFileAlongsidePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genre_cache.json")
	c, err := LoadCache(path)
	require.NoError(t, err)
	defer c.Close()

	_, err = os.Stat(path + ".lock")
	assert.NoError(t, err)
}

func TestCache_CloseReleasesLockForSubsequentLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genre_cache.json")

	first, err := LoadCache(path)
	require.NoError(t, err)
	first.Put(CacheKey{ArtistLower: "a", SongLower: "b"}, "G")
	require.NoError(t, first.Save())
	require.NoError(t, first.Close())

	second, err := LoadCache(path)
	require.NoError(t, err)
	defer second.Close()

	g, fresh := second.Get(CacheKey{ArtistLower: "a", SongLower: "b"})
	require.True(t, fresh)
	assert.Equal(t, "G", g)
}

func TestCache_CloseIsSafeOnCacheWithoutLock(t *testing.T) {
	c := &Cache{entries: map[CacheKey]cacheEntry{}, ttl: DefaultTTL}
	assert.NoError(t, c.Close())
}

func TestCache_SaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genre_cache.json")
	c := &Cache{path: path, entries: map[CacheKey]cacheEntry{}, ttl: DefaultTTL}
	c.Put(CacheKey{ArtistLower: "a", SongLower: "b"}, "G")
	require.NoError(t, c.Save())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "genre_cache.json", entries[0].Name())
}
