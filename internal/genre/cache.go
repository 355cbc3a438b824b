package genre

import (
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sys/unix"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/atomicfile"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

// DefaultTTL is the cache entry lifetime (spec §4.5: "TTL default 30 days").
const DefaultTTL = 30 * 24 * time.Hour

// CacheKey is the (artist_lower, song_lower) cache key.
type CacheKey struct {
	ArtistLower string `json:"artist"`
	SongLower   string `json:"song"`
}

type cacheEntry struct {
	Key       CacheKey  `json:"key"`
	Genre     string    `json:"genre"`
	FetchedAt time.Time `json:"fetched_at"`
	TTL       time.Duration `json:"ttl"`
}

// Cache is the persistent (artist,song) -> (genre, fetched_at, ttl)
// mapping backing the external metadata tiebreaker. In-process writes
// serialize through mu; across processes, LoadCache holds an exclusive
// flock on a sidecar lock file for the Cache's lifetime, then Save
// write-temp-then-renames the whole file. Together these give the
// "append-safe under concurrent runs" guarantee a bare mutex can't: two
// CLI invocations racing LoadCache/Save against the same path serialize
// at the OS level instead of silently clobbering each other.
type Cache struct {
	path     string
	lockFile *os.File

	mu      sync.Mutex
	entries map[CacheKey]cacheEntry
	ttl     time.Duration
}

// LoadCache acquires an exclusive advisory lock on path+".lock", then
// reads path, or starts empty if it does not exist. The lock is held
// until Close is called; callers must defer Close after a successful
// load.
func LoadCache(path string) (*Cache, error) {
	lockFile, err := lockPath(path)
	if err != nil {
		return nil, model.NewError(model.KindIO, "genre.LoadCache", err)
	}

	c := &Cache{path: path, lockFile: lockFile, entries: map[CacheKey]cacheEntry{}, ttl: DefaultTTL}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		_ = c.Close()
		return nil, model.NewError(model.KindIO, "genre.LoadCache", err)
	}

	var list []cacheEntry
	if err := json.Unmarshal(data, &list); err != nil {
		_ = c.Close()
		return nil, model.NewError(model.KindIO, "genre.LoadCache", err)
	}
	for _, e := range list {
		c.entries[e.Key] = e
	}
	return c, nil
}

// Close releases the advisory lock taken by LoadCache. Safe to call on a
// Cache built directly (e.g. in tests) without a lock file.
func (c *Cache) Close() error {
	if c.lockFile == nil {
		return nil
	}
	f := c.lockFile
	c.lockFile = nil
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return f.Close()
}

func lockPath(path string) (*os.File, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// Get returns the cached genre for key if present and not expired.
func (c *Cache) Get(key CacheKey) (genre string, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	ttl := e.TTL
	if ttl == 0 {
		ttl = c.ttl
	}
	if time.Since(e.FetchedAt) > ttl {
		return "", false
	}
	return e.Genre, true
}

// Put records a fresh lookup result, timestamped now with the default TTL.
func (c *Cache) Put(key CacheKey, genre string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{Key: key, Genre: genre, FetchedAt: time.Now(), TTL: c.ttl}
}

// Save persists the whole cache atomically (write-temp-then-rename),
// guarded by the same mutex writes use.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := make([]cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		list = append(list, e)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return model.NewError(model.KindIO, "genre.Cache.Save", err)
	}

	return atomicfile.Write(c.path, data)
}
