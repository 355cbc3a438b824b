// Package genre implements the ordered, deterministic rule engine of spec
// §4.5: exact artist match, keyword categories, song-title exact match,
// an optional external metadata tiebreaker, and a default label.
package genre

import (
	"sort"
	"strings"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

const Default = "その他"

// Config is the genre-keywords configuration file (spec §6).
type Config struct {
	// Categories maps a genre label to buckets of case-folded,
	// whitespace-normalized substrings checked against artist then song.
	Categories map[string]map[string][]string `koanf:"categories"`
	// ArtistToGenre is the exact-match artist -> genre mapping.
	ArtistToGenre map[string]string `koanf:"artist_to_genre"`
	// SongToGenre is the exact-match song -> genre mapping (rule 3).
	SongToGenre map[string]string `koanf:"song_to_genre"`
}

// MetadataLookup is the optional third-party music-metadata collaborator
// (spec §4.5 rule 4). The nil-safe default (no Lookup configured) disables
// it entirely; disabling it never changes the outcome of rules 1-3/5.
type MetadataLookup interface {
	// Lookup returns raw genre tags for (artist, song), or ok=false when
	// the service has nothing for this pair.
	Lookup(artist, song string) (tags []string, ok bool)
}

// Classifier applies the rule set to (artist, song) pairs.
type Classifier struct {
	cfg      Config
	lookup   MetadataLookup // nil disables rule 4
	tagMap   map[string]string
	cache    *Cache
}

// NewClassifier builds a Classifier. lookup and cache may be nil.
func NewClassifier(cfg Config, lookup MetadataLookup, tagMap map[string]string, cache *Cache) *Classifier {
	return &Classifier{cfg: cfg, lookup: lookup, tagMap: tagMap, cache: cache}
}

// Classify maps (artist, song) to a genre label, first match wins.
func (c *Classifier) Classify(artist, song string) string {
	// Rule 1: exact artist match.
	if artist != "" {
		if g, ok := c.cfg.ArtistToGenre[artist]; ok {
			return g
		}
	}

	// Rule 2: keyword categories, artist then song.
	if g, ok := c.matchKeywordCategories(artist); ok {
		return g
	}
	if g, ok := c.matchKeywordCategories(song); ok {
		return g
	}

	// Rule 3: song-title exact match.
	if song != "" {
		if g, ok := c.cfg.SongToGenre[song]; ok {
			return g
		}
	}

	// Rule 4: external metadata lookup, cached.
	if c.lookup != nil {
		if g, ok := c.classifyViaLookup(artist, song); ok {
			return g
		}
	}

	return Default
}

// matchKeywordCategories walks categories and their keyword buckets in
// sorted-key order so that a field matching two overlapping categories
// always resolves to the same winner across runs (rule 2 must be a
// deterministic priority rule, not a random one — Go map iteration order
// is randomized per process).
func (c *Classifier) matchKeywordCategories(field string) (string, bool) {
	if field == "" {
		return "", false
	}
	folded := foldForMatch(field)

	categories := make([]string, 0, len(c.cfg.Categories))
	for category := range c.cfg.Categories {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		buckets := c.cfg.Categories[category]
		bucketNames := make([]string, 0, len(buckets))
		for bucket := range buckets {
			bucketNames = append(bucketNames, bucket)
		}
		sort.Strings(bucketNames)

		for _, bucket := range bucketNames {
			for _, kw := range buckets[bucket] {
				if strings.Contains(folded, foldForMatch(kw)) {
					return category, true
				}
			}
		}
	}
	return "", false
}

func (c *Classifier) classifyViaLookup(artist, song string) (string, bool) {
	key := cacheKey(artist, song)

	if c.cache != nil {
		if g, fresh := c.cache.Get(key); fresh {
			return g, true
		}
	}

	tags, ok := c.lookup.Lookup(artist, song)
	if !ok {
		return "", false
	}
	for _, tag := range tags {
		if g, mapped := c.tagMap[strings.ToLower(tag)]; mapped {
			if c.cache != nil {
				c.cache.Put(key, g)
			}
			return g, true
		}
	}
	return "", false
}

// foldForMatch case-folds and whitespace-normalizes a string for keyword
// matching (spec §4.5 rule 2: "case-folded, whitespace-normalised").
func foldForMatch(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func cacheKey(artist, song string) CacheKey {
	return CacheKey{ArtistLower: strings.ToLower(artist), SongLower: strings.ToLower(song)}
}
