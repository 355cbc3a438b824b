// Package watermark persists the per-channel incremental-update markers
// (spec §3, §4.7). The whole file is rewritten atomically whenever any
// channel's watermark changes (spec §5).
package watermark

import (
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/atomicfile"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

// Store is the watermarks.json file (spec §6).
type Store struct {
	path string

	mu   sync.Mutex
	byID map[string]model.Watermark
}

// Load reads path; a missing file yields an empty store (spec §4.7 step 1:
// first run uses the unix epoch for since).
func Load(path string) (*Store, error) {
	s := &Store{path: path, byID: map[string]model.Watermark{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, model.NewError(model.KindIO, "watermark.Load", err)
	}

	var list []model.Watermark
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, model.NewError(model.KindIO, "watermark.Load", err)
	}
	for _, w := range list {
		s.byID[w.ChannelID] = w
	}
	return s, nil
}

// Since returns the channel's since cursor: last_published_at, or the
// unix epoch on first run.
func (s *Store) Since(channelID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.byID[channelID]; ok {
		return w.LastPublishedAt
	}
	return time.Unix(0, 0).UTC()
}

// Get returns the current watermark for channelID, if any.
func (s *Store) Get(channelID string) (model.Watermark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.byID[channelID]
	return w, ok
}

// Advance records a completed channel run (spec §4.7 step 4). The cursor
// (last_published_at/last_video_id) only moves forward: when w's
// last_published_at is not after the stored one, the stored cursor is
// kept and only status, last_run_at and last_error are taken from w.
// Partial runs go through MarkPartial instead.
func (s *Store) Advance(w model.Watermark) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byID[w.ChannelID]; ok && !w.LastPublishedAt.After(prev.LastPublishedAt) {
		w.LastPublishedAt = prev.LastPublishedAt
		w.LastVideoID = prev.LastVideoID
	}
	s.byID[w.ChannelID] = w
}

// MarkPartial transitions a pending channel to partial without touching
// its progress cursor (spec §4.7: "A QuotaExceeded from C1 transitions all
// remaining pending channels to partial without API calls").
func (s *Store) MarkPartial(channelID string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.byID[channelID] // zero value if first run: last_published_at stays epoch
	w.ChannelID = channelID
	w.Status = model.StatusPartial
	w.LastError = reason
	w.LastRunAt = time.Now().UTC()
	s.byID[channelID] = w
}

// Save persists the whole file atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]model.Watermark, 0, len(s.byID))
	for _, w := range s.byID {
		list = append(list, w)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return model.NewError(model.KindIO, "watermark.Save", err)
	}
	return atomicfile.Write(s.path, data)
}
