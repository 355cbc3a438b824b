// Package orchestrator drives C1 through C6 for new videos only, per
// channel, bounded by a worker pool, and persists new watermarks
// atomically (spec §4.7, §5).
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/catalog"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/confidence"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/genre"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/logging"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/publisher"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/selector"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/timestamp"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/watermark"
)

var jst = time.FixedZone("JST", 9*3600)

// Client is the subset of the Platform Client the orchestrator drives.
type Client interface {
	ListUploads(ctx context.Context, channelID string, since time.Time) ([]model.VideoRef, error)
	GetVideos(ctx context.Context, ids []string) ([]model.Video, error)
	ListComments(ctx context.Context, videoID string, max int) ([]model.Comment, error)
}

// Options configures one run.
type Options struct {
	Client              Client
	Classifier          *genre.Classifier
	CommentsPerVideo    int
	MaxParallelChannels int
	ConfidenceThreshold float64
	Backfill            bool // ignore watermark, re-process from the epoch
	OnlyChannelID       string // backfill a single channel; empty = all

	CatalogPath   string
	WatermarkPath string
	PublishPaths  publisher.Paths
}

// Orchestrator is the Incremental Orchestrator (C7).
type Orchestrator struct {
	opts Options
	log  func(model.RunResult)
}

// New builds an Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts, log: func(rr model.RunResult) { logging.LogRunResult(logging.Default, rr) }}
}

// channelWork is what one channel's worker hands back to the merge step.
type channelWork struct {
	rows   []model.CatalogRow
	result model.ChannelResult
}

// Run executes the full pipeline for every enabled channel and publishes
// the result. It never panics on a single channel's failure; it returns a
// non-nil error only for ConfigError/IntegrityError/IOError-class
// failures (spec §7).
func (o *Orchestrator) Run(ctx context.Context, channels []model.Channel) (model.RunResult, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()

	wmStore, err := watermark.Load(o.opts.WatermarkPath)
	if err != nil {
		return model.RunResult{}, err
	}

	var quotaHit atomic.Bool
	var mu sync.Mutex
	var works []channelWork

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(1, o.opts.MaxParallelChannels))

	for _, ch := range channels {
		ch := ch
		if !ch.Enabled {
			continue
		}
		if o.opts.OnlyChannelID != "" && ch.ID != o.opts.OnlyChannelID {
			continue
		}

		g.Go(func() error {
			work := o.runChannel(gctx, ch, wmStore, &quotaHit, runID)
			mu.Lock()
			works = append(works, work)
			mu.Unlock()
			return nil // channel failures never cancel siblings; only the shared quota state does
		})
	}
	_ = g.Wait() // worker funcs never return a non-nil error; Wait only blocks for completion

	rr := model.RunResult{StartedAt: started}
	var allRows []model.CatalogRow
	for _, w := range works {
		rr.Channels = append(rr.Channels, w.result)
		if w.result.Status == model.StatusOK {
			allRows = append(allRows, w.rows...)
		}
	}

	if err := wmStore.Save(); err != nil {
		rr.FinishedAt = time.Now().UTC()
		rr.ExitCode = 4
		o.log(rr)
		return rr, err
	}

	cat, err := catalog.Load(o.opts.CatalogPath)
	if err != nil {
		rr.FinishedAt = time.Now().UTC()
		rr.ExitCode = 4
		o.log(rr)
		return rr, err
	}
	if err := cat.Merge(allRows); err != nil {
		rr.FinishedAt = time.Now().UTC()
		rr.ExitCode = 4
		o.log(rr)
		return rr, err // IntegrityError: merge aborted, previous catalog left on disk (never written)
	}
	cat.DedupeGlobal()
	cat.Sort(catalog.OrderDateDesc)
	if err := cat.Save(o.opts.CatalogPath); err != nil {
		rr.FinishedAt = time.Now().UTC()
		rr.ExitCode = 4
		o.log(rr)
		return rr, err
	}

	threshold := o.opts.ConfidenceThreshold
	if threshold == 0 {
		threshold = confidence.SingingThreshold
	}
	confidenceByVideo := buildConfidenceIndex(cat)
	if err := publisher.Publish(cat, channels, confidenceByVideo.lookup, threshold, started, o.opts.PublishPaths); err != nil {
		rr.FinishedAt = time.Now().UTC()
		rr.ExitCode = 4
		o.log(rr)
		return rr, err
	}

	rr.FinishedAt = time.Now().UTC()
	if quotaHit.Load() {
		rr.ExitCode = 2
	}
	o.log(rr)
	return rr, nil
}

// runChannel processes one channel end to end: list new uploads, fetch
// metadata+comments, parse/select/score/classify, and return the rows to
// merge plus a diagnostic result. It never returns an error: all failures
// are captured in the returned ChannelResult (spec §7: "channel-level
// errors never propagate past their channel").
func (o *Orchestrator) runChannel(ctx context.Context, ch model.Channel, wmStore *watermark.Store, quotaHit *atomic.Bool, runID string) channelWork {
	result := model.ChannelResult{ChannelID: ch.ID, Status: model.StatusOK}

	if quotaHit.Load() {
		result.Status = model.StatusPartial
		wmStore.MarkPartial(ch.ID, "quota exceeded upstream: skipped without API calls")
		return channelWork{result: result}
	}

	since := wmStore.Since(ch.ID)
	if o.opts.Backfill {
		since = time.Unix(0, 0).UTC()
	}

	refs, err := o.opts.Client.ListUploads(ctx, ch.ID, since)
	if err != nil {
		return o.failChannel(ch, wmStore, quotaHit, result, err)
	}
	result.VideosSeen = len(refs)
	if len(refs) == 0 {
		result.Status = model.StatusOK
		wmStore.Advance(model.Watermark{ChannelID: ch.ID, LastRunAt: time.Now().UTC(), LastPublishedAt: since, Status: model.StatusOK})
		return channelWork{result: result}
	}

	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	videos, err := o.opts.Client.GetVideos(ctx, ids)
	if err != nil {
		return o.failChannel(ch, wmStore, quotaHit, result, err)
	}

	var rows []model.CatalogRow
	var latestPublished time.Time
	var latestVideoID string

	for _, v := range videos {
		comments, err := o.opts.Client.ListComments(ctx, v.ID, o.opts.CommentsPerVideo)
		if err != nil {
			return o.failChannel(ch, wmStore, quotaHit, result, err)
		}
		result.VideosNew++

		videoRows := o.processVideo(v, comments)
		rows = append(rows, videoRows...)
		result.RowsEmitted += len(videoRows)

		if v.PublishedAt.After(latestPublished) {
			latestPublished = v.PublishedAt
			latestVideoID = v.ID
		}
	}

	wmStore.Advance(model.Watermark{
		ChannelID:       ch.ID,
		LastRunAt:       time.Now().UTC(),
		LastVideoID:     latestVideoID,
		LastPublishedAt: latestPublished,
		Status:          model.StatusOK,
	})
	return channelWork{rows: rows, result: result}
}

func (o *Orchestrator) failChannel(ch model.Channel, wmStore *watermark.Store, quotaHit *atomic.Bool, result model.ChannelResult, err error) channelWork {
	result.Status = model.StatusPartial
	result.Err = err
	if model.KindOf(err) == model.KindQuotaExceeded {
		quotaHit.Store(true)
	}
	wmStore.MarkPartial(ch.ID, err.Error())
	return channelWork{result: result}
}

// processVideo runs C2->C5 for one video and returns its emitted rows
// (spec §4.7 step 3).
func (o *Orchestrator) processVideo(v model.Video, comments []model.Comment) []model.CatalogRow {
	descCandidate := timestamp.ParseText(v.Description)
	descCandidate.Origin = model.Origin{Kind: model.OriginDescription}

	var commentCandidates []model.CandidateSetlist
	for i, c := range comments {
		cand := timestamp.ParseText(c.Text)
		if len(cand.Lines) < 3 {
			continue
		}
		cand.Origin = model.Origin{Kind: model.OriginComment, CommentIndex: i, LikeCount: c.LikeCount, PublishedAt: c.PublishedAt}
		commentCandidates = append(commentCandidates, cand)
	}

	var descPtr *model.CandidateSetlist
	if len(descCandidate.Lines) > 0 {
		descPtr = &descCandidate
	}

	selected := selector.Select(descPtr, commentCandidates)

	conf := confidence.Score(confidence.Input{Video: v, Selected: selected, Comments: comments})

	if selected == nil {
		return nil
	}

	streamDate := v.PublishedAt.In(jst).Format("2006-01-02")

	rows := make([]model.CatalogRow, 0, len(selected.Lines))
	for _, l := range selected.Lines {
		g := o.opts.Classifier.Classify(l.Artist, l.Song)
		rows = append(rows, model.CatalogRow{
			Song:           l.Song,
			Artist:         l.Artist,
			NormalizedSong: catalog.NormalizeSong(l.Song),
			Genre:          g,
			OffsetS:        l.OffsetS,
			TimestampHMS:   timestamp.RenderHMS(l.OffsetS),
			StreamDate:     streamDate,
			VideoID:        v.ID,
			ChannelID:      v.ChannelID,
			Confidence:     round2(conf),
		})
	}
	return rows
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type confidenceIndex struct {
	byVideo map[string]float64
}

func buildConfidenceIndex(cat *catalog.Catalog) confidenceIndex {
	idx := confidenceIndex{byVideo: map[string]float64{}}
	for _, r := range cat.Rows {
		if c, ok := idx.byVideo[r.VideoID]; !ok || r.Confidence > c {
			idx.byVideo[r.VideoID] = r.Confidence
		}
	}
	return idx
}

func (c confidenceIndex) lookup(videoID string) (float64, bool) {
	v, ok := c.byVideo[videoID]
	return v, ok
}
