// Command ytsetlist is the harvester CLI (spec §6): update (incremental),
// backfill <channel_id?> (ignore watermark), publish (re-derive JSONs
// only), classify-recheck (re-run the genre classifier over existing
// rows).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/catalog"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/confidence"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/config"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/genre"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/logging"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/orchestrator"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/platform"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/publisher"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/ratelimit"
)

// Exit codes (spec §6): 0 ok, 2 quota exceeded (partial success),
// 3 config error, 4 I/O error.
const (
	exitOK            = 0
	exitQuotaExceeded = 2
	exitConfigError   = 3
	exitIOError       = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ytsetlist <update|backfill|publish|classify-recheck> [flags]")
		return exitConfigError
	}

	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	envFile := fs.String("env", ".env", "path to .env file")
	channelsFile := fs.String("channels", "channels.yaml", "channel list config")
	genreFile := fs.String("genre", "genre.yaml", "genre keyword config")
	runFile := fs.String("run", "run.yaml", "run config")
	catalogFile := fs.String("catalog", "catalog.csv", "canonical catalog path")
	watermarkFile := fs.String("watermarks", "watermarks.json", "watermark store path")
	outDir := fs.String("out", "out", "published JSON output directory")
	dryRun := fs.Bool("dry-run", false, "classify-recheck: report changes without writing")
	if err := fs.Parse(args[1:]); err != nil {
		return exitConfigError
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	channels, err := config.LoadChannels(*channelsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}
	genreCfg, err := config.LoadGenreConfig(*genreFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}
	runCfg, err := config.LoadRunConfig(*runFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	paths := publisher.Paths{
		SingingJSON:  *outDir + "/timestamps_singing.json",
		AllJSON:      *outDir + "/timestamps_all.json",
		ChannelsJSON: *outDir + "/channels.json",
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "io error: %v\n", err)
		return exitIOError
	}

	genreCachePath := "genre_cache.json"
	cache, err := genre.LoadCache(genreCachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "io error: %v\n", err)
		return exitIOError
	}
	defer cache.Close()
	classifier := genre.NewClassifier(genreCfg, nil, nil, cache)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	switch cmd {
	case "update", "backfill":
		onlyChannel := ""
		if cmd == "backfill" && fs.NArg() > 0 {
			onlyChannel = fs.Arg(0)
		}

		apiKey := os.Getenv(runCfg.APIKeyEnv)
		governor := ratelimit.NewGovernor(float64(runCfg.DailyQuotaUnits)/86400+1, runCfg.DailyQuotaUnits)
		client := platform.New(apiKey, governor)

		orch := orchestrator.New(orchestrator.Options{
			Client:              client,
			Classifier:          classifier,
			CommentsPerVideo:    runCfg.CommentsPerVideo,
			MaxParallelChannels: runCfg.MaxParallelChannels,
			ConfidenceThreshold: runCfg.ConfidenceThreshold,
			Backfill:            cmd == "backfill",
			OnlyChannelID:       onlyChannel,
			CatalogPath:         *catalogFile,
			WatermarkPath:       *watermarkFile,
			PublishPaths:        paths,
		})

		rr, err := orch.Run(ctx, channels)
		if saveErr := cache.Save(); saveErr != nil {
			fmt.Fprintf(os.Stderr, "io error saving genre cache: %v\n", saveErr)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "run error: %v\n", err)
			return exitIOError
		}
		if rr.ExitCode == exitQuotaExceeded {
			return exitQuotaExceeded
		}
		return exitOK

	case "publish":
		cat, err := catalog.Load(*catalogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "io error: %v\n", err)
			return exitIOError
		}
		byVideo := map[string]float64{}
		for _, r := range cat.Rows {
			if c, ok := byVideo[r.VideoID]; !ok || r.Confidence > c {
				byVideo[r.VideoID] = r.Confidence
			}
		}
		lookup := func(videoID string) (float64, bool) { v, ok := byVideo[videoID]; return v, ok }
		threshold := runCfg.ConfidenceThreshold
		if threshold == 0 {
			threshold = confidence.SingingThreshold
		}
		if err := publisher.Publish(cat, channels, lookup, threshold, time.Now().UTC(), paths); err != nil {
			fmt.Fprintf(os.Stderr, "io error: %v\n", err)
			return exitIOError
		}
		return exitOK

	case "classify-recheck":
		cat, err := catalog.Load(*catalogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "io error: %v\n", err)
			return exitIOError
		}
		changed := 0
		for i, r := range cat.Rows {
			g := classifier.Classify(r.Artist, r.Song)
			if g != r.Genre {
				changed++
				logging.Default.Info().Str("video_id", r.VideoID).Str("song", r.Song).
					Str("from", r.Genre).Str("to", g).Bool("dry_run", *dryRun).Msg("reclassified")
				if !*dryRun {
					cat.Rows[i].Genre = g
				}
			}
		}
		if !*dryRun {
			if err := cat.Save(*catalogFile); err != nil {
				fmt.Fprintf(os.Stderr, "io error: %v\n", err)
				return exitIOError
			}
			if err := cache.Save(); err != nil {
				fmt.Fprintf(os.Stderr, "io error: %v\n", err)
				return exitIOError
			}
		}
		logging.Default.Info().Int("rows_changed", changed).Bool("dry_run", *dryRun).Msg("classify-recheck complete")
		return exitOK

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		return exitConfigError
	}
}

