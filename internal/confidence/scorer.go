// Package confidence implements the "singing stream" likelihood score of
// spec §4.4: a clipped ratio of positive signals minus negative signals,
// built from title/description/comment text and the selected setlist.
package confidence

import (
	"regexp"
	"strings"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

// Signal point values (spec §4.4, §9: "treated as tunable" constants).
const (
	TitleSingingSignal       = 3.0
	DescriptionSetlistSignal = 2.0
	SetlistTenLinesSignal    = 3.0
	ArtistRatioHighSignal    = 5.0 // artist_ratio >= 0.8
	ArtistRatioMidSignal     = 3.0 // artist_ratio >= 0.5
	ArtistRatioLowSignal     = 1.0 // artist_ratio >= 0.2
	LongDurationSignal       = 2.0
	CommentTimestampsSignal  = 2.0

	GameplayNegativeSignal = 5.0

	// MaxRaw is the sum of the maximum achievable positive contributions:
	// 3 + 2 + 3 + 5 + 2 + 2 = 17.
	MaxRaw = TitleSingingSignal + DescriptionSetlistSignal + SetlistTenLinesSignal +
		ArtistRatioHighSignal + LongDurationSignal + CommentTimestampsSignal

	// SingingThreshold is the minimum score for the singing-only
	// publishing bucket.
	SingingThreshold = 0.7

	longDurationS = 1800
	minCommentTimestampHits = 3
)

var (
	reSingingTitle  = regexp.MustCompile(`(?i)歌|歌枠|うた|singing|karaoke`)
	reSetlistDesc   = regexp.MustCompile(`(?i)歌|セトリ|setlist`)
	reGameplayTitle = regexp.MustCompile(`(?i)ゲーム実況|gameplay|プレイ動画|雑談`)
	reTimestampLine = regexp.MustCompile(`(\d{1,2}:)?\d{1,3}:\d{2}`)
)

// Input bundles everything the scorer needs for one video.
type Input struct {
	Video    model.Video
	Selected *model.CandidateSetlist // nil if no setlist was selected
	Comments []model.Comment
}

// Score computes the [0,1] confidence for one video (spec §4.4).
func Score(in Input) float64 {
	raw := positiveScore(in) - negativeScore(in)
	return clip(raw/MaxRaw, 0, 1)
}

func positiveScore(in Input) float64 {
	var score float64

	if reSingingTitle.MatchString(in.Video.Title) {
		score += TitleSingingSignal
	}
	if reSetlistDesc.MatchString(in.Video.Description) {
		score += DescriptionSetlistSignal
	}
	if in.Selected != nil {
		if len(in.Selected.Lines) >= 10 {
			score += SetlistTenLinesSignal
		}
		switch ratio := in.Selected.ArtistRatio(); {
		case ratio >= 0.8:
			score += ArtistRatioHighSignal
		case ratio >= 0.5:
			score += ArtistRatioMidSignal
		case ratio >= 0.2:
			score += ArtistRatioLowSignal
		}
	}
	if in.Video.DurationS >= longDurationS {
		score += LongDurationSignal
	}
	if countTimestampLines(in.Comments) >= minCommentTimestampHits {
		score += CommentTimestampsSignal
	}

	return score
}

func negativeScore(in Input) float64 {
	if reGameplayTitle.MatchString(in.Video.Title) {
		return GameplayNegativeSignal
	}
	return 0
}

func countTimestampLines(comments []model.Comment) int {
	n := 0
	for _, c := range comments {
		for _, line := range strings.Split(c.Text, "\n") {
			if reTimestampLine.MatchString(line) {
				n++
			}
		}
	}
	return n
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
