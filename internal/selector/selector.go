// Package selector implements spec §4.3: picking the single best
// candidate setlist for one video out of the description candidate (if
// any) and the per-comment candidates.
package selector

import (
	"math"
	"sort"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

const (
	descriptionQualityFloor = 0.6
	descriptionMinLines     = 5
	commentMinLines         = 3
)

// Select implements the rank-and-tie-break rule of spec §4.3. description
// may be nil when the video has no description candidate. Returns nil when
// no candidate reaches the 3-line floor (spec §4.3 rule 4): the video is
// still scorable for diagnostics but yields no rows.
func Select(description *model.CandidateSetlist, comments []model.CandidateSetlist) *model.CandidateSetlist {
	eligibleComments := make([]model.CandidateSetlist, 0, len(comments))
	for _, c := range comments {
		if len(c.Lines) >= commentMinLines {
			eligibleComments = append(eligibleComments, c)
		}
	}

	if description != nil && description.Quality >= descriptionQualityFloor && len(description.Lines) >= descriptionMinLines {
		return description
	}

	if len(eligibleComments) == 0 {
		return nil
	}

	best := bestByRank(eligibleComments)
	return &best
}

func bestByRank(candidates []model.CandidateSetlist) model.CandidateSetlist {
	type ranked struct {
		candidate model.CandidateSetlist
		rank      float64
	}

	rs := make([]ranked, len(candidates))
	for i, c := range candidates {
		rs[i] = ranked{candidate: c, rank: rankOf(c)}
	}

	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].rank != rs[j].rank {
			return rs[i].rank > rs[j].rank
		}
		// Tie-break (a): more lines wins.
		li, lj := len(rs[i].candidate.Lines), len(rs[j].candidate.Lines)
		if li != lj {
			return li > lj
		}
		// Tie-break (b): earlier comment publish time wins.
		pi, pj := rs[i].candidate.Origin.PublishedAt, rs[j].candidate.Origin.PublishedAt
		if !pi.Equal(pj) {
			return pi.Before(pj)
		}
		// Tie-break (c): lexicographically smaller origin tag wins.
		return rs[i].candidate.Origin.Kind.String() < rs[j].candidate.Origin.Kind.String()
	})

	return rs[0].candidate
}

func rankOf(c model.CandidateSetlist) float64 {
	return c.Quality + 0.1*math.Log10(1+float64(c.Origin.LikeCount))
}
