// Package timestamp implements the time-anchor detection, payload split,
// song/artist separation and monotonicity filtering of spec §4.2.
package timestamp

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

// anchorPattern matches H:MM:SS / HH:MM:SS / M:SS / MM:SS at the start of
// the (trimmed) line's timestamp token; it is applied with FindStringIndex
// over the whole line since the anchor need not be at column 0 (comments
// often prefix it with a bullet or emoji).
var anchorPattern = regexp.MustCompile(`(\d{1,2}:)?\d{1,3}:\d{2}`)

// leadingSeparators is consumed (at most one) from the front of the text
// following the anchor.
var leadingSeparators = []string{" ", "-", "–", "—", ":", "：", "・", "･", "）", ")"}

var (
	reSlash     = regexp.MustCompile(`^([^/]+)/([^/]+)$`)
	reDashSplit = regexp.MustCompile(` - `)
	reByCI      = regexp.MustCompile(`(?i)\sby\s`)
	reParen     = regexp.MustCompile(`^(.+?)\(([^)]+)\)\s*$`)
	reEmbedded  = anchorPattern
)

// fullWidthDigitFolder maps full-width digits/colon to ASCII so Japanese
// description text using zenkaku punctuation is recognized by the same
// anchor pattern as ASCII timestamps.
var fullWidthDigitFolder = strings.NewReplacer(
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
	"：", ":",
)

// normalizeLine applies NFKC normalization and full-width folding ahead of
// anchor detection. This is additive normalization only: it never changes
// which separator rule in Step C wins once the payload is isolated.
func normalizeLine(line string) string {
	return fullWidthDigitFolder.Replace(norm.NFKC.String(line))
}

// ParseText extracts a CandidateSetlist from one block of free text
// (a video description, or a single comment body).
func ParseText(text string) model.CandidateSetlist {
	lines := strings.Split(text, "\n")
	var parsed []model.TimestampLine

	for _, raw := range lines {
		line := normalizeLine(raw)
		loc := anchorPattern.FindStringIndex(line)
		if loc == nil {
			continue // Step A: no anchor, skip
		}
		anchorText := line[loc[0]:loc[1]]
		offset, ok := parseOffset(anchorText)
		if !ok {
			continue
		}

		rest := strings.TrimSpace(line[loc[1]:])
		rest = consumeOneLeadingSeparator(rest)
		payload := strings.TrimSpace(rest)
		if payload == "" {
			continue // Step B: empty payload, drop
		}

		song, artist := splitSongArtist(payload)
		parsed = append(parsed, model.TimestampLine{
			OffsetS: offset,
			Song:    song,
			Artist:  artist,
			Raw:     strings.TrimSpace(raw),
		})
	}

	retained := filterMonotonic(parsed)
	return model.CandidateSetlist{
		Lines:   retained,
		Quality: qualityOf(retained),
	}
}

func consumeOneLeadingSeparator(s string) string {
	for _, sep := range leadingSeparators {
		if strings.HasPrefix(s, sep) {
			return s[len(sep):]
		}
	}
	return s
}

// parseOffset parses H:MM:SS / HH:MM:SS / M:SS / MM:SS into seconds,
// validating the bounds from spec §4.2 Step A (hours 0-23, minutes 0-599).
func parseOffset(s string) (int, bool) {
	parts := strings.Split(s, ":")
	var h, m, sec int
	var err error
	switch len(parts) {
	case 3:
		h, err = strconv.Atoi(parts[0])
		if err != nil || h < 0 || h > 23 {
			return 0, false
		}
		m, err = strconv.Atoi(parts[1])
		if err != nil || m < 0 || m > 59 {
			return 0, false
		}
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, false
		}
		return h*3600 + m*60 + sec, true
	case 2:
		m, err = strconv.Atoi(parts[0])
		if err != nil || m < 0 || m > 599 {
			return 0, false
		}
		sec, err = strconv.Atoi(parts[1])
		if err != nil || sec < 0 || sec > 59 {
			return 0, false
		}
		return m*60 + sec, true
	default:
		return 0, false
	}
}

// splitSongArtist applies spec §4.2 Step C, first match wins.
func splitSongArtist(payload string) (song, artist string) {
	// Rule 1: exactly one '/'.
	if strings.Count(payload, "/") == 1 {
		if m := reSlash.FindStringSubmatch(payload); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		}
	}
	// Rule 2: " - " hyphen split.
	if loc := reDashSplit.FindStringIndex(payload); loc != nil {
		return strings.TrimSpace(payload[:loc[0]]), strings.TrimSpace(payload[loc[1]:])
	}
	// Rule 3: " by " case-insensitive split.
	if loc := reByCI.FindStringIndex(payload); loc != nil {
		return strings.TrimSpace(payload[:loc[0]]), strings.TrimSpace(payload[loc[1]:])
	}
	// Rule 4: trailing parenthetical artist, provided it doesn't itself
	// embed a timestamp (which would mean it's a duration annotation, not
	// an artist name).
	if m := reParen.FindStringSubmatch(payload); m != nil {
		candidate := m[2]
		if !reEmbedded.MatchString(candidate) {
			return strings.TrimSpace(m[1]), strings.TrimSpace(candidate)
		}
	}
	// Rule 5: song-only.
	return payload, ""
}

// filterMonotonic applies spec §4.2 Step D: traverse in source order,
// dropping entries whose offset is less than the previous retained offset
// minus the 5s tolerance; equal offsets collapse to the first.
func filterMonotonic(lines []model.TimestampLine) []model.TimestampLine {
	var out []model.TimestampLine
	hasPrev := false
	prev := 0
	for _, l := range lines {
		if hasPrev {
			if l.OffsetS == prev {
				continue // equal offsets collapse to the first
			}
			if l.OffsetS < prev-5 {
				continue // out-of-order, dropped
			}
		}
		out = append(out, l)
		prev = l.OffsetS
		hasPrev = true
	}
	return out
}

// qualityOf implements spec §4.2 Step E.
func qualityOf(lines []model.TimestampLine) float64 {
	if len(lines) == 0 {
		return 0
	}
	n := len(lines)

	withArtist := 0
	for _, l := range lines {
		if l.Artist != "" {
			withArtist++
		}
	}
	artistRatio := float64(withArtist) / float64(n)

	countTerm := float64(n) / 15
	if countTerm > 1 {
		countTerm = 1
	}

	densityTerm := densityTermOf(lines)

	return 0.5*artistRatio + 0.3*countTerm + 0.2*densityTerm
}

// densityTermOf scores the median gap between consecutive offsets: 1 when
// within [120s, 420s], linearly decaying to 0 outside [30s, 1200s].
func densityTermOf(lines []model.TimestampLine) float64 {
	if len(lines) < 2 {
		return 0
	}
	gaps := make([]int, 0, len(lines)-1)
	for i := 1; i < len(lines); i++ {
		gaps = append(gaps, lines[i].OffsetS-lines[i-1].OffsetS)
	}
	sort.Ints(gaps)
	median := medianOf(gaps)

	switch {
	case median >= 120 && median <= 420:
		return 1
	case median < 120:
		if median <= 30 {
			return 0
		}
		return float64(median-30) / float64(120-30)
	default: // median > 420
		if median >= 1200 {
			return 0
		}
		return float64(1200-median) / float64(1200-420)
	}
}

func medianOf(sorted []int) int {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// RenderHMS renders offset_s as H:MM:SS when >= 3600 else M:SS (spec §3).
func RenderHMS(offsetS int) string {
	h := offsetS / 3600
	m := (offsetS % 3600) / 60
	s := offsetS % 60
	if h > 0 {
		return strconv.Itoa(h) + ":" + pad2(m) + ":" + pad2(s)
	}
	return strconv.Itoa(m) + ":" + pad2(s)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// ParseHMS is the inverse of RenderHMS, used by the round-trip property
// test (spec §8) and by catalog.Load when re-deriving offset_s from a
// stored catalog row's タイムスタンプ column.
func ParseHMS(s string) (int, bool) {
	return parseOffset(s)
}
