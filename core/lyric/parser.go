package lyric

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"MeloFM/model"
)

// lineRegex matches one LRC timestamp tag followed by the line text.
// The fractional part is 2 or 3 digits; the divisor is chosen per
// match, since a single file can mix both widths.
var lineRegex = regexp.MustCompile(`\[(\d{2}):(\d{2})\.(\d{2,3})\](.*)`)

// Parse converts raw LRC text into lines ordered by time. Lines whose
// text trims to empty are dropped. Only the single-tag-per-line form
// is handled; a line carrying several tags contributes its first.
func Parse(raw string) []model.LyricLine {
	lines := make([]model.LyricLine, 0, 64)

	for _, m := range lineRegex.FindAllStringSubmatch(raw, -1) {
		min, _ := strconv.Atoi(m[1])
		sec, _ := strconv.Atoi(m[2])
		frac, _ := strconv.Atoi(m[3])

		divisor := 1000.0
		if len(m[3]) == 2 {
			divisor = 100.0
		}
		t := float64(min)*60 + float64(sec) + float64(frac)/divisor

		text := strings.TrimSpace(m[4])
		if text == "" {
			continue
		}
		lines = append(lines, model.LyricLine{Time: t, Text: text})
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Time < lines[j].Time })
	return lines
}
