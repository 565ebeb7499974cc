package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	durationRe = regexp.MustCompile(`Duration: (\d+:\d+:\d+\.\d+)`)
	progressRe = regexp.MustCompile(`time=(\d+:\d+:\d+\.\d+)`)
)

// ParseTimestamp converts a "HH:MM:SS.ff" or "MM:SS.ff" token to seconds.
// Returns 0 for anything it cannot parse.
func ParseTimestamp(s string) float64 {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 3:
		hours, err1 := strconv.Atoi(parts[0])
		minutes, err2 := strconv.Atoi(parts[1])
		seconds, err3 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0
		}
		return float64(hours)*3600 + float64(minutes)*60 + seconds
	case 2:
		minutes, err1 := strconv.Atoi(parts[0])
		seconds, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return 0
		}
		return float64(minutes)*60 + seconds
	default:
		return 0
	}
}

// ParseDurationOutput extracts the media duration in seconds from the
// tool's probe diagnostics, or 0 when no duration token is present.
// The format of these diagnostics is a best-effort heuristic, not a
// stable contract.
func ParseDurationOutput(out string) float64 {
	match := durationRe.FindStringSubmatch(out)
	if match == nil {
		return 0
	}
	return ParseTimestamp(match[1])
}

// ParseProgressTime extracts the transcoded position in seconds from one
// progress line. The second return is false when the line carries no
// time token.
func ParseProgressTime(line string) (float64, bool) {
	match := progressRe.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	return ParseTimestamp(match[1]), true
}

// HasVideoOutput reports whether probe stream output lists a video stream
func HasVideoOutput(out string) bool {
	return strings.Contains(out, "codec_type=video")
}
