package ffmpeg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestScanOutputCarriageReturns tests that progress lines rewritten in place
// with \r are delivered individually
func TestScanOutputCarriageReturns(t *testing.T) {
	raw := "Stream mapping:\n" +
		"time=00:00:01.00 bitrate=192k\r" +
		"time=00:00:02.00 bitrate=192k\r" +
		"time=00:00:03.00 bitrate=192k\n" +
		"video:0kB audio:72kB"

	var lines []string
	scanOutput(strings.NewReader(raw), func(line string) {
		lines = append(lines, line)
	})

	assert.Equal(t, []string{
		"Stream mapping:",
		"time=00:00:01.00 bitrate=192k",
		"time=00:00:02.00 bitrate=192k",
		"time=00:00:03.00 bitrate=192k",
		"video:0kB audio:72kB",
	}, lines)
}

// TestScanOutputSkipsBlankLines tests that empty lines are dropped
func TestScanOutputSkipsBlankLines(t *testing.T) {
	var lines []string
	scanOutput(strings.NewReader("first\n\n\r\nsecond\n"), func(line string) {
		lines = append(lines, line)
	})

	assert.Equal(t, []string{"first", "second"}, lines)
}
