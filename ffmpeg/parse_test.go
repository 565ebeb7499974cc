package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParseTimestamp tests timestamp token parsing
func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{
			name:     "hours minutes seconds",
			input:    "00:01:30.50",
			expected: 90.5,
		},
		{
			name:     "single digit hour",
			input:    "1:02:03.25",
			expected: 3723.25,
		},
		{
			name:     "minutes seconds only",
			input:    "01:30.5",
			expected: 90.5,
		},
		{
			name:     "zero",
			input:    "00:00:00.00",
			expected: 0,
		},
		{
			name:     "no fractional part",
			input:    "02:00:00",
			expected: 7200,
		},
		{
			name:     "garbage",
			input:    "not a timestamp",
			expected: 0,
		},
		{
			name:     "too many parts",
			input:    "1:2:3:4",
			expected: 0,
		},
		{
			name:     "empty",
			input:    "",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ParseTimestamp(tt.input), 0.001)
		})
	}
}

// TestParseDurationOutput tests duration extraction from probe diagnostics
func TestParseDurationOutput(t *testing.T) {
	probeOutput := `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'clip.mp4':
  Metadata:
    major_brand     : isom
  Duration: 00:01:30.50, start: 0.000000, bitrate: 1205 kb/s
    Stream #0:0(und): Video: h264 (High) (avc1 / 0x31637661), yuv420p
At least one output file must be specified`

	assert.InDelta(t, 90.5, ParseDurationOutput(probeOutput), 0.001)
}

// TestParseDurationOutputMissing tests that unmatched diagnostics yield zero
func TestParseDurationOutputMissing(t *testing.T) {
	assert.Equal(t, 0.0, ParseDurationOutput("clip.mp4: No such file or directory"))
	assert.Equal(t, 0.0, ParseDurationOutput(""))
}

// TestParseProgressTime tests progress token extraction
func TestParseProgressTime(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected float64
		ok       bool
	}{
		{
			name:     "typical progress line",
			line:     "size=    1536kB time=00:01:05.52 bitrate= 192.1kbits/s speed=42.1x",
			expected: 65.52,
			ok:       true,
		},
		{
			name:     "long media",
			line:     "size=  102400kB time=1:02:03.25 bitrate= 192.0kbits/s",
			expected: 3723.25,
			ok:       true,
		},
		{
			name: "diagnostic line without time token",
			line: "Stream mapping: Stream #0:1 -> #0:0 (aac (native) -> mp3 (libmp3lame))",
			ok:   false,
		},
		{
			name: "empty line",
			line: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			position, ok := ParseProgressTime(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.expected, position, 0.001)
			}
		})
	}
}

// TestHasVideoOutput tests video stream detection from probe output
func TestHasVideoOutput(t *testing.T) {
	videoProbe := `index=0
codec_name=h264
codec_type=video
index=1
codec_name=aac
codec_type=audio`

	audioProbe := `index=0
codec_name=aac
codec_type=audio`

	assert.True(t, HasVideoOutput(videoProbe))
	assert.False(t, HasVideoOutput(audioProbe))
	assert.False(t, HasVideoOutput(""))
}
