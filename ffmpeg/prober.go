package ffmpeg

// Prober inspects media files through the external tools
type Prober struct {
	runner      Runner
	ffmpegPath  string
	ffprobePath string
}

// NewProber creates a prober that invokes the given tool binaries
func NewProber(runner Runner, ffmpegPath, ffprobePath string) *Prober {
	return &Prober{
		runner:      runner,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// Duration returns the media duration in seconds. The info-only invocation
// always exits non-zero, so only the diagnostics matter; an unparseable
// duration yields 0 and progress reporting for the file silently no-ops.
func (p *Prober) Duration(path string) float64 {
	out, _ := p.runner.Capture(p.ffmpegPath, "-i", path)
	return ParseDurationOutput(out)
}

// HasVideoStream reports whether the file carries a video stream
func (p *Prober) HasVideoStream(path string) bool {
	out, err := p.runner.Capture(p.ffprobePath,
		"-v", "error", "-show_streams", "-of", "default=nw=1", path)
	if err != nil {
		return false
	}
	return HasVideoOutput(out)
}
