package ffmpeg

// MergeArgs builds the arguments that stream-copy a video fragment and its
// sibling audio fragment into one MPEG-TS container, no re-encode.
func MergeArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "copy",
		"-f", "mpegts",
		outputPath,
	}
}

// EncodeArgs builds the arguments that extract 44.1kHz stereo 192kbps audio
// from the input, optionally applying the loudnorm filter.
func EncodeArgs(inputPath, outputPath string, normalize bool) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vn", "-ar", "44100", "-ac", "2", "-b:a", "192k",
	}
	if normalize {
		args = append(args, "-af", "loudnorm")
	}
	return append(args, outputPath)
}
