package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

var Env = map[string]string{
	"FFMPEG_PATH":     os.Getenv("FFMPEG_PATH"),
	"FFPROBE_PATH":    os.Getenv("FFPROBE_PATH"),
	"OUTPUT_LOCATION": os.Getenv("OUTPUT_LOCATION"),
	"REDIS_ADDR":      os.Getenv("REDIS_ADDR"),
}

// DefaultFormat is the audio format used when a request does not name one
const DefaultFormat = "mp3"

// convertibleExtensions lists the input containers the converter accepts
var convertibleExtensions = map[string]bool{
	".m4s": true,
	".m4a": true,
	".mp4": true,
	".mkv": true,
	".avi": true,
}

// IsConvertible reports whether a path looks like a supported input container
func IsConvertible(path string) bool {
	return convertibleExtensions[strings.ToLower(filepath.Ext(path))]
}

// GetFFmpegPath returns the transcoder binary to invoke. An explicit
// FFMPEG_PATH wins; otherwise a few conventional install locations are
// probed before falling back to whatever "ffmpeg" resolves to on PATH.
func GetFFmpegPath() string {
	if path := Env["FFMPEG_PATH"]; path != "" {
		return path
	}
	return discoverTool("ffmpeg")
}

// GetFFprobePath returns the probe binary to invoke, resolved like GetFFmpegPath
func GetFFprobePath() string {
	if path := Env["FFPROBE_PATH"]; path != "" {
		return path
	}
	return discoverTool("ffprobe")
}

// discoverTool probes conventional install locations for a binary and falls
// back to the bare name so PATH lookup still applies.
func discoverTool(name string) string {
	var candidates []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, name))
	}
	candidates = append(candidates,
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/opt/homebrew/bin", name),
	)

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return name
}

// GetOutputLocation returns where converted audio is written. The user's
// saved settings take priority, then the OUTPUT_LOCATION environment
// variable, then an OS-appropriate default under the home directory.
func GetOutputLocation() string {
	if saved := getUserOutputLocation(); saved != "" {
		return saved
	}

	if customPath := Env["OUTPUT_LOCATION"]; customPath != "" {
		return customPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if can't get home dir
		return filepath.Join(".", "converted")
	}

	return filepath.Join(homeDir, "Music", "Coda")
}

// GetRedisAddr returns the Redis address for job-record persistence
func GetRedisAddr() string {
	if addr := Env["REDIS_ADDR"]; addr != "" {
		return addr
	}
	return "localhost:6379"
}

// UserSettings represents the user's personal settings
type UserSettings struct {
	OutputLocation string `json:"outputLocation"`
	Normalize      bool   `json:"normalize"`
	Format         string `json:"format,omitempty"`
}

// GetSettingsFilePath returns the path to the settings file
func GetSettingsFilePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".coda-settings.json")
}

// getUserOutputLocation loads the user's preferred output location from the
// settings file, returning "" so callers fall back to env vars when the file
// is absent or unreadable.
func getUserOutputLocation() string {
	settingsPath := GetSettingsFilePath()

	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return ""
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return ""
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return ""
	}

	return settings.OutputLocation
}
