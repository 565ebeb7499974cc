package types

// ConversionRequest is the body of a batch submission
type ConversionRequest struct {
	Inputs    []string `json:"inputs"`
	OutputDir string   `json:"outputDir,omitempty"`
	Normalize *bool    `json:"normalize,omitempty"`
	Format    string   `json:"format,omitempty"`
}

// MediaFile represents a convertible input file discovered on disk
type MediaFile struct {
	Filename        string `json:"filename"`
	Path            string `json:"path"`
	Size            int64  `json:"size"`
	Extension       string `json:"extension"`
	HasVideo        bool   `json:"hasVideo"`
	HasAudioSegment bool   `json:"hasAudioSegment"` // sibling .m4a fragment present
}

// AudioFile represents a converted audio file (MP3, etc.)
type AudioFile struct {
	Filename string         `json:"filename"`
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	Format   string         `json:"format"` // "mp3", "flac", etc.
	Metadata *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata represents metadata for an audio file
type AudioMetadata struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Duration    string `json:"duration,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`
}
