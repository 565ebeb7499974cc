package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"coda/config"
	"coda/ffmpeg"
	"coda/types"

	"github.com/dhowden/tag"
)

// FileService interface defines methods for browsing inputs and the
// converted library
type FileService interface {
	ScanInputs(dir string) ([]types.MediaFile, error)
	ScanConverted(rootPath string) ([]types.AudioFile, error)
	ExtractAudioMetadata(filePath string) *types.AudioMetadata
	ValidateFilePath(path string) error
	GetContentType(filePath string) string
}

// fileService implements the FileService interface
type fileService struct {
	prober *ffmpeg.Prober
}

// NewFileService creates a new file service. The prober annotates inputs
// with stream information.
func NewFileService(prober *ffmpeg.Prober) FileService {
	return &fileService{prober: prober}
}

// ScanInputs lists the convertible media files directly inside dir,
// annotated with whether they carry a video stream and whether a sibling
// audio segment is waiting to be merged
func (fs *fileService) ScanInputs(dir string) ([]types.MediaFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []types.MediaFile
	for _, entry := range entries {
		if entry.IsDir() || !config.IsConvertible(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Printf("Error reading %s: %v", entry.Name(), err)
			continue
		}

		path := filepath.Join(dir, entry.Name())
		base := strings.TrimSuffix(path, filepath.Ext(path))
		segment := base + ".m4a"

		hasSegment := false
		if segment != path {
			if segInfo, err := os.Stat(segment); err == nil && !segInfo.IsDir() {
				hasSegment = true
			}
		}

		files = append(files, types.MediaFile{
			Filename:        entry.Name(),
			Path:            path,
			Size:            info.Size(),
			Extension:       strings.ToLower(filepath.Ext(path)),
			HasVideo:        fs.prober.HasVideoStream(path),
			HasAudioSegment: hasSegment,
		})
	}
	return files, nil
}

// convertedExtensions are the audio containers the converter can produce
var convertedExtensions = map[string]string{
	".mp3":  "mp3",
	".m4a":  "m4a",
	".flac": "flac",
	".wav":  "wav",
	".ogg":  "ogg",
}

// ScanConverted recursively scans the output library for converted audio
// files and their metadata
func (fs *fileService) ScanConverted(rootPath string) ([]types.AudioFile, error) {
	var files []types.AudioFile

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("Error accessing path %s: %v", path, err)
			return nil // Continue walking, don't fail entire scan
		}
		if info.IsDir() {
			return nil
		}

		format, ok := convertedExtensions[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}

		// Get relative path from root
		relativePath, err := filepath.Rel(rootPath, path)
		if err != nil {
			relativePath = path // fallback to absolute path
		}

		files = append(files, types.AudioFile{
			Filename: info.Name(),
			Path:     relativePath,
			Size:     info.Size(),
			Format:   format,
			Metadata: fs.ExtractAudioMetadata(path),
		})
		return nil
	})

	if err != nil {
		return nil, err
	}
	return files, nil
}

// GetContentType returns the appropriate MIME type for an audio file
func (fs *fileService) GetContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// ExtractAudioMetadata extracts metadata from an audio file with fallback logic
func (fs *fileService) ExtractAudioMetadata(filePath string) *types.AudioMetadata {
	metadata := &types.AudioMetadata{}

	// Try to open and parse the audio file
	file, err := os.Open(filePath)
	if err != nil {
		log.Printf("Warning: Could not open audio file %s: %v", filePath, err)
		// Use filename fallback
		return fs.extractMetadataFromPath(filePath)
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		log.Printf("Warning: Could not parse audio metadata from %s: %v", filePath, err)
		// Converted files usually carry no tags; derive from the name
		return fs.extractMetadataFromPath(filePath)
	}

	metadata.Title = meta.Title()
	metadata.Artist = meta.Artist()
	metadata.Album = meta.Album()

	track, _ := meta.Track()
	metadata.TrackNumber = track

	// Use filename fallback for missing fields
	if metadata.Title == "" || metadata.Artist == "" || metadata.Album == "" {
		fallback := fs.extractMetadataFromPath(filePath)
		if metadata.Title == "" {
			metadata.Title = fallback.Title
		}
		if metadata.Artist == "" {
			metadata.Artist = fallback.Artist
		}
		if metadata.Album == "" {
			metadata.Album = fallback.Album
		}
	}

	return metadata
}

// extractMetadataFromPath extracts metadata from file path as fallback
func (fs *fileService) extractMetadataFromPath(filePath string) *types.AudioMetadata {
	metadata := &types.AudioMetadata{}

	// Parse path components: Artist/Album/Track.mp3 or just Track.mp3
	parts := strings.Split(filepath.ToSlash(filePath), "/")
	filename := filepath.Base(filePath)

	// Extract artist from path (grandparent directory)
	if len(parts) >= 3 {
		metadata.Artist = parts[len(parts)-3]
	}

	// Extract album from path (parent directory)
	if len(parts) >= 2 {
		metadata.Album = parts[len(parts)-2]
	}

	// Extract title from filename, removing track number prefix and extension
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	// Remove common track number prefixes like "01 - ", "1. ", etc.
	re := regexp.MustCompile(`^(\d+)[\.\-\s]+(.+)`)
	if matches := re.FindStringSubmatch(title); len(matches) > 2 {
		title = matches[2]
		// Try to extract track number
		if trackNum, err := strconv.Atoi(matches[1]); err == nil {
			metadata.TrackNumber = trackNum
		}
	}

	metadata.Title = title

	return metadata
}

// ValidateFilePath checks for path traversal attempts and other security issues
func (fs *fileService) ValidateFilePath(path string) error {
	// Check for path traversal attempts
	if strings.Contains(path, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	// Check for absolute paths
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("absolute paths not allowed")
	}

	// Check for empty path
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty path not allowed")
	}

	return nil
}
