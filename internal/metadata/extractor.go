package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// UnknownArtist is used when a file carries no artist tag
const UnknownArtist = "Unknown Artist"

// Info is what can be learned about an audio file on disk
type Info struct {
	Title    string
	Artist   string
	Album    string
	Genre    string
	Duration int // seconds, 0 when unknown
	Size     int64
	Artwork  *Artwork
}

// Artwork is an embedded cover image
type Artwork struct {
	MIMEType string
	Ext      string
	Data     []byte
}

// Extractor reads tags and durations from audio files
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string, logger *logrus.Logger) *Extractor {
	return &Extractor{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// Probe extracts tags and duration. Files without readable tags fall back
// to the file name as title.
func (e *Extractor) Probe(filePath string) (Info, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat audio file: %w", err)
	}

	info := Info{
		Title:  strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)),
		Artist: UnknownArtist,
		Size:   stat.Size(),
	}

	duration, err := e.Duration(filePath)
	if err != nil {
		e.logger.WithError(err).WithField("file_path", filePath).Warn("Failed to calculate duration")
	}
	info.Duration = duration

	md, err := tag.ReadFrom(file)
	if err != nil {
		e.logger.WithError(err).WithField("file_path", filePath).Debug("No readable tags, using file name")
		return info, nil
	}

	if t := strings.TrimSpace(md.Title()); t != "" {
		info.Title = t
	}
	if a := strings.TrimSpace(md.Artist()); a != "" {
		info.Artist = a
	}
	info.Album = strings.TrimSpace(md.Album())
	info.Genre = strings.TrimSpace(md.Genre())

	if pic := md.Picture(); pic != nil && len(pic.Data) > 0 {
		mime := pic.MIMEType
		if mime == "" {
			mime = SniffImageType(pic.Data)
		}
		info.Artwork = &Artwork{MIMEType: mime, Ext: imageExt(pic.Ext, mime), Data: pic.Data}
	}

	e.logger.WithFields(logrus.Fields{
		"file_path":       filePath,
		"title":           info.Title,
		"artist":          info.Artist,
		"duration":        info.Duration,
		"has_artwork":     info.Artwork != nil,
		"processing_time": time.Since(startTime),
	}).Debug("Probed audio file")

	return info, nil
}

// Duration returns the playing time of an audio file in whole seconds
func (e *Extractor) Duration(filePath string) (int, error) {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".mp3":
		return durationMP3(filePath)
	case ".flac":
		return durationFLAC(filePath)
	case ".wav":
		return durationWAV(filePath)
	case ".m4a":
		return durationM4A(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// IsAudioFile checks if a file has a supported audio extension
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// durationMP3 sums frame durations. When no frame decodes it estimates from
// the file size at 128 kbps, the converter's output rate.
func durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var (
		total   time.Duration
		skipped int
		frames  int
		frame   mp3.Frame
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || frames > 0 {
				break
			}
			return estimateFromSize(f, 128_000)
		}
		total += frame.Duration()
		frames++
	}
	return int(total.Round(time.Second).Seconds()), nil
}

func durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	si := stream.Info
	if si.NSamples == 0 || si.SampleRate == 0 {
		return 0, errors.New("flac stream missing sample info")
	}
	return roundSeconds(float64(si.NSamples) / float64(si.SampleRate)), nil
}

func durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, errors.New("invalid wav file")
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("wav duration: %w", err)
	}
	return int(d.Round(time.Second).Seconds()), nil
}

func estimateFromSize(f *os.File, bitsPerSecond int64) (int, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return int(st.Size() * 8 / bitsPerSecond), nil
}

func roundSeconds(secs float64) int {
	return int(secs + 0.5)
}
