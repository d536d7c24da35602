package ingest

import (
	"context"
	"math"
	"strings"
	"time"

	"echovia/internal/catalog"
	"echovia/internal/config"
	"echovia/internal/media"
	"echovia/internal/metadata"
	"echovia/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	maxThumbnailBytes = 5 << 20
	thumbnailTimeout  = 20 * time.Second
)

// TrackStore persists ingested tracks
type TrackStore interface {
	InsertTrack(track models.Track) (models.Track, error)
}

// Request is an admin's ask to add a song
type Request struct {
	VideoID      string `json:"videoId"`
	Artist       string `json:"artist"`
	Genre        string `json:"genre"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// Result is a successfully ingested track. Relayed is false when the
// stream URL is the converter's direct link.
type Result struct {
	Track   models.Track `json:"song"`
	Relayed bool         `json:"relayed"`
}

// UploadType names where the stream URL points
func (r Result) UploadType() string {
	if r.Relayed {
		return "local"
	}
	return "direct"
}

// Pipeline turns a video reference into a persisted track
type Pipeline struct {
	cfg        *config.IngestConfig
	converter  *Converter
	thumbnails ThumbnailSource
	fetcher    *Fetcher
	storage    *media.Storage
	extractor  *metadata.Extractor
	tracks     TrackStore
	onAdded    []func(models.Track)
	logger     *logrus.Logger
}

// PipelineDeps are the collaborators of a Pipeline
type PipelineDeps struct {
	Converter  *Converter
	Thumbnails ThumbnailSource
	Fetcher    *Fetcher
	Storage    *media.Storage
	Extractor  *metadata.Extractor
	Tracks     TrackStore
}

// NewPipeline wires a pipeline
func NewPipeline(cfg *config.IngestConfig, deps PipelineDeps, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		converter:  deps.Converter,
		thumbnails: deps.Thumbnails,
		fetcher:    deps.Fetcher,
		storage:    deps.Storage,
		extractor:  deps.Extractor,
		tracks:     deps.Tracks,
		logger:     logger,
	}
}

// OnTrackAdded registers a callback run after each successful ingest
func (p *Pipeline) OnTrackAdded(fn func(models.Track)) {
	p.onAdded = append(p.onAdded, fn)
}

// Add runs the whole ingest. Nothing is persisted unless every step
// succeeds, and media written for a failed ingest is removed.
func (p *Pipeline) Add(ctx context.Context, req Request) (result Result, err error) {
	videoID, err := CleanVideoID(req.VideoID)
	if err != nil {
		return Result{}, err
	}

	log := p.logger.WithField("video_id", videoID)
	log.Info("Starting ingest")

	var written []string
	defer func() {
		if err == nil {
			return
		}
		for _, url := range written {
			if rmErr := p.storage.Remove(url); rmErr != nil {
				log.WithError(rmErr).Warn("Failed to remove media of failed ingest")
			}
		}
		log.WithError(err).WithField("category", CategoryOf(err)).Warn("Ingest failed")
	}()

	conv, err := p.converter.Convert(ctx, videoID)
	if err != nil {
		return Result{}, err
	}

	thumbnail, err := p.relayThumbnail(ctx, videoID, req.ThumbnailURL, &written, log)
	if err != nil {
		return Result{}, err
	}

	track := models.Track{
		Title:        strings.TrimSpace(conv.Title),
		Artist:       strings.TrimSpace(req.Artist),
		Genre:        catalog.NormalizeGenre(req.Genre),
		ThumbnailURL: thumbnail,
		StreamURL:    conv.Link,
		Duration:     int(math.Round(conv.Duration)),
	}
	if track.Artist == "" {
		track.Artist = metadata.UnknownArtist
	}

	audio, relayErr := p.fetcher.Relay(ctx, conv.Link, "audio/mpeg,audio/*,*/*", ".mp3",
		time.Duration(p.cfg.DownloadTimeoutSec)*time.Second, int64(p.cfg.MaxDownloadMB)<<20)
	switch {
	case relayErr == nil:
		written = append(written, audio.URL)
		track.StreamURL = audio.URL
		result.Relayed = true
	case p.cfg.StrictRelay:
		return Result{}, relayErr
	default:
		log.WithError(relayErr).WithField("category", CategoryOf(relayErr)).
			Warn("Audio relay failed, using direct download URL")
	}

	if track.Duration <= 0 && result.Relayed && p.extractor != nil {
		if d, probeErr := p.extractor.Duration(audio.Path); probeErr == nil {
			track.Duration = d
		} else {
			log.WithError(probeErr).Warn("Failed to probe duration")
		}
	}

	saved, err := p.tracks.InsertTrack(track)
	if err != nil {
		return Result{}, newError(CategoryNetwork, "failed to save song", err)
	}
	result.Track = saved

	log.WithFields(logrus.Fields{
		"track_id":    saved.ID,
		"title":       saved.Title,
		"upload_type": result.UploadType(),
	}).Info("Song added")

	for _, fn := range p.onAdded {
		fn(saved)
	}
	return result, nil
}

// relayThumbnail copies the thumbnail into storage. Without an explicit
// thumbnail the video's own is used.
func (p *Pipeline) relayThumbnail(ctx context.Context, videoID, src string, written *[]string, log *logrus.Entry) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		src = FallbackThumbnail(videoID)
		if p.thumbnails != nil {
			if found, err := p.thumbnails.Thumbnail(ctx, videoID); err == nil {
				src = found
			} else {
				log.WithError(err).Debug("Video thumbnail lookup failed, using default")
			}
		}
	}

	stored, err := p.RelayImage(ctx, src)
	if err != nil {
		if p.cfg.StrictRelay {
			return "", err
		}
		log.WithError(err).Warn("Thumbnail relay failed, keeping remote URL")
		return src, nil
	}
	*written = append(*written, stored.URL)
	return stored.URL, nil
}

// RelayImage copies a remote image into storage. Albums and song edits use
// it for their thumbnails.
func (p *Pipeline) RelayImage(ctx context.Context, src string) (media.Stored, error) {
	return p.fetcher.Relay(ctx, src, "image/*", ".jpg", thumbnailTimeout, maxThumbnailBytes)
}
