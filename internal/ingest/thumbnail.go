package ingest

import (
	"context"
	"fmt"

	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"
)

// ThumbnailSource finds a thumbnail for a video when the request has none
type ThumbnailSource interface {
	Thumbnail(ctx context.Context, videoID string) (string, error)
}

// FallbackThumbnail is the static thumbnail every public video has
func FallbackThumbnail(videoID string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID)
}

// YouTubeThumbnails picks the widest thumbnail from the video's metadata
type YouTubeThumbnails struct {
	Client *youtube.Client
}

// Thumbnail implements ThumbnailSource
func (y YouTubeThumbnails) Thumbnail(ctx context.Context, videoID string) (string, error) {
	client := y.Client
	if client == nil {
		client = &youtube.Client{}
	}
	video, err := client.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("fetch video metadata: %w", err)
	}
	if len(video.Thumbnails) == 0 {
		return "", fmt.Errorf("video %s has no thumbnails", videoID)
	}
	best := lo.MaxBy(video.Thumbnails, func(a, b youtube.Thumbnail) bool {
		return a.Width > b.Width
	})
	return best.URL, nil
}
