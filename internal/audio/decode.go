package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// MaxTrackBytes caps how much of a track is buffered in memory
const MaxTrackBytes = 64 << 20

// ErrUnsupportedFormat is returned for media no decoder understands
var ErrUnsupportedFormat = errors.New("unsupported audio format")

type decodeFunc func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

// decoderFor picks a decoder from the content type, falling back to the
// URL's extension. Unknown media is tried as mp3.
func decoderFor(contentType, rawURL string) (decodeFunc, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "audio/mpeg", "audio/mp3":
		return mp3.Decode, nil
	case "audio/flac", "audio/x-flac":
		return flac.Decode, nil
	case "audio/wav", "audio/x-wav", "audio/wave":
		return wav.Decode, nil
	}

	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".mp3", "":
		return mp3.Decode, nil
	case ".flac":
		return flac.Decode, nil
	case ".wav":
		return wav.Decode, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// fetch buffers a track from an http(s) URL or a local path
func fetch(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		data, err := os.ReadFile(rawURL)
		return data, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "audio/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxTrackBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > MaxTrackBytes {
		return nil, "", fmt.Errorf("track exceeds %d bytes", MaxTrackBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// decode turns buffered media into a seekable stream
func decode(data []byte, contentType, rawURL string) (beep.StreamSeekCloser, beep.Format, error) {
	dec, err := decoderFor(contentType, rawURL)
	if err != nil {
		return nil, beep.Format{}, err
	}
	return dec(nopCloser{bytes.NewReader(data)})
}

// gain maps a 0-100 percentage onto beep's base-2 volume scale: 100 is
// unchanged, 50 is -1, and 0 is silent.
func gain(percent int) (volume float64, silent bool) {
	switch {
	case percent <= 0:
		return -10, true
	case percent >= 100:
		return 0, false
	default:
		return math.Log2(float64(percent) / 100), false
	}
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
