package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	statusOK         = "ok"
	statusFail       = "fail"
	statusProcessing = "processing"
)

// Conversion is the converter's answer for one video
type Conversion struct {
	Link     string  `json:"link"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Status   string  `json:"status"`
	Msg      string  `json:"msg"`
	Code     int     `json:"code"`
	Error    string  `json:"error"`
}

// Converter talks to the YouTube-to-MP3 conversion API
type Converter struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	baseURL      string
	host         string
	apiKey       string
	maxPolls     int
	pollInterval time.Duration
	logger       *logrus.Logger
}

// ConverterOptions configures a Converter
type ConverterOptions struct {
	Host              string
	APIKey            string
	BaseURL           string // defaults to https://{Host}
	RequestsPerSecond float64
	MaxPolls          int
	PollInterval      time.Duration
	HTTPClient        *http.Client
}

// NewConverter creates a rate-limited converter client
func NewConverter(opts ConverterOptions, logger *logrus.Logger) *Converter {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://" + opts.Host
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 5
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Converter{
		httpClient:   opts.HTTPClient,
		limiter:      rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		baseURL:      opts.BaseURL,
		host:         opts.Host,
		apiKey:       opts.APIKey,
		maxPolls:     opts.MaxPolls,
		pollInterval: opts.PollInterval,
		logger:       logger,
	}
}

// Convert asks for a download link. A "processing" answer is polled a few
// times before giving up.
func (c *Converter) Convert(ctx context.Context, videoID string) (Conversion, error) {
	for attempt := 1; ; attempt++ {
		conv, err := c.request(ctx, videoID)
		if err != nil {
			return Conversion{}, err
		}

		c.logger.WithFields(logrus.Fields{
			"video_id": videoID,
			"status":   conv.Status,
			"attempt":  attempt,
		}).Debug("Converter response")

		if conv.Status == statusFail || conv.Code == http.StatusForbidden {
			msg := conv.Msg
			if msg == "" {
				msg = conv.Error
			}
			return Conversion{}, newError(CategoryConversionFailed, "failed to convert video", errors.New(msg))
		}
		if conv.Status == statusProcessing && conv.Link == "" && attempt < c.maxPolls {
			select {
			case <-ctx.Done():
				return Conversion{}, wrap("waiting for conversion", ctx.Err())
			case <-time.After(c.pollInterval):
			}
			continue
		}
		if conv.Link == "" {
			return Conversion{}, newError(CategoryConversionFailed, "failed to get download URL from API", nil)
		}
		if conv.Title == "" {
			conv.Title = "song"
		}
		return conv, nil
	}
}

func (c *Converter) request(ctx context.Context, videoID string) (Conversion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Conversion{}, wrap("rate limiter", err)
	}

	endpoint := c.baseURL + "/dl?" + url.Values{"id": {videoID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Conversion{}, newError(CategoryInvalidInput, "build converter request", err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Conversion{}, wrap("converter request", err)
	}
	defer resp.Body.Close()

	var conv Conversion
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		if resp.StatusCode >= 500 {
			return Conversion{}, newError(CategoryNetwork, fmt.Sprintf("converter returned %d", resp.StatusCode), nil)
		}
		return Conversion{}, newError(CategoryConversionFailed, "invalid converter response", err)
	}
	if resp.StatusCode >= 500 {
		return Conversion{}, newError(CategoryNetwork, fmt.Sprintf("converter returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 && conv.Code == 0 {
		conv.Code = resp.StatusCode
		conv.Status = statusFail
	}
	return conv, nil
}
