package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"echovia/pkg/models"

	"github.com/sirupsen/logrus"
)

const userAgent = "echovia-player/1.0"

// ErrUnauthorized matches any APIError for a missing, expired or revoked
// session. Callers treat it as logged out.
var ErrUnauthorized = errors.New("session expired or invalid")

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client talks to an echovia server on behalf of the terminal player.
// After Login it sends the issued token as a Bearer header.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	logger     *logrus.Logger

	mu    sync.RWMutex
	token string
}

// New creates a client for the server at baseURL
func New(baseURL string, httpClient *http.Client, logger *logrus.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: u, httpClient: httpClient, logger: logger}, nil
}

// Token returns the current auth token, empty before Login
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken installs a previously issued token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Resolve turns a media locator from the catalog into an absolute URL.
// Locally stored media is served relative to the server.
func (c *Client) Resolve(locator string) string {
	if locator == "" {
		return ""
	}
	ref, err := url.Parse(locator)
	if err != nil || ref.IsAbs() {
		return locator
	}
	return c.base.ResolveReference(ref).String()
}

// Login authenticates and keeps the issued token for later calls
func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	var resp struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/user/login", body, &resp); err != nil {
		return models.User{}, err
	}
	if resp.Token == "" {
		return models.User{}, fmt.Errorf("login response carried no token")
	}
	c.SetToken(resp.Token)
	c.logger.WithField("user", resp.User.Username).Debug("Logged in")
	return resp.User, nil
}

// Logout revokes the session on the server and forgets the token. The
// token is dropped even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/api/user/logout", nil, nil)
	c.SetToken("")
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return err
	}
	c.logger.Debug("Logged out")
	return nil
}

// Me returns the logged-in account
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var resp struct {
		User models.User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/api/user/me", nil, &resp)
	return resp.User, err
}

// AllSongs lists the whole catalog, newest first
func (c *Client) AllSongs(ctx context.Context) ([]models.Track, error) {
	return c.songs(ctx, "/api/songs/all-songs")
}

// Search ranks the catalog against query
func (c *Client) Search(ctx context.Context, query string) ([]models.Track, error) {
	return c.songs(ctx, "/api/songs/search?q="+url.QueryEscape(query))
}

// Genre lists the songs of one genre
func (c *Client) Genre(ctx context.Context, genre string) ([]models.Track, error) {
	return c.songs(ctx, "/api/playlist/genre/"+url.PathEscape(genre))
}

// Playlists lists the caller's playlists
func (c *Client) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var resp struct {
		Playlists []models.Playlist `json:"playlists"`
	}
	err := c.do(ctx, http.MethodGet, "/api/playlist/fetch", nil, &resp)
	return resp.Playlists, err
}

// PlaylistTracks returns a playlist's songs in order
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	return c.songs(ctx, "/api/playlist/"+url.PathEscape(playlistID)+"/songs")
}

// Albums lists every album
func (c *Client) Albums(ctx context.Context) ([]models.Album, error) {
	var resp struct {
		Albums []models.Album `json:"albums"`
	}
	err := c.do(ctx, http.MethodGet, "/api/album/all-albums", nil, &resp)
	return resp.Albums, err
}

// AlbumTracks returns an album's songs in order
func (c *Client) AlbumTracks(ctx context.Context, albumID string) ([]models.Track, error) {
	return c.songs(ctx, "/api/album/"+url.PathEscape(albumID)+"/songs")
}

func (c *Client) songs(ctx context.Context, path string) ([]models.Track, error) {
	var resp struct {
		Songs []models.Track `json:"songs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Songs, nil
}

// do sends one JSON request and decodes the answer into result
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(b)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		msg := e.Error
		if msg == "" {
			msg = e.Message
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
