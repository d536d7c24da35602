package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"echovia/internal/auth"
	"echovia/internal/cache"
	"echovia/internal/config"
	"echovia/internal/database"
	"echovia/internal/ingest"
	"echovia/internal/media"
	"echovia/internal/metadata"
	"echovia/pkg/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators a MusicServer routes requests to. Pipeline
// and Jobs are nil when ingestion is disabled; Images may still be set.
type Deps struct {
	DB        *database.Database
	Auth      *auth.Service
	Catalog   *cache.CatalogCache
	Pipeline  *ingest.Pipeline
	Jobs      *ingest.JobManager
	Images    ImageRelay
	Storage   *media.Storage
	Extractor *metadata.Extractor
}

// MusicServer represents the main music streaming server
type MusicServer struct {
	db         *database.Database
	config     *config.Config
	auth       *auth.Service
	catalog    *cache.CatalogCache
	pipeline   *ingest.Pipeline
	jobs       *ingest.JobManager
	images     ImageRelay
	storage    *media.Storage
	extractor  *metadata.Extractor
	watcher    *fsnotify.Watcher
	httpServer *http.Server
	handler    http.Handler
	startedAt  time.Time
	logger     *logrus.Logger
}

// NewMusicServer creates a new music server instance
func NewMusicServer(cfg *config.Config, deps Deps, logger *logrus.Logger) *MusicServer {
	ms := &MusicServer{
		db:        deps.DB,
		config:    cfg,
		auth:      deps.Auth,
		catalog:   deps.Catalog,
		pipeline:  deps.Pipeline,
		jobs:      deps.Jobs,
		images:    deps.Images,
		storage:   deps.Storage,
		extractor: deps.Extractor,
		startedAt: time.Now(),
		logger:    logger,
	}

	if ms.pipeline != nil {
		ms.pipeline.OnTrackAdded(func(models.Track) {
			ms.catalog.InvalidateSongs()
		})
	}

	ms.handler = ms.panicRecoveryMiddleware(
		ms.requestLoggingMiddleware(
			ms.corsMiddleware(ms.setupRoutes()),
		),
	)
	ms.httpServer = &http.Server{
		Addr:              cfg.GetAddress(),
		Handler:           ms.handler,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ms
}

// Handler returns the fully wrapped HTTP handler
func (ms *MusicServer) Handler() http.Handler {
	return ms.handler
}

// Start serves on the configured address until Shutdown is called
func (ms *MusicServer) Start() error {
	l, err := net.Listen("tcp", ms.config.GetAddress())
	if err != nil {
		return err
	}
	return ms.Serve(l)
}

// Serve accepts connections on l. The ngrok tunnel and the local listener
// both end up here.
func (ms *MusicServer) Serve(l net.Listener) error {
	count, err := ms.db.CountTracks()
	if err != nil {
		ms.logger.WithError(err).Warn("Could not count tracks")
	}
	ms.logger.WithFields(logrus.Fields{
		"address": l.Addr().String(),
		"tracks":  count,
		"ingest":  ms.pipeline != nil,
	}).Info("Echovia server starting")

	if err := ms.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and the import watcher
func (ms *MusicServer) Shutdown(ctx context.Context) error {
	ms.logger.Info("Shutting down music server...")

	ms.stopImportWatcher()

	err := ms.httpServer.Shutdown(ctx)

	ms.logger.Info("Music server shutdown complete")
	return err
}

func (ms *MusicServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /api/user/signup", ms.handleSignup)
	mux.HandleFunc("POST /api/user/login", ms.handleLogin)
	mux.HandleFunc("GET /api/user/logout", ms.handleLogout)
	mux.HandleFunc("GET /api/user/me", ms.requireAuth(ms.handleMe))

	// Songs
	mux.HandleFunc("POST /api/songs/add", ms.requireAdmin(ms.handleAddSong))
	mux.HandleFunc("POST /api/songs/add-async", ms.requireAdmin(ms.handleAddSongAsync))
	mux.HandleFunc("GET /api/songs/jobs", ms.requireAdmin(ms.handleGetJobs))
	mux.HandleFunc("GET /api/songs/jobs/{id}", ms.requireAdmin(ms.handleGetJob))
	mux.HandleFunc("GET /api/songs/all-songs", ms.requireAuth(ms.handleGetAllSongs))
	mux.HandleFunc("GET /api/songs/search", ms.requireAuth(ms.handleSearchSongs))
	mux.HandleFunc("GET /api/songs/{id}", ms.requireAuth(ms.handleGetSong))

	// Playlists. Genre listing and playlist songs share a path shape, so
	// one handler dispatches both.
	mux.HandleFunc("POST /api/playlist/create", ms.requireAuth(ms.handleCreatePlaylist))
	mux.HandleFunc("POST /api/playlist/add-song", ms.requireAuth(ms.handleAddSongToPlaylist))
	mux.HandleFunc("GET /api/playlist/fetch", ms.requireAuth(ms.handleGetPlaylists))
	mux.HandleFunc("GET /api/playlist/{first}/{second}", ms.requireAuth(ms.handlePlaylistPath))
	mux.HandleFunc("DELETE /api/playlist/delete/{playlistId}", ms.requireAuth(ms.handleDeletePlaylist))
	mux.HandleFunc("DELETE /api/playlist/remove-song/{playlistId}/{songId}", ms.requireAuth(ms.handleRemoveSongFromPlaylist))

	// Albums
	mux.HandleFunc("POST /api/album/create-album", ms.requireAdmin(ms.handleCreateAlbum))
	mux.HandleFunc("POST /api/album/add-song-to-album", ms.requireAdmin(ms.handleAddSongToAlbum))
	mux.HandleFunc("DELETE /api/album/{albumId}/delete/{songId}", ms.requireAdmin(ms.handleRemoveSongFromAlbum))
	mux.HandleFunc("DELETE /api/album/delete/{albumId}", ms.requireAdmin(ms.handleDeleteAlbum))
	mux.HandleFunc("GET /api/album/all-albums", ms.requireAuth(ms.handleGetAllAlbums))
	mux.HandleFunc("GET /api/album/{albumId}/songs", ms.requireAuth(ms.handleGetAlbumSongs))
	mux.HandleFunc("GET /api/album/{albumId}", ms.requireAuth(ms.handleGetAlbum))

	// Admin
	mux.HandleFunc("POST /api/admin/change-role", ms.requireAuth(ms.handleChangeRole))
	mux.HandleFunc("POST /api/admin/update-song/{id}", ms.requireAdmin(ms.handleUpdateSong))
	mux.HandleFunc("DELETE /api/admin/delete-song/{id}", ms.requireAdmin(ms.handleDeleteSong))
	mux.HandleFunc("GET /api/admin/all-users", ms.requireAdmin(ms.handleGetAllUsers))

	// Player state for web clients
	mux.HandleFunc("GET /api/player/state", ms.requireAuth(ms.handleGetPlayerState))
	mux.HandleFunc("PUT /api/player/state", ms.requireAuth(ms.handleUpdatePlayerState))
	mux.HandleFunc("DELETE /api/player/state", ms.requireAuth(ms.handleClearPlayerState))

	mux.HandleFunc("GET /media/{file}", ms.handleStreamMedia)
	mux.HandleFunc("GET /api/health", ms.handleHealthCheck)

	return mux
}
