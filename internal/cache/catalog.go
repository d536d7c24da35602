package cache

import (
	"time"

	"echovia/pkg/models"
)

const (
	keyAllSongs  = "songs:all"
	prefixGenre  = "songs:genre:"
	keyAllAlbums = "albums:all"
	prefixAlbum  = "albums:tracks:"
)

// CatalogCache caches the read-heavy catalog listings. A nil *CatalogCache
// is valid and caches nothing.
type CatalogCache struct {
	*MemoryCache
}

// NewCatalogCache creates a catalog cache with the given ttl
func NewCatalogCache(ttl time.Duration) *CatalogCache {
	return &CatalogCache{MemoryCache: NewMemoryCache(ttl)}
}

func (cc *CatalogCache) tracks(key string) ([]models.Track, bool) {
	if cc == nil {
		return nil, false
	}
	value, ok := cc.Get(key)
	if !ok {
		return nil, false
	}
	tracks, ok := value.([]models.Track)
	return tracks, ok
}

func (cc *CatalogCache) setTracks(key string, tracks []models.Track) {
	if cc == nil {
		return
	}
	cc.Set(key, tracks)
}

// AllSongs returns the cached newest-first song list
func (cc *CatalogCache) AllSongs() ([]models.Track, bool) { return cc.tracks(keyAllSongs) }

// SetAllSongs caches the song list
func (cc *CatalogCache) SetAllSongs(tracks []models.Track) { cc.setTracks(keyAllSongs, tracks) }

// Genre returns the cached songs of one genre
func (cc *CatalogCache) Genre(genre string) ([]models.Track, bool) {
	return cc.tracks(prefixGenre + genre)
}

// SetGenre caches the songs of one genre
func (cc *CatalogCache) SetGenre(genre string, tracks []models.Track) {
	cc.setTracks(prefixGenre+genre, tracks)
}

// AlbumTracks returns the cached tracks of an album
func (cc *CatalogCache) AlbumTracks(albumID string) ([]models.Track, bool) {
	return cc.tracks(prefixAlbum + albumID)
}

// SetAlbumTracks caches the tracks of an album
func (cc *CatalogCache) SetAlbumTracks(albumID string, tracks []models.Track) {
	cc.setTracks(prefixAlbum+albumID, tracks)
}

// AllAlbums returns the cached album list
func (cc *CatalogCache) AllAlbums() ([]models.Album, bool) {
	if cc == nil {
		return nil, false
	}
	value, ok := cc.Get(keyAllAlbums)
	if !ok {
		return nil, false
	}
	albums, ok := value.([]models.Album)
	return albums, ok
}

// SetAllAlbums caches the album list
func (cc *CatalogCache) SetAllAlbums(albums []models.Album) {
	if cc == nil {
		return
	}
	cc.Set(keyAllAlbums, albums)
}

// InvalidateSongs drops every song listing. Song edits also change album
// listings, so those go too.
func (cc *CatalogCache) InvalidateSongs() {
	if cc == nil {
		return
	}
	cc.Delete(keyAllSongs)
	cc.DeletePrefix(prefixGenre)
	cc.InvalidateAlbums()
}

// InvalidateAlbums drops album listings
func (cc *CatalogCache) InvalidateAlbums() {
	if cc == nil {
		return
	}
	cc.Delete(keyAllAlbums)
	cc.DeletePrefix(prefixAlbum)
}
