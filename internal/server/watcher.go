package server

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"echovia/internal/catalog"
	"echovia/pkg/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const (
	importSettleDelay = 500 * time.Millisecond
	maxArtworkBytes   = 5 << 20
)

// StartImportWatcher imports the audio files already in the import folder
// and then watches it for new ones until ctx is cancelled. It does nothing
// when no import folder is configured.
func (ms *MusicServer) StartImportWatcher(ctx context.Context) error {
	dir := ms.config.Media.ImportDir
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if _, err := ms.ScanImportDir(); err != nil {
		ms.logger.WithError(err).Warn("Import folder scan incomplete")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	ms.watcher = watcher

	if err := ms.addDirectoryToWatcher(dir); err != nil {
		watcher.Close()
		return err
	}

	go ms.watchFiles(ctx)

	ms.logger.WithField("import_dir", dir).Info("Import watcher started")
	return nil
}

// ScanImportDir imports every audio file under the import folder with a
// worker pool and returns how many were added.
func (ms *MusicServer) ScanImportDir() (int, error) {
	dir := ms.config.Media.ImportDir
	ms.logger.WithField("import_dir", dir).Info("Scanning import folder")

	var (
		wg       sync.WaitGroup
		imported int64
	)
	jobs := make(chan string, 100)

	for i := 0; i < runtime.NumCPU(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if _, err := ms.importFile(path); err == nil {
					atomic.AddInt64(&imported, 1)
				}
			}
		}()
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && ms.isImportCandidate(path) {
			jobs <- path
		}
		return nil
	})

	close(jobs)
	wg.Wait()

	ms.logger.WithField("imported", imported).Info("Import folder scan finished")
	return int(imported), walkErr
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func (ms *MusicServer) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return ms.watcher.Add(path)
		}
		return nil
	})
}

// watchFiles selects on watcher channels and dispatches events.
func (ms *MusicServer) watchFiles(ctx context.Context) {
	defer ms.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-ms.watcher.Events:
			if !ok {
				return
			}
			ms.handleFileEvent(ctx, event)

		case err, ok := <-ms.watcher.Errors:
			if !ok {
				return
			}
			ms.logger.WithError(err).Error("File watcher error")
		}
	}
}

// handleFileEvent imports new audio files and follows new directories.
// Removals need no handling: imported files have already left the folder.
func (ms *MusicServer) handleFileEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if err := ms.addDirectoryToWatcher(event.Name); err != nil {
			ms.logger.WithError(err).WithField("directory", event.Name).Warn("Could not watch new directory")
			return
		}
		ms.logger.WithField("directory", event.Name).Info("Watching new directory")
		return
	}

	if !ms.isImportCandidate(event.Name) {
		return
	}

	go func(name string) {
		// Give the writer a moment to finish the file
		select {
		case <-ctx.Done():
			return
		case <-time.After(importSettleDelay):
		}
		ms.importFile(name)
	}(event.Name)
}

func (ms *MusicServer) isImportCandidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".part") {
		return false
	}
	return ms.extractor.IsAudioFile(path)
}

// importFile probes a dropped file, moves it into media storage along with
// any embedded artwork, and adds it to the catalog.
func (ms *MusicServer) importFile(path string) (models.Track, error) {
	log := ms.logger.WithField("file_path", path)

	info, err := ms.extractor.Probe(path)
	if err != nil {
		log.WithError(err).Error("Error extracting metadata")
		return models.Track{}, err
	}

	var thumbnail string
	if info.Artwork != nil && len(info.Artwork.Data) > 0 {
		art, err := ms.storage.Save(bytes.NewReader(info.Artwork.Data), info.Artwork.Ext, maxArtworkBytes)
		if err != nil {
			log.WithError(err).Warn("Could not store embedded artwork")
		} else {
			thumbnail = art.URL
		}
	}

	audio, err := ms.storage.Adopt(path)
	if err != nil {
		ms.removeMedia(thumbnail)
		log.WithError(err).Error("Error moving file into media storage")
		return models.Track{}, err
	}

	track, err := ms.db.InsertTrack(models.Track{
		Title:        info.Title,
		Artist:       info.Artist,
		Genre:        catalog.NormalizeGenre(info.Genre),
		ThumbnailURL: thumbnail,
		StreamURL:    audio.URL,
		Duration:     info.Duration,
	})
	if err != nil {
		if mvErr := os.Rename(audio.Path, path); mvErr != nil {
			log.WithError(mvErr).WithField("stored_as", audio.Path).Warn("Could not return file to import folder")
		}
		ms.removeMedia(thumbnail)
		log.WithError(err).Error("Error inserting imported track into database")
		return models.Track{}, err
	}
	ms.catalog.InvalidateSongs()

	log.WithFields(logrus.Fields{
		"artist": track.Artist,
		"title":  track.Title,
		"genre":  track.Genre,
		"id":     track.ID,
	}).Info("Imported track")
	return track, nil
}

// stopImportWatcher closes the watcher (idempotent).
func (ms *MusicServer) stopImportWatcher() {
	if ms.watcher != nil {
		ms.watcher.Close()
	}
}
