package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrTooLarge    = errors.New("media exceeds size limit")
	ErrInvalidName = errors.New("invalid media file name")
)

// Stored describes a file written to media storage
type Stored struct {
	Name string
	Path string
	URL  string
	Size int64
}

// Storage keeps relayed audio and images in a local directory and maps
// them to public URLs under a base path.
type Storage struct {
	dir     string
	baseURL string
	logger  *logrus.Logger
}

// NewStorage creates the media directory if needed
func NewStorage(dir, baseURL string, logger *logrus.Logger) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &Storage{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Dir returns the storage directory
func (s *Storage) Dir() string {
	return s.dir
}

// Save writes r under a fresh name with the given extension. A positive
// limit caps the size; exceeding it removes the partial file and returns
// ErrTooLarge.
func (s *Storage) Save(r io.Reader, ext string, limit int64) (Stored, error) {
	name := uuid.NewString() + cleanExt(ext)
	dest := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Stored{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Stored{}, fmt.Errorf("failed to write media: %w", err)
	}
	if limit > 0 && n > limit {
		return Stored{}, ErrTooLarge
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Stored{}, fmt.Errorf("failed to store media: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"name":  name,
		"bytes": n,
	}).Debug("Stored media file")

	return Stored{Name: name, Path: dest, URL: s.URLFor(name), Size: n}, nil
}

// Adopt moves an existing file into storage under a fresh name. It falls
// back to copying when the source is on another filesystem.
func (s *Storage) Adopt(srcPath string) (Stored, error) {
	name := uuid.NewString() + cleanExt(filepath.Ext(srcPath))
	dest := filepath.Join(s.dir, name)

	if err := os.Rename(srcPath, dest); err != nil {
		in, openErr := os.Open(srcPath)
		if openErr != nil {
			return Stored{}, fmt.Errorf("failed to open %s: %w", srcPath, openErr)
		}
		stored, saveErr := s.Save(in, filepath.Ext(srcPath), 0)
		in.Close()
		if saveErr != nil {
			return Stored{}, saveErr
		}
		if err := os.Remove(srcPath); err != nil {
			s.logger.WithError(err).WithField("path", srcPath).Warn("Failed to remove imported source file")
		}
		return stored, nil
	}

	info, err := os.Stat(dest)
	if err != nil {
		return Stored{}, err
	}
	return Stored{Name: name, Path: dest, URL: s.URLFor(name), Size: info.Size()}, nil
}

// URLFor returns the public URL of a stored file name
func (s *Storage) URLFor(name string) string {
	return s.baseURL + "/" + name
}

// IsLocal reports whether url points into this storage
func (s *Storage) IsLocal(url string) bool {
	_, ok := s.nameFromURL(url)
	return ok
}

// Resolve maps a stored file name to its path. Names containing path
// separators or dot segments are rejected.
func (s *Storage) Resolve(name string) (string, error) {
	if name == "" || name != path.Base(name) || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// Remove deletes the file behind a local media URL. Remote URLs and
// missing files are ignored.
func (s *Storage) Remove(url string) error {
	name, ok := s.nameFromURL(url)
	if !ok {
		return nil
	}
	p, err := s.Resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove media %s: %w", name, err)
	}
	return nil
}

func (s *Storage) nameFromURL(url string) (string, bool) {
	name, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func cleanExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// ExtForContentType picks a file extension for a downloaded body
func ExtForContentType(contentType, fallback string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	}
	return fallback
}
