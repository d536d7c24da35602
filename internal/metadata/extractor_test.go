package metadata

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestExtractor() *Extractor {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewExtractor([]string{".mp3", ".flac", ".wav", ".m4a"}, logger)
}

// writeWAV writes a silent 16-bit mono PCM file of the given length
func writeWAV(t *testing.T, path string, sampleRate, seconds int) {
	t.Helper()
	dataSize := uint32(sampleRate * 2 * seconds)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(make([]byte, dataSize))

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write wav: %v", err)
	}
}

// writeM4A writes the minimal box layout durationM4A needs
func writeM4A(t *testing.T, path string, timescale, units uint32) {
	t.Helper()
	var mvhd bytes.Buffer
	mvhd.Write([]byte{0, 0, 0, 0}) // version 0, flags
	binary.Write(&mvhd, binary.BigEndian, uint32(0))
	binary.Write(&mvhd, binary.BigEndian, uint32(0))
	binary.Write(&mvhd, binary.BigEndian, timescale)
	binary.Write(&mvhd, binary.BigEndian, units)

	box := func(name string, payload []byte) []byte {
		var b bytes.Buffer
		binary.Write(&b, binary.BigEndian, uint32(8+len(payload)))
		b.WriteString(name)
		b.Write(payload)
		return b.Bytes()
	}

	moov := box("moov", append(box("trak", make([]byte, 4)), box("mvhd", mvhd.Bytes())...))
	file := append(box("ftyp", []byte("M4A ")), moov...)
	if err := os.WriteFile(path, file, 0644); err != nil {
		t.Fatalf("Failed to write m4a: %v", err)
	}
}

func TestDuration(t *testing.T) {
	e := newTestExtractor()
	dir := t.TempDir()

	t.Run("WAV", func(t *testing.T) {
		path := filepath.Join(dir, "tone.wav")
		writeWAV(t, path, 8000, 3)
		got, err := e.Duration(path)
		if err != nil {
			t.Fatalf("Failed to get wav duration: %v", err)
		}
		if got != 3 {
			t.Errorf("Expected 3 seconds, got %d", got)
		}
	})

	t.Run("M4A", func(t *testing.T) {
		path := filepath.Join(dir, "song.m4a")
		writeM4A(t, path, 1000, 184_600)
		got, err := e.Duration(path)
		if err != nil {
			t.Fatalf("Failed to get m4a duration: %v", err)
		}
		if got != 185 {
			t.Errorf("Expected 185 seconds, got %d", got)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := e.Duration(filepath.Join(dir, "notes.txt")); err == nil {
			t.Error("Expected error for unsupported format")
		}
	})
}

func TestProbeFallsBackToFileName(t *testing.T) {
	e := newTestExtractor()
	path := filepath.Join(t.TempDir(), "My Song.wav")
	writeWAV(t, path, 8000, 2)

	info, err := e.Probe(path)
	if err != nil {
		t.Fatalf("Failed to probe: %v", err)
	}
	if info.Title != "My Song" {
		t.Errorf("Expected title from file name, got %q", info.Title)
	}
	if info.Artist != UnknownArtist {
		t.Errorf("Expected %q, got %q", UnknownArtist, info.Artist)
	}
	if info.Duration != 2 {
		t.Errorf("Expected 2 seconds, got %d", info.Duration)
	}
	if info.Size == 0 {
		t.Error("Expected file size to be set")
	}
}

func TestProbeMissingFile(t *testing.T) {
	if _, err := newTestExtractor().Probe("/does/not/exist.mp3"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestIsAudioFile(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		path string
		want bool
	}{
		{"a.mp3", true},
		{"b.FLAC", true},
		{"c.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := e.IsAudioFile(tt.path); got != tt.want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestContentTypes(t *testing.T) {
	if got := ContentType("x.MP3"); got != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %s", got)
	}
	if got := ContentType("x.jpg"); got != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", got)
	}
	if got := SniffImageType([]byte{0x89, 'P', 'N', 'G'}); got != "image/png" {
		t.Errorf("Expected image/png, got %s", got)
	}
	if got := imageExt("", "image/jpeg"); got != ".jpg" {
		t.Errorf("Expected .jpg, got %s", got)
	}
}
