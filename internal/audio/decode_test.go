package audio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDecoderFor(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		url         string
		wantErr     bool
	}{
		{"mpeg content type", "audio/mpeg", "/media/x", false},
		{"flac extension", "", "http://host/media/x.flac?sig=1", false},
		{"wav extension", "application/octet-stream", "/media/x.WAV", false},
		{"no extension defaults to mp3", "", "/media/abc", false},
		{"unknown extension", "", "/media/x.ogg", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := decoderFor(tt.contentType, tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil || dec == nil {
				t.Errorf("Expected a decoder, got %v", err)
			}
		})
	}
}

func TestGain(t *testing.T) {
	tests := []struct {
		percent    int
		wantVolume float64
		wantSilent bool
	}{
		{100, 0, false},
		{150, 0, false},
		{50, -1, false},
		{25, -2, false},
		{0, -10, true},
		{-5, -10, true},
	}
	for _, tt := range tests {
		v, silent := gain(tt.percent)
		if v != tt.wantVolume || silent != tt.wantSilent {
			t.Errorf("gain(%d) = %v, %v; want %v, %v", tt.percent, v, silent, tt.wantVolume, tt.wantSilent)
		}
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("frames"))
	}))
	defer srv.Close()

	data, ct, err := fetch(context.Background(), srv.Client(), srv.URL+"/song.mp3")
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if string(data) != "frames" || ct != "audio/mpeg" {
		t.Errorf("Unexpected fetch result %q %q", data, ct)
	}

	if _, _, err := fetch(context.Background(), srv.Client(), srv.URL+"/missing.mp3"); err == nil {
		t.Error("Expected error for 404")
	}

	local := filepath.Join(t.TempDir(), "local.mp3")
	if err := os.WriteFile(local, []byte("disk"), 0644); err != nil {
		t.Fatal(err)
	}
	data, _, err = fetch(context.Background(), nil, local)
	if err != nil || string(data) != "disk" {
		t.Errorf("Expected local file contents, got %q %v", data, err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, err := decode([]byte("not audio"), "audio/wav", "/x.wav"); err == nil {
		t.Error("Expected garbage wav data to fail decoding")
	}
}
