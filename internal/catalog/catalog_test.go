package catalog

import (
	"testing"

	"echovia/pkg/models"
)

func TestNormalizeGenre(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hindi", "Hindi"},
		{"  punjabi ", "Punjabi"},
		{"Hip-Hop(Rap)", "Hip-Hop(Rap)"},
		{"hip-hop/rap", "Hip-Hop(Rap)"},
		{"Party/Dance", "Party(Dance)"},
		{"Classical (Devotional)", "Classical(Devotional)"},
		{"Jazz", "Other"},
		{"", "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeGenre(tt.input); got != tt.want {
				t.Errorf("NormalizeGenre(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	for _, g := range AllowedGenres {
		if !IsAllowedGenre(g) || NormalizeGenre(g) != g {
			t.Errorf("Expected %q to be canonical", g)
		}
	}
	if IsAllowedGenre("hindi") {
		t.Error("Expected lowercase spelling not to be canonical")
	}
}

func TestSearch(t *testing.T) {
	tracks := []models.Track{
		{ID: "1", Title: "Tum Hi Ho", Artist: "Arijit Singh"},
		{ID: "2", Title: "Kesariya", Artist: "Arijit Singh"},
		{ID: "3", Title: "Blinding Lights", Artist: "The Weeknd"},
		{ID: "4", Title: "Starboy", Artist: "The Weeknd"},
	}

	t.Run("substring on title", func(t *testing.T) {
		got := Search(tracks, "blinding", DefaultThreshold)
		if len(got) == 0 || got[0].ID != "3" {
			t.Errorf("Expected Blinding Lights first, got %+v", got)
		}
	})

	t.Run("artist matches keep order", func(t *testing.T) {
		got := Search(tracks, "arijit singh", DefaultThreshold)
		if len(got) < 2 || got[0].ID != "1" || got[1].ID != "2" {
			t.Errorf("Expected both Arijit tracks in catalog order, got %+v", got)
		}
	})

	t.Run("typo", func(t *testing.T) {
		got := Search(tracks, "kesarya", DefaultThreshold)
		if len(got) == 0 || got[0].ID != "2" {
			t.Errorf("Expected fuzzy hit on Kesariya, got %+v", got)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if got := Search(tracks, "   ", DefaultThreshold); len(got) != 0 {
			t.Errorf("Expected no results, got %+v", got)
		}
	})
}
