package cache

import (
	"context"
	"testing"
	"time"

	"echovia/pkg/models"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("prefix:b", 2)
	c.Set("prefix:c", 3)

	if v, ok := c.Get("a"); !ok || v.(int) != 1 {
		t.Errorf("Expected a=1, got %v %v", v, ok)
	}

	c.DeletePrefix("prefix:")
	if c.Size() != 1 {
		t.Errorf("Expected 1 item after DeletePrefix, got %d", c.Size())
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("Expected expired entry to miss")
	}
	if c.Size() != 1 {
		t.Error("Expected expired entry to stay until eviction")
	}
	c.Evict()
	if c.Size() != 0 {
		t.Errorf("Expected empty cache after eviction, got %d", c.Size())
	}
}

func TestMemoryCacheRunStops(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Run to return after cancel")
	}
}

func TestCatalogCache(t *testing.T) {
	cc := NewCatalogCache(time.Minute)
	songs := []models.Track{{ID: "1", Title: "One", Genre: "Hindi"}}

	cc.SetAllSongs(songs)
	cc.SetGenre("Hindi", songs)
	cc.SetAlbumTracks("al1", songs)
	cc.SetAllAlbums([]models.Album{{ID: "al1"}})

	if got, ok := cc.AllSongs(); !ok || len(got) != 1 {
		t.Fatalf("Expected cached songs, got %v %v", got, ok)
	}

	t.Run("InvalidateAlbums keeps songs", func(t *testing.T) {
		cc.InvalidateAlbums()
		if _, ok := cc.AllAlbums(); ok {
			t.Error("Expected albums to be invalidated")
		}
		if _, ok := cc.AlbumTracks("al1"); ok {
			t.Error("Expected album tracks to be invalidated")
		}
		if _, ok := cc.Genre("Hindi"); !ok {
			t.Error("Expected genre listing to survive")
		}
	})

	t.Run("InvalidateSongs", func(t *testing.T) {
		cc.InvalidateSongs()
		if _, ok := cc.AllSongs(); ok {
			t.Error("Expected songs to be invalidated")
		}
		if _, ok := cc.Genre("Hindi"); ok {
			t.Error("Expected genre listing to be invalidated")
		}
	})

	t.Run("nil cache", func(t *testing.T) {
		var nilCache *CatalogCache
		nilCache.SetAllSongs(songs)
		if _, ok := nilCache.AllSongs(); ok {
			t.Error("Expected nil cache to miss")
		}
		nilCache.InvalidateSongs()
	})
}
