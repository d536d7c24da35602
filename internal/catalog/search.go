package catalog

import (
	"cmp"
	"slices"
	"strings"

	"echovia/pkg/models"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// DefaultThreshold is the minimum similarity for a fuzzy hit
const DefaultThreshold = 0.75

type scored struct {
	track models.Track
	score float64
}

// Search ranks tracks against query by title and artist. Substring matches
// rank above fuzzy ones; ties keep catalog order.
func Search(tracks []models.Track, query string, threshold float64) []models.Track {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.Track{}
	}

	jw := metrics.NewJaroWinkler()
	jw.CaseSensitive = false

	hits := make([]scored, 0, len(tracks))
	for _, t := range tracks {
		if s := score(jw, query, t); s >= threshold {
			hits = append(hits, scored{track: t, score: s})
		}
	}

	slices.SortStableFunc(hits, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	out := make([]models.Track, len(hits))
	for i, h := range hits {
		out[i] = h.track
	}
	return out
}

func score(jw *metrics.JaroWinkler, query string, t models.Track) float64 {
	title := strings.ToLower(t.Title)
	artist := strings.ToLower(t.Artist)

	if strings.Contains(title, query) || strings.Contains(artist, query) {
		return 1 + float64(len(query))/float64(max(len(title), len(query)))
	}

	best := 0.0
	for _, candidate := range []string{title, artist, artist + " " + title} {
		if candidate == "" {
			continue
		}
		best = max(best, strutil.Similarity(query, candidate, jw))
	}
	return best
}
