package catalog

import (
	"strings"

	"github.com/samber/lo"
)

// GenreOther is what every unrecognized genre becomes
const GenreOther = "Other"

// AllowedGenres lists the catalog genres in display order
var AllowedGenres = []string{
	"Hindi",
	"Punjabi",
	"English",
	"Tamil",
	"Telugu",
	"Bhojpuri",
	"Instrumental",
	"Hip-Hop(Rap)",
	"Romantic",
	"Party(Dance)",
	"Classical(Devotional)",
	GenreOther,
}

// genreKey folds case, spacing and the slash spelling ("Hip-Hop/Rap") onto
// one key.
func genreKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("/", "(", " ", "").Replace(s)
	return strings.TrimSuffix(s, ")")
}

var genreIndex = lo.SliceToMap(AllowedGenres, func(g string) (string, string) {
	return genreKey(g), g
})

// NormalizeGenre maps a genre to its canonical spelling, or Other
func NormalizeGenre(genre string) string {
	if g, ok := genreIndex[genreKey(genre)]; ok {
		return g
	}
	return GenreOther
}

// IsAllowedGenre reports whether genre is already a canonical genre
func IsAllowedGenre(genre string) bool {
	return lo.Contains(AllowedGenres, genre)
}
