// Package matching - textual similarity
package matching

import (
	"strings"

	"github.com/agext/levenshtein"
)

// normalize strips the variance that shows up in hand-entered system
// identifiers: case, surrounding space, and separator characters.
func normalize(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	id = strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '.':
			return -1
		}
		return r
	}, id)
	return id
}

// similarity returns a normalized Levenshtein similarity in [0, 1]
// between two system identifiers.
func similarity(a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return levenshtein.Similarity(na, nb, levenshtein.NewParams())
}
