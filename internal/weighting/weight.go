// Package weighting scores how strongly a text matches a prioritised term list.
package weighting

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"Bluebird/internal/domain"
)

// Weight counts whole-token, case-insensitive matches of each distinct term in content.
// Every match of the term ranked r (0-based, first occurrence order) adds 1/(r+1),
// and the total is divided by the number of distinct terms.
func Weight(content string, terms []string) (float64, error) {
	folder := cases.Fold()

	rank := make(map[string]int, len(terms))
	for _, term := range terms {
		key := folder.String(strings.TrimSpace(term))
		if key == "" {
			continue
		}
		if _, ok := rank[key]; !ok {
			rank[key] = len(rank)
		}
	}
	if len(rank) == 0 {
		return 0, fmt.Errorf("%w: no terms to weight against", domain.ErrInvalidInput)
	}

	var total float64
	for _, token := range strings.Fields(content) {
		if r, ok := rank[folder.String(token)]; ok {
			total += 1 / float64(r+1)
		}
	}

	return total / float64(len(rank)), nil
}
