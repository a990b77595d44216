package lexicon

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"Bluebird/internal/domain"
	"Bluebird/internal/ports"
)

//go:embed default.yaml
var defaultLexicon []byte

// WordLists is the on-disk YAML shape of a lexicon.
type WordLists struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// Analyzer scores text by the share of positive and negative words it contains.
type Analyzer struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

var _ ports.SentimentAnalyzer = (*Analyzer)(nil)

// New builds an analyzer from word lists. A word present in both lists is an error.
func New(lists WordLists) (*Analyzer, error) {
	folder := cases.Fold()
	a := &Analyzer{
		positive: make(map[string]struct{}, len(lists.Positive)),
		negative: make(map[string]struct{}, len(lists.Negative)),
	}
	for _, w := range lists.Positive {
		if w = folder.String(strings.TrimSpace(w)); w != "" {
			a.positive[w] = struct{}{}
		}
	}
	for _, w := range lists.Negative {
		w = folder.String(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := a.positive[w]; dup {
			return nil, fmt.Errorf("word %q is both positive and negative", w)
		}
		a.negative[w] = struct{}{}
	}
	return a, nil
}

// Default returns the analyzer backed by the built-in word lists.
func Default() (*Analyzer, error) {
	return parse(defaultLexicon)
}

// Load reads word lists from a YAML file.
func Load(path string) (*Analyzer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	a, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return a, nil
}

func parse(raw []byte) (*Analyzer, error) {
	var lists WordLists
	if err := yaml.Unmarshal(raw, &lists); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	return New(lists)
}

// Analyze never fails; text without words is fully neutral.
func (a *Analyzer) Analyze(_ context.Context, text string) (domain.Sentiment, error) {
	folder := cases.Fold()

	var total, pos, neg int
	for _, field := range strings.Fields(text) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if word == "" {
			continue
		}
		total++
		word = folder.String(word)
		if _, ok := a.positive[word]; ok {
			pos++
		} else if _, ok := a.negative[word]; ok {
			neg++
		}
	}

	if total == 0 {
		return domain.Sentiment{Neutral: 1}, nil
	}

	positive := float64(pos) / float64(total)
	negative := float64(neg) / float64(total)
	return domain.Sentiment{
		Positive: positive,
		Neutral:  float64(total-pos-neg) / float64(total),
		Negative: negative,
	}, nil
}
