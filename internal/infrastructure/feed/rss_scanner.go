// Package feed reads search results from RSS endpoints of Nitter-compatible front-ends.
package feed

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"Bluebird/internal/domain"
	"Bluebird/internal/infrastructure/parser"
	"Bluebird/internal/scanner"
)

// Scanner fetches one search feed and yields its items in feed order.
type Scanner struct {
	client        *http.Client
	baseURL       string
	permalinkBase string
	logger        *slog.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// NewScanner wires an HTTP client used by the feed parser; permalinkBase defaults to twitter.com.
func NewScanner(client *http.Client, baseURL, permalinkBase string, log *slog.Logger) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if permalinkBase == "" {
		permalinkBase = parser.DefaultPermalinkBase
	}
	return &Scanner{
		client:        client,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		permalinkBase: strings.TrimSuffix(permalinkBase, "/"),
		logger:        log,
	}
}

// Name identifies the strategy inside the registry.
func (s *Scanner) Name() string {
	return "rss"
}

// Scan parses the feed and yields posts until the consumer stops.
func (s *Scanner) Scan(ctx context.Context, query domain.SearchQuery) iter.Seq2[domain.Post, error] {
	return func(yield func(domain.Post, error) bool) {
		feedURL, err := s.feedURL(query.Text)
		if err != nil {
			yield(domain.Post{}, err)
			return
		}

		fp := gofeed.NewParser()
		fp.Client = s.client
		fp.UserAgent = "Bluebird/1.0"

		f, err := fp.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			yield(domain.Post{}, fmt.Errorf("fetch feed: %w", err))
			return
		}

		if s.logger != nil {
			s.logger.Debug("feed parsed", "items", len(f.Items))
		}

		for _, item := range f.Items {
			post, err := s.toPost(item)
			if err != nil {
				if s.logger != nil {
					s.logger.Debug("skip feed item", "error", err)
				}
				continue
			}
			if !yield(post, nil) {
				return
			}
		}
	}
}

func (s *Scanner) feedURL(text string) (string, error) {
	parsed, err := url.Parse(s.baseURL + "/search/rss")
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid feed base url %q", s.baseURL)
	}
	q := parsed.Query()
	q.Set("f", "tweets")
	q.Set("q", text)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func (s *Scanner) toPost(item *gofeed.Item) (domain.Post, error) {
	user, id, err := parser.SplitStatusPath(item.Link)
	if err != nil {
		return domain.Post{}, err
	}

	var published time.Time
	switch {
	case item.PublishedParsed != nil:
		published = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		published = item.UpdatedParsed.UTC()
	default:
		return domain.Post{}, fmt.Errorf("status %s has no date", id)
	}

	author := user
	if item.Author != nil && item.Author.Name != "" {
		author = strings.TrimPrefix(item.Author.Name, "@")
	} else if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		author = strings.TrimPrefix(item.Authors[0].Name, "@")
	}

	content := strings.TrimSpace(item.Title)
	if content == "" {
		content = plainText(item.Description)
	}

	return domain.Post{
		ID:        id,
		Timestamp: published,
		Author:    author,
		URL:       parser.Permalink(s.permalinkBase, user, id),
		Content:   content,
	}, nil
}

func plainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(doc.Text())
}
