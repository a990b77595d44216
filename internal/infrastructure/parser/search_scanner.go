package parser

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

	"Bluebird/internal/domain"
	"Bluebird/internal/scanner"
)

// DefaultPermalinkBase is the host permalinks are rewritten onto when none is configured.
const DefaultPermalinkBase = "https://twitter.com"

const userAgent = "Bluebird/1.0"

var dateLayouts = []string{
	"Jan 2, 2006 · 3:04 PM MST",
	"2 Jan 2006 · 15:04 MST",
}

// SearchScanner walks the HTML search timeline of a Nitter-compatible front-end,
// following the "load more" cursor one page at a time.
type SearchScanner struct {
	client        *http.Client
	baseURL       string
	permalinkBase string
	logger        *slog.Logger
}

var _ scanner.Scanner = (*SearchScanner)(nil)

// NewSearchScanner wires an HTTP client; permalinkBase defaults to twitter.com.
func NewSearchScanner(client *http.Client, baseURL, permalinkBase string, log *slog.Logger) *SearchScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if permalinkBase == "" {
		permalinkBase = DefaultPermalinkBase
	}
	return &SearchScanner{
		client:        client,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		permalinkBase: strings.TrimSuffix(permalinkBase, "/"),
		logger:        log,
	}
}

// Name identifies the strategy inside the registry.
func (s *SearchScanner) Name() string {
	return "html"
}

// Scan lazily yields posts page by page until the consumer stops,
// a page has no timeline items at all, or no cursor is left. Pages whose
// items all fail to parse are skipped, not treated as the end.
func (s *SearchScanner) Scan(ctx context.Context, query domain.SearchQuery) iter.Seq2[domain.Post, error] {
	return func(yield func(domain.Post, error) bool) {
		pageURL, err := buildSearchURL(s.baseURL+"/search", query.Text)
		if err != nil {
			yield(domain.Post{}, err)
			return
		}

		visited := map[string]struct{}{}
		for page := 1; pageURL != ""; page++ {
			if _, seen := visited[pageURL]; seen {
				return
			}
			visited[pageURL] = struct{}{}

			doc, err := s.fetchDocument(ctx, pageURL)
			if err != nil {
				yield(domain.Post{}, fmt.Errorf("page %d: %w", page, err))
				return
			}

			posts, items, next := s.extractPosts(doc)
			s.debug("search page parsed", "page", page, "items", items, "posts", len(posts), "has_next", next != "")

			for _, post := range posts {
				if !yield(post, nil) {
					return
				}
			}

			if items == 0 || next == "" {
				return
			}

			pageURL, err = resolveCursor(pageURL, next)
			if err != nil {
				yield(domain.Post{}, err)
				return
			}
		}
	}
}

func (s *SearchScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// extractPosts returns the parsed posts, the raw timeline item count and the next cursor.
func (s *SearchScanner) extractPosts(doc *goquery.Document) ([]domain.Post, int, string) {
	var posts []domain.Post

	items := doc.Find(".timeline-item")
	items.Each(func(_ int, item *goquery.Selection) {
		post, err := parseEntry(item, s.permalinkBase)
		if err != nil {
			s.debug("skip timeline item", "error", err)
			return
		}
		posts = append(posts, post)
	})

	var next string
	doc.Find(".show-more a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && strings.Contains(href, "cursor=") {
			next = href
		}
	})

	return posts, items.Length(), next
}

func parseEntry(item *goquery.Selection, permalinkBase string) (domain.Post, error) {
	href, ok := item.Find("a.tweet-link").First().Attr("href")
	if !ok {
		return domain.Post{}, fmt.Errorf("timeline item without status link")
	}

	user, id, err := SplitStatusPath(href)
	if err != nil {
		return domain.Post{}, err
	}

	author := strings.TrimSpace(item.Find(".tweet-header a.username").First().Text())
	author = strings.TrimPrefix(author, "@")
	if author == "" {
		author = user
	}

	dateTitle := strings.TrimSpace(item.Find(".tweet-date a").First().AttrOr("title", ""))
	timestamp, err := parseDate(dateTitle)
	if err != nil {
		return domain.Post{}, fmt.Errorf("status %s: %w", id, err)
	}

	return domain.Post{
		ID:        id,
		Timestamp: timestamp,
		Author:    author,
		URL:       Permalink(permalinkBase, user, id),
		Content:   strings.TrimSpace(item.Find(".tweet-content").First().Text()),
	}, nil
}

// SplitStatusPath extracts user and status id from links like /jack/status/20#m.
func SplitStatusPath(link string) (string, string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", "", fmt.Errorf("invalid status link %s: %w", link, err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[1] != "status" || parts[0] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("not a status link: %s", link)
	}
	return parts[0], parts[2], nil
}

// Permalink rebuilds the canonical status URL on permalinkBase.
func Permalink(permalinkBase, user, id string) string {
	if permalinkBase == "" {
		permalinkBase = DefaultPermalinkBase
	}
	return fmt.Sprintf("%s/%s/status/%s", strings.TrimSuffix(permalinkBase, "/"), user, id)
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func buildSearchURL(base, text string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid search url %s: %w", base, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid search url %s: scheme and host required", base)
	}

	query := parsed.Query()
	query.Set("f", "tweets")
	query.Set("q", text)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func resolveCursor(current, href string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("invalid page url %s: %w", current, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid cursor link %s: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (s *SearchScanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
