// Package feed reads podcast episodes from RSS feeds.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/moltocasto/podcast-qa/internal/domain"
)

// RSSParser implements port.FeedParser with gofeed and its iTunes extension.
type RSSParser struct {
	parser *gofeed.Parser
}

// NewRSSParser creates a feed parser.
func NewRSSParser() *RSSParser {
	return &RSSParser{parser: gofeed.NewParser()}
}

// Parse reads a feed from an http(s) URL or a local file path.
func (p *RSSParser) Parse(ctx context.Context, source string) ([]domain.Episode, error) {
	var (
		feed *gofeed.Feed
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		feed, err = p.parser.ParseURLWithContext(source, ctx)
	} else {
		var f *os.File
		f, err = os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open feed: %w", err)
		}
		defer f.Close()
		feed, err = p.parser.Parse(f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	episodes := make([]domain.Episode, 0, len(feed.Items))
	for _, item := range feed.Items {
		e, ok := toEpisode(item)
		if !ok {
			slog.Warn("skipping feed item without episode number", "title", item.Title)
			continue
		}
		episodes = append(episodes, e)
	}
	return episodes, nil
}

func toEpisode(item *gofeed.Item) (domain.Episode, bool) {
	if item.ITunesExt == nil {
		return domain.Episode{}, false
	}
	number, err := strconv.ParseInt(strings.TrimSpace(item.ITunesExt.Episode), 10, 64)
	if err != nil || number <= 0 {
		return domain.Episode{}, false
	}

	e := domain.Episode{
		EpisodeID: number,
		Title:     firstNonEmpty(item.ITunesExt.Title, item.Title),
		Summary:   firstNonEmpty(item.ITunesExt.Summary, item.Description),
		Duration:  item.ITunesExt.Duration,
	}
	if item.PublishedParsed != nil {
		e.Published = *item.PublishedParsed
	}

	var authors []string
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	e.Authors = firstNonEmpty(strings.Join(authors, ", "), item.ITunesExt.Author)

	for _, enc := range item.Enclosures {
		if enc != nil && (enc.Type == "" || strings.HasPrefix(enc.Type, "audio/")) {
			e.URL = enc.URL
			break
		}
	}
	return e, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
