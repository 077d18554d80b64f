package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/moltocasto/podcast-qa/internal/port"
)

// FeedService imports episodes from a podcast's RSS feed.
type FeedService struct {
	episodes port.EpisodeRepository
	parser   port.FeedParser
}

// NewFeedService creates a new feed service.
func NewFeedService(episodes port.EpisodeRepository, parser port.FeedParser) *FeedService {
	return &FeedService{episodes: episodes, parser: parser}
}

// Ingest parses the feed at source, or the podcast's stored feed URL when source
// is empty, and inserts the episodes not stored yet. It returns the number inserted.
func (s *FeedService) Ingest(ctx context.Context, podcastID int64, source string) (int, error) {
	if strings.TrimSpace(source) == "" {
		podcast, err := s.episodes.GetPodcast(ctx, podcastID)
		if err != nil {
			return 0, fmt.Errorf("get podcast: %w", err)
		}
		source = podcast.FeedURL
	}
	if strings.TrimSpace(source) == "" {
		return 0, port.NewInputError("no feed source for podcast %d", podcastID)
	}

	episodes, err := s.parser.Parse(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("parse feed: %w", err)
	}

	inserted, err := s.episodes.InsertEpisodes(ctx, podcastID, episodes)
	if err != nil {
		return 0, fmt.Errorf("insert episodes: %w", err)
	}

	slog.Info("feed ingested", "podcast_id", podcastID, "items", len(episodes), "inserted", inserted)
	return inserted, nil
}
