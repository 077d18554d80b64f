package port

import (
	"context"

	"github.com/moltocasto/podcast-qa/internal/domain"
)

// FeedParser reads an RSS/Atom feed from a URL or local file and returns its episodes.
type FeedParser interface {
	Parse(ctx context.Context, source string) ([]domain.Episode, error)
}
