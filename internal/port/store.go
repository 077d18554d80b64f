package port

import (
	"context"

	"github.com/moltocasto/podcast-qa/internal/domain"
)

// EmbeddingSink persists one embedding record. Records are never deduplicated.
type EmbeddingSink interface {
	StoreEmbedding(ctx context.Context, rec *domain.EmbeddingRecord) error
}

// EmbeddingStore is the full embedding persistence and search port.
type EmbeddingStore interface {
	EmbeddingSink

	// DeleteEpisodeEmbeddings removes every record for the episode and returns how many were removed.
	DeleteEpisodeEmbeddings(ctx context.Context, podcastID, episodeID int64) (int64, error)

	// ReplaceEpisodeEmbeddings atomically deletes the episode's records and stores
	// records in their place, filling in their ids. It returns how many were
	// removed. On failure the previous records are left untouched.
	ReplaceEpisodeEmbeddings(ctx context.Context, podcastID, episodeID int64, records []domain.EmbeddingRecord) (int64, error)

	// ListEpisodeEmbeddings returns the stored chunks of an episode without vectors, in insertion order.
	ListEpisodeEmbeddings(ctx context.Context, podcastID, episodeID int64) ([]domain.EmbeddingRecord, error)

	// SearchSimilar returns the nearest chunks to query. episodeID 0 searches the whole podcast.
	SearchSimilar(ctx context.Context, podcastID, episodeID int64, query []float32, limit int) ([]domain.SimilarChunk, error)
}

// EpisodeRepository reads and updates podcasts and episodes.
type EpisodeRepository interface {
	ListPodcasts(ctx context.Context) ([]domain.Podcast, error)
	GetPodcast(ctx context.Context, podcastID int64) (*domain.Podcast, error)
	ListTranscribedEpisodes(ctx context.Context, podcastID int64, limit int) ([]domain.Episode, error)
	GetEpisode(ctx context.Context, podcastID, episodeID int64) (*domain.Episode, error)
	InsertEpisodes(ctx context.Context, podcastID int64, episodes []domain.Episode) (int, error)
	SaveTranscript(ctx context.Context, podcastID, episodeID int64, raw []byte, text string) error
	SaveQuestions(ctx context.Context, podcastID, episodeID int64, questions []string) error
}

// WorkQueue schedules embedding runs across episodes.
type WorkQueue interface {
	Enqueue(ctx context.Context, job EmbedJob) error
	// Dequeue blocks until a job is available or ctx is done. An entry that
	// cannot be decoded is removed from the queue and reported as ErrBadJob.
	Dequeue(ctx context.Context) (*EmbedJob, error)
}

// EmbedJob identifies one episode to run through the embedding pipeline.
type EmbedJob struct {
	PodcastID       int64 `json:"podcast_id"`
	EpisodeID       int64 `json:"episode_id"`
	ReplaceExisting bool  `json:"replace_existing,omitempty"`
}
