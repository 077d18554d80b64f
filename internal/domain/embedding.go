package domain

import "time"

// EmbeddingRecord associates a transcript chunk with its vector in simple_embeddings.
type EmbeddingRecord struct {
	ID        int64         `json:"id"         db:"id"`
	PodcastID int64         `json:"podcast_id" db:"podcastid"`
	EpisodeID int64         `json:"episode_id" db:"episodeid"`
	Timecode  time.Duration `json:"timecode"   db:"timecode"`
	Chunk     string        `json:"chunk"      db:"chunk"`
	Embedding []float32     `json:"-"          db:"embedding"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// SimilarChunk is returned by semantic search, joined with its episode title.
type SimilarChunk struct {
	EmbeddingRecord
	Title    string  `json:"title"`
	Distance float64 `json:"distance"`
}
