package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
)

// VectorStore handles pgvector-specific operations for transcript chunk embeddings.
type VectorStore struct {
	store     *PostgresStore
	dimension int
}

// NewVectorStore creates a vector store backed by the given Postgres store.
// A positive dimension rejects vectors of any other length.
func NewVectorStore(store *PostgresStore, dimension int) *VectorStore {
	return &VectorStore{store: store, dimension: dimension}
}

const insertEmbeddingQuery = `INSERT INTO simple_embeddings (podcastid, episodeid, timecode, chunk, embedding)
	          VALUES ($1, $2, $3, $4, $5::vector)
	          RETURNING id, created_at`

func (v *VectorStore) checkDimension(e *domain.EmbeddingRecord) error {
	if v.dimension > 0 && len(e.Embedding) != v.dimension {
		return fmt.Errorf("store embedding: vector has %d dimensions, want %d", len(e.Embedding), v.dimension)
	}
	return nil
}

// StoreEmbedding persists a single embedding record with its vector.
func (v *VectorStore) StoreEmbedding(ctx context.Context, e *domain.EmbeddingRecord) error {
	if err := v.checkDimension(e); err != nil {
		return err
	}

	err := v.store.db.QueryRowContext(ctx, insertEmbeddingQuery,
		e.PodcastID, e.EpisodeID, domain.FormatTimecode(e.Timecode), e.Chunk, vectorToString(e.Embedding),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

// ReplaceEpisodeEmbeddings swaps the episode's records for records in one
// transaction. On any failure the transaction is rolled back and the previous
// records stay in place. The error is a *port.StorageError.
func (v *VectorStore) ReplaceEpisodeEmbeddings(ctx context.Context, podcastID, episodeID int64, records []domain.EmbeddingRecord) (int64, error) {
	for i := range records {
		if err := v.checkDimension(&records[i]); err != nil {
			return 0, &port.StorageError{Index: i, EpisodeID: episodeID, Err: err}
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &port.StorageError{Index: -1, EpisodeID: episodeID, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM simple_embeddings WHERE podcastid = $1 AND episodeid = $2`, podcastID, episodeID)
	if err != nil {
		return 0, &port.StorageError{Index: -1, EpisodeID: episodeID, Err: fmt.Errorf("delete embeddings: %w", err)}
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, &port.StorageError{Index: -1, EpisodeID: episodeID, Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, insertEmbeddingQuery)
	if err != nil {
		return 0, &port.StorageError{Index: -1, EpisodeID: episodeID, Err: fmt.Errorf("prepare: %w", err)}
	}
	defer stmt.Close()

	for i := range records {
		e := &records[i]
		err := stmt.QueryRowContext(ctx,
			e.PodcastID, e.EpisodeID, domain.FormatTimecode(e.Timecode), e.Chunk, vectorToString(e.Embedding),
		).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return 0, &port.StorageError{Index: i, EpisodeID: episodeID, Err: fmt.Errorf("insert embedding: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &port.StorageError{Index: -1, EpisodeID: episodeID, Err: fmt.Errorf("commit: %w", err)}
	}
	return deleted, nil
}

// ListEpisodeEmbeddings returns the stored chunks of an episode in insertion order, without vectors.
func (v *VectorStore) ListEpisodeEmbeddings(ctx context.Context, podcastID, episodeID int64) ([]domain.EmbeddingRecord, error) {
	query := `SELECT id, podcastid, episodeid, timecode, chunk, created_at
	          FROM simple_embeddings
	          WHERE podcastid = $1 AND episodeid = $2
	          ORDER BY id`

	rows, err := v.store.db.QueryContext(ctx, query, podcastID, episodeID)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var records []domain.EmbeddingRecord
	for rows.Next() {
		var (
			r        domain.EmbeddingRecord
			timecode string
		)
		if err := rows.Scan(&r.ID, &r.PodcastID, &r.EpisodeID, &timecode, &r.Chunk, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if r.Timecode, err = parseStoredTimecode(timecode); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SearchSimilar returns the chunks closest to queryVector by L2 distance, joined with
// their episode titles. episodeID 0 searches every episode of the podcast.
func (v *VectorStore) SearchSimilar(ctx context.Context, podcastID, episodeID int64, queryVector []float32, limit int) ([]domain.SimilarChunk, error) {
	query := `SELECT s.id, s.podcastid, s.episodeid, s.timecode, s.chunk, s.created_at, e.title,
	                 s.embedding <-> $1::vector AS distance
	          FROM simple_embeddings s
	          JOIN episodes e ON e.podcastid = s.podcastid AND e.episodeid = s.episodeid
	          WHERE s.podcastid = $2 AND ($3::bigint = 0 OR s.episodeid = $3)
	          ORDER BY distance
	          LIMIT $4`

	rows, err := v.store.db.QueryContext(ctx, query, vectorToString(queryVector), podcastID, episodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var results []domain.SimilarChunk
	for rows.Next() {
		var (
			sc       domain.SimilarChunk
			timecode string
		)
		if err := rows.Scan(
			&sc.ID, &sc.PodcastID, &sc.EpisodeID, &timecode, &sc.Chunk,
			&sc.CreatedAt, &sc.Title, &sc.Distance,
		); err != nil {
			return nil, fmt.Errorf("scan similar: %w", err)
		}
		if sc.Timecode, err = parseStoredTimecode(timecode); err != nil {
			return nil, err
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// DeleteEpisodeEmbeddings deletes all embeddings for an episode.
func (v *VectorStore) DeleteEpisodeEmbeddings(ctx context.Context, podcastID, episodeID int64) (int64, error) {
	res, err := v.store.db.ExecContext(ctx,
		`DELETE FROM simple_embeddings WHERE podcastid = $1 AND episodeid = $2`, podcastID, episodeID)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	return res.RowsAffected()
}

func parseStoredTimecode(s string) (time.Duration, error) {
	d, err := domain.ParseTimecode(s)
	if err != nil {
		return 0, fmt.Errorf("stored timecode %q: %w", s, err)
	}
	return d, nil
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
