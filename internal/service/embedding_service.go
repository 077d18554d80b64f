package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/moltocasto/podcast-qa/internal/chunker"
	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
)

// EmbeddingOptions configures the chunk-and-embed pipeline.
type EmbeddingOptions struct {
	Chunk chunker.Options

	// BestEffort keeps storing records after a failure and reports every
	// failure at the end. By default the run stops at the first failure.
	BestEffort bool

	// Dimension is the expected vector length. 0 disables the check.
	Dimension int
}

// RunResult summarizes one pipeline run for an episode.
type RunResult struct {
	PodcastID int64                    `json:"podcast_id"`
	EpisodeID int64                    `json:"episode_id"`
	Chunks    int                      `json:"chunks"`
	Stored    int                      `json:"stored"`
	Failed    int                      `json:"failed"`
	Replaced  int64                    `json:"replaced"`
	Duration  time.Duration            `json:"duration"`
	Records   []domain.EmbeddingRecord `json:"-"`
}

// EmbeddingService turns an episode transcript into persisted embedding records.
// Each run is independent; runs for different episodes may execute concurrently.
type EmbeddingService struct {
	episodes port.EpisodeRepository
	embedder port.Embedder
	store    port.EmbeddingStore
	tok      chunker.Tokenizer
	opts     EmbeddingOptions
}

// NewEmbeddingService creates the pipeline service.
func NewEmbeddingService(episodes port.EpisodeRepository, embedder port.Embedder, store port.EmbeddingStore, tok chunker.Tokenizer, opts EmbeddingOptions) *EmbeddingService {
	return &EmbeddingService{
		episodes: episodes,
		embedder: embedder,
		store:    store,
		tok:      tok,
		opts:     opts,
	}
}

// Run loads the stored transcript of an episode and processes it.
// With replace set, the episode's existing records are swapped for the new
// ones in a single transaction; otherwise a rerun adds duplicate records.
func (s *EmbeddingService) Run(ctx context.Context, podcastID, episodeID int64, replace bool) (*RunResult, error) {
	episode, err := s.episodes.GetEpisode(ctx, podcastID, episodeID)
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	if !episode.HasTranscript() {
		return nil, port.ErrTranscriptMissing
	}

	transcript, err := domain.ParseTranscript(episode.Transcript)
	if err != nil {
		return nil, &port.InputError{Reason: "parse transcript", Err: err}
	}

	return s.Process(ctx, podcastID, episodeID, transcript.Phrases, replace)
}

// Process chunks the phrases, embeds every chunk in one batch and stores the
// records in chunk order. Nothing is written unless the embedding call succeeds.
func (s *EmbeddingService) Process(ctx context.Context, podcastID, episodeID int64, phrases []domain.TranscriptPhrase, replace bool) (*RunResult, error) {
	start := time.Now()
	log := slog.With("podcast_id", podcastID, "episode_id", episodeID)
	log.Info("embedding pipeline started", "phrases", len(phrases))

	chunks, err := chunker.Chunk(phrases, s.tok, s.opts.Chunk)
	if err != nil {
		log.Error("embedding pipeline aborted", "stage", "chunk", "error", err)
		return nil, fmt.Errorf("chunk transcript: %w", err)
	}

	result := &RunResult{PodcastID: podcastID, EpisodeID: episodeID, Chunks: len(chunks)}
	if len(chunks) == 0 {
		result.Duration = time.Since(start)
		log.Info("embedding pipeline complete", "chunks", 0)
		return result, nil
	}

	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		log.Error("embedding pipeline aborted", "stage", "embed", "chunks", len(chunks), "error", err)
		return nil, err
	}

	records := make([]domain.EmbeddingRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.EmbeddingRecord{
			PodcastID: podcastID,
			EpisodeID: episodeID,
			Timecode:  c.Timecode,
			Chunk:     c.Text,
			Embedding: vectors[i],
		}
	}

	if replace {
		return s.replace(ctx, log, start, result, records)
	}

	var errs []error
	for i := range records {
		rec := records[i]
		if err := s.store.StoreEmbedding(ctx, &rec); err != nil {
			serr := &port.StorageError{Index: i, EpisodeID: episodeID, Err: err}
			result.Failed++
			if !s.opts.BestEffort {
				result.Duration = time.Since(start)
				log.Error("embedding pipeline aborted", "stage", "store", "stored", result.Stored, "error", serr)
				return result, serr
			}
			errs = append(errs, serr)
			continue
		}
		result.Stored++
		result.Records = append(result.Records, rec)
	}

	result.Duration = time.Since(start)
	if len(errs) > 0 {
		log.Warn("embedding pipeline finished with storage errors", "stored", result.Stored, "failed", result.Failed)
		return result, errors.Join(errs...)
	}

	log.Info("embedding pipeline complete", "chunks", result.Chunks, "stored", result.Stored, "duration", result.Duration)
	return result, nil
}

// replace stores records in place of the episode's previous ones. The swap is
// all or nothing, so BestEffort does not apply.
func (s *EmbeddingService) replace(ctx context.Context, log *slog.Logger, start time.Time, result *RunResult, records []domain.EmbeddingRecord) (*RunResult, error) {
	n, err := s.store.ReplaceEpisodeEmbeddings(ctx, result.PodcastID, result.EpisodeID, records)
	result.Duration = time.Since(start)
	if err != nil {
		if !port.IsStorageError(err) {
			err = &port.StorageError{Index: -1, EpisodeID: result.EpisodeID, Err: err}
		}
		result.Failed = len(records)
		log.Error("embedding pipeline aborted", "stage", "replace", "error", err)
		return result, err
	}

	result.Replaced = n
	result.Stored = len(records)
	result.Records = records
	log.Info("embedding pipeline complete", "chunks", result.Chunks, "stored", result.Stored, "replaced", n, "duration", result.Duration)
	return result, nil
}

func (s *EmbeddingService) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, &port.EmbeddingServiceError{Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &port.EmbeddingServiceError{Want: len(texts), Got: len(vectors)}
	}
	if s.opts.Dimension > 0 {
		for i, v := range vectors {
			if len(v) != s.opts.Dimension {
				return nil, &port.EmbeddingServiceError{
					Err: fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), s.opts.Dimension),
				}
			}
		}
	}
	return vectors, nil
}
