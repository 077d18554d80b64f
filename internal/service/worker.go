package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/moltocasto/podcast-qa/internal/port"
)

// defaultRetryDelay is the pause after the queue itself fails.
const defaultRetryDelay = 2 * time.Second

// Worker drains the embedding work queue, one episode at a time.
type Worker struct {
	queue      port.WorkQueue
	pipeline   *EmbeddingService
	retryDelay time.Duration
}

// NewWorker creates a queue worker.
func NewWorker(queue port.WorkQueue, pipeline *EmbeddingService) *Worker {
	return &Worker{queue: queue, pipeline: pipeline, retryDelay: defaultRetryDelay}
}

// Run processes jobs until ctx is cancelled. A failed run is logged and the
// worker moves on to the next job; the job is not requeued. Malformed entries
// are dropped, and queue errors are retried after a pause.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("embedding worker started")
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("embedding worker stopped")
				return nil
			}
			if errors.Is(err, port.ErrBadJob) {
				slog.Warn("dropping malformed queue entry", "error", err)
				continue
			}
			slog.Error("work queue read failed", "error", err, "retry_in", w.retryDelay)
			select {
			case <-ctx.Done():
				slog.Info("embedding worker stopped")
				return nil
			case <-time.After(w.retryDelay):
			}
			continue
		}

		if _, err := w.Process(ctx, *job); err != nil && errors.Is(err, context.Canceled) {
			return nil
		}
	}
}

// Process runs the pipeline for one job.
func (w *Worker) Process(ctx context.Context, job port.EmbedJob) (*RunResult, error) {
	result, err := w.pipeline.Run(ctx, job.PodcastID, job.EpisodeID, job.ReplaceExisting)
	if err != nil {
		slog.Error("embedding job failed", "podcast_id", job.PodcastID, "episode_id", job.EpisodeID, "error", err)
		return result, err
	}
	return result, nil
}
