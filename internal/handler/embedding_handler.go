package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/middleware"
	"github.com/moltocasto/podcast-qa/internal/port"
	"github.com/moltocasto/podcast-qa/internal/service"
)

// EmbeddingHandler handles the chunk-and-embed pipeline endpoints.
type EmbeddingHandler struct {
	pipeline *service.EmbeddingService
	store    port.EmbeddingStore
	queue    port.WorkQueue
	tracker  *JobTracker
	audit    middleware.AuditWriter
}

// NewEmbeddingHandler creates a new embedding handler. When queue is non-nil,
// runs are handed to the queue worker instead of running in-process.
func NewEmbeddingHandler(
	pipeline *service.EmbeddingService,
	store port.EmbeddingStore,
	queue port.WorkQueue,
	tracker *JobTracker,
	audit middleware.AuditWriter,
) *EmbeddingHandler {
	return &EmbeddingHandler{
		pipeline: pipeline,
		store:    store,
		queue:    queue,
		tracker:  tracker,
		audit:    audit,
	}
}

// Register sets up embedding routes.
func (h *EmbeddingHandler) Register(router fiber.Router) {
	embeddings := router.Group("/embeddings")
	embeddings.Post("/:pid/:eid", h.Run)
	embeddings.Get("/:pid/:eid", h.List)
	embeddings.Delete("/:pid/:eid", h.Delete)
}

// Run starts the pipeline for one episode. ?replace=true clears the
// episode's previous records first.
func (h *EmbeddingHandler) Run(c fiber.Ctx) error {
	pid, eid, ok := episodeParams(c)
	if !ok {
		return badRequest(c, "invalid podcast or episode id")
	}
	replace := fiber.Query[bool](c, "replace")
	resourceID := fmt.Sprintf("%d/%d", pid, eid)

	if h.queue != nil {
		job := port.EmbedJob{PodcastID: pid, EpisodeID: eid, ReplaceExisting: replace}
		if err := h.queue.Enqueue(c.Context(), job); err != nil {
			slog.Error("failed to enqueue embedding job", "episode_id", eid, "error", err)
			return errorResponse(c, err)
		}
		middleware.RecordAudit(c, h.audit, domain.AuditActionEmbedRun, "episode", resourceID,
			map[string]any{"queued": true, "replace": replace})
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"queued":     true,
			"podcast_id": pid,
			"episode_id": eid,
		})
	}

	job := h.tracker.Start("embed", pid, eid, func(ctx context.Context, progress func(string)) (any, error) {
		progress("embedding")
		result, err := h.pipeline.Run(ctx, pid, eid, replace)
		if result == nil {
			return nil, err
		}
		return result, err
	})

	middleware.RecordAudit(c, h.audit, domain.AuditActionEmbedRun, "episode", resourceID,
		map[string]any{"job_id": job.ID, "replace": replace})

	return c.Status(fiber.StatusAccepted).JSON(job)
}

// List returns the stored chunks of an episode without their vectors.
func (h *EmbeddingHandler) List(c fiber.Ctx) error {
	pid, eid, ok := episodeParams(c)
	if !ok {
		return badRequest(c, "invalid podcast or episode id")
	}

	records, err := h.store.ListEpisodeEmbeddings(c.Context(), pid, eid)
	if err != nil {
		return errorResponse(c, err)
	}

	chunks := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		chunks = append(chunks, fiber.Map{
			"id":         r.ID,
			"timecode":   domain.FormatTimecode(r.Timecode),
			"chunk":      r.Chunk,
			"created_at": r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"podcast_id": pid,
		"episode_id": eid,
		"chunks":     chunks,
		"count":      len(chunks),
	})
}

// Delete removes every stored record of an episode.
func (h *EmbeddingHandler) Delete(c fiber.Ctx) error {
	pid, eid, ok := episodeParams(c)
	if !ok {
		return badRequest(c, "invalid podcast or episode id")
	}

	deleted, err := h.store.DeleteEpisodeEmbeddings(c.Context(), pid, eid)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}
