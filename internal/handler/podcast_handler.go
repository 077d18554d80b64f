package handler

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/middleware"
	"github.com/moltocasto/podcast-qa/internal/port"
	"github.com/moltocasto/podcast-qa/internal/service"
)

// PodcastHandler handles podcast endpoints.
type PodcastHandler struct {
	episodes port.EpisodeRepository
	feeds    *service.FeedService
	audit    middleware.AuditWriter
}

// NewPodcastHandler creates a new podcast handler. feeds and audit may be nil.
func NewPodcastHandler(episodes port.EpisodeRepository, feeds *service.FeedService, audit middleware.AuditWriter) *PodcastHandler {
	return &PodcastHandler{episodes: episodes, feeds: feeds, audit: audit}
}

// Register sets up podcast routes.
func (h *PodcastHandler) Register(router fiber.Router) {
	podcasts := router.Group("/podcasts")
	podcasts.Get("/", h.List)
	podcasts.Get("/:pid", h.Get)
	podcasts.Post("/:pid/feed", h.IngestFeed)
}

// List returns all podcasts.
func (h *PodcastHandler) List(c fiber.Ctx) error {
	podcasts, err := h.episodes.ListPodcasts(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	if podcasts == nil {
		podcasts = []domain.Podcast{}
	}
	return c.JSON(podcasts)
}

// Get returns one podcast.
func (h *PodcastHandler) Get(c fiber.Ctx) error {
	pid, ok := parseID(c, "pid")
	if !ok {
		return badRequest(c, "invalid podcast id")
	}

	podcast, err := h.episodes.GetPodcast(c.Context(), pid)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(podcast)
}

type ingestRequest struct {
	Source string `json:"source"`
}

// IngestFeed reads the podcast's RSS feed and inserts new episodes.
// An empty source falls back to the podcast's stored feed url.
func (h *PodcastHandler) IngestFeed(c fiber.Ctx) error {
	if h.feeds == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "feed ingest not configured"})
	}

	pid, ok := parseID(c, "pid")
	if !ok {
		return badRequest(c, "invalid podcast id")
	}

	var req ingestRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	inserted, err := h.feeds.Ingest(c.Context(), pid, req.Source)
	if err != nil {
		slog.Error("feed ingest failed", "podcast_id", pid, "error", err)
		return errorResponse(c, err)
	}

	middleware.RecordAudit(c, h.audit, domain.AuditActionFeedIngest, "podcast", fmt.Sprint(pid),
		map[string]any{"source": req.Source, "inserted": inserted})

	return c.JSON(fiber.Map{
		"podcast_id": pid,
		"inserted":   inserted,
	})
}
