package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/middleware"
	"github.com/moltocasto/podcast-qa/internal/port"
	"github.com/moltocasto/podcast-qa/internal/service"
)

// EpisodeListLimit is how many transcribed episodes GET /episodes/:pid returns.
const EpisodeListLimit = 15

// EpisodeHandler handles episode endpoints.
type EpisodeHandler struct {
	episodes      port.EpisodeRepository
	transcription *service.TranscriptionService
	questions     *service.QuestionService
	tracker       *JobTracker
	audit         middleware.AuditWriter
}

// NewEpisodeHandler creates a new episode handler. transcription, questions
// and audit may be nil when the backing services are not configured.
func NewEpisodeHandler(
	episodes port.EpisodeRepository,
	transcription *service.TranscriptionService,
	questions *service.QuestionService,
	tracker *JobTracker,
	audit middleware.AuditWriter,
) *EpisodeHandler {
	return &EpisodeHandler{
		episodes:      episodes,
		transcription: transcription,
		questions:     questions,
		tracker:       tracker,
		audit:         audit,
	}
}

// Register sets up episode routes.
func (h *EpisodeHandler) Register(router fiber.Router) {
	episodes := router.Group("/episodes")
	episodes.Get("/:pid", h.List)
	episodes.Get("/:pid/:eid", h.Get)
	episodes.Post("/:pid/:eid/transcribe", h.Transcribe)
	episodes.Post("/:pid/:eid/questions", h.GenerateQuestions)
}

// List returns the newest transcribed episodes of a podcast.
func (h *EpisodeHandler) List(c fiber.Ctx) error {
	pid, ok := parseID(c, "pid")
	if !ok {
		return badRequest(c, "invalid podcast id")
	}

	episodes, err := h.episodes.ListTranscribedEpisodes(c.Context(), pid, EpisodeListLimit)
	if err != nil {
		return errorResponse(c, err)
	}
	if episodes == nil {
		episodes = []domain.Episode{}
	}
	return c.JSON(episodes)
}

// Get returns one episode with its transcript text and sample questions.
func (h *EpisodeHandler) Get(c fiber.Ctx) error {
	pid, eid, ok := episodeParams(c)
	if !ok {
		return badRequest(c, "invalid podcast or episode id")
	}

	episode, err := h.episodes.GetEpisode(c.Context(), pid, eid)
	if err != nil {
		return errorResponse(c, err)
	}
	if episode.Questions == nil {
		episode.Questions = []string{}
	}
	return c.JSON(episode)
}

// Transcribe starts a background transcription job for the episode.
func (h *EpisodeHandler) Transcribe(c fiber.Ctx) error {
	if h.transcription == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "transcription not configured"})
	}

	pid, eid, ok := episodeParams(c)
	if !ok {
		return badRequest(c, "invalid podcast or episode id")
	}

	// Fail fast on unknown episodes instead of returning a job that errors immediately.
	if _, err := h.episodes.GetEpisode(c.Context(), pid, eid); err != nil {
		return errorResponse(c, err)
	}

	job := h.tracker.Start("transcribe", pid, eid, func(ctx context.Context, progress func(string)) (any, error) {
		progress("transcribing")
		transcript, err := h.transcription.Transcribe(ctx, pid, eid)
		if err != nil {
			return nil, err
		}
		return fiber.Map{"phrases": len(transcript.Phrases)}, nil
	})

	middleware.RecordAudit(c, h.audit, domain.AuditActionTranscribe, "episode", fmt.Sprintf("%d/%d", pid, eid),
		map[string]any{"job_id": job.ID})

	return c.Status(fiber.StatusAccepted).JSON(job)
}

// GenerateQuestions asks the model for sample questions and stores them.
// The count comes from the optional ?n= query parameter.
func (h *EpisodeHandler) GenerateQuestions(c fiber.Ctx) error {
	if h.questions == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "question generation not configured"})
	}

	pid, eid, ok := episodeParams(c)
	if !ok {
		return badRequest(c, "invalid podcast or episode id")
	}

	n, err := strconv.Atoi(c.Query("n", "0"))
	if err != nil || n < 0 {
		return badRequest(c, "n must be a non-negative integer")
	}

	questions, err := h.questions.Generate(c.Context(), pid, eid, n)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"podcast_id": pid,
		"episode_id": eid,
		"questions":  questions,
	})
}
