package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/moltocasto/podcast-qa/internal/port"
)

// statusFor maps a service error onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case port.IsInputError(err):
		return fiber.StatusBadRequest
	case errors.Is(err, port.ErrPodcastNotFound),
		errors.Is(err, port.ErrEpisodeNotFound),
		errors.Is(err, port.ErrStrategyNotFound),
		errors.Is(err, port.ErrTranscriptMissing):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrQuestionsUnsupported):
		return fiber.StatusNotImplemented
	case errors.Is(err, port.ErrQueueUnavailable):
		return fiber.StatusServiceUnavailable
	case port.IsEmbeddingServiceError(err):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// parseID reads a positive integer from a route parameter.
func parseID(c fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// episodeParams reads :pid and :eid.
func episodeParams(c fiber.Ctx) (int64, int64, bool) {
	pid, ok := parseID(c, "pid")
	if !ok {
		return 0, 0, false
	}
	eid, ok := parseID(c, "eid")
	if !ok {
		return 0, 0, false
	}
	return pid, eid, true
}
