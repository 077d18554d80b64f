package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/middleware"
	"github.com/moltocasto/podcast-qa/internal/port"
	"github.com/moltocasto/podcast-qa/internal/service"
)

const askTimeout = 2 * time.Minute

// AskHandler answers listener questions.
type AskHandler struct {
	ask   *service.AskService
	audit middleware.AuditWriter
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(ask *service.AskService, audit middleware.AuditWriter) *AskHandler {
	return &AskHandler{ask: ask, audit: audit}
}

// Register sets up ask routes.
func (h *AskHandler) Register(router fiber.Router) {
	ask := router.Group("/ask")
	ask.Get("/", h.Ask)
	ask.Get("/stream", h.Stream)
	ask.Get("/strategies", h.Strategies)
}

// askParams reads q, pid, eid and mode from the query string.
func askParams(c fiber.Ctx) (string, port.AnswerRequest, error) {
	req := port.AnswerRequest{Question: strings.TrimSpace(c.Query("q"))}

	pid, err := strconv.ParseInt(c.Query("pid"), 10, 64)
	if err != nil {
		return "", req, port.NewInputError("pid must be an integer")
	}
	req.PodcastID = pid

	if raw := c.Query("eid"); raw != "" {
		eid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || eid < 0 {
			return "", req, port.NewInputError("eid must be a non-negative integer")
		}
		req.EpisodeID = eid
	}

	return c.Query("mode", service.StrategyFullText), req, nil
}

func auditAction(mode string) string {
	if mode == service.StrategyRAG {
		return domain.AuditActionAskRAG
	}
	return domain.AuditActionAskFullText
}

// Ask returns the complete answer as JSON.
func (h *AskHandler) Ask(c fiber.Ctx) error {
	mode, req, err := askParams(c)
	if err != nil {
		return errorResponse(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Context(), askTimeout)
	defer cancel()

	answer, err := h.ask.Ask(ctx, mode, req)
	if err != nil {
		slog.Error("ask failed", "mode", mode, "podcast_id", req.PodcastID, "episode_id", req.EpisodeID, "error", err)
		return errorResponse(c, err)
	}

	middleware.RecordAudit(c, h.audit, auditAction(mode), "episode", fmt.Sprintf("%d/%d", req.PodcastID, req.EpisodeID),
		map[string]any{"question": req.Question, "sources": len(answer.Sources)})

	if answer.Sources == nil {
		answer.Sources = []domain.SimilarChunk{}
	}
	return c.JSON(answer)
}

// Stream answers as Server-Sent Events. A "sources" event comes first, then
// the answer as data frames, then a "done" event, or an "error" event when
// the model stream broke off.
func (h *AskHandler) Stream(c fiber.Ctx) error {
	mode, req, err := askParams(c)
	if err != nil {
		return errorResponse(c, err)
	}

	// The stream outlives the handler, so it cannot use the request context.
	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)

	tokens, errc, sources, err := h.ask.AskStream(ctx, mode, req)
	if err != nil {
		cancel()
		slog.Error("ask stream failed", "mode", mode, "podcast_id", req.PodcastID, "error", err)
		return errorResponse(c, err)
	}

	middleware.RecordAudit(c, h.audit, auditAction(mode), "episode", fmt.Sprintf("%d/%d", req.PodcastID, req.EpisodeID),
		map[string]any{"question": req.Question, "sources": len(sources), "stream": true})

	if sources == nil {
		sources = []domain.SimilarChunk{}
	}

	setSSEHeaders(c)
	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		data, _ := json.Marshal(sources)
		fmt.Fprintf(w, "event: sources\ndata: %s\n\n", data)
		if err := w.Flush(); err != nil {
			return
		}

		for token := range tokens {
			writeDataFrame(w, token)
			if err := w.Flush(); err != nil {
				return
			}
		}

		if err := <-errc; err != nil {
			slog.Error("ask stream interrupted", "mode", mode, "podcast_id", req.PodcastID, "error", err)
			data, _ := json.Marshal(fiber.Map{"error": "answer stream interrupted"})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
			w.Flush()
			return
		}

		fmt.Fprint(w, "event: done\ndata: [DONE]\n\n")
		w.Flush()
	})
}

// writeDataFrame writes one SSE message. Each line of text gets its own data field.
func writeDataFrame(w *bufio.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	w.WriteString("\n")
}

// Strategies lists the answer modes.
func (h *AskHandler) Strategies(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"strategies": h.ask.Strategies()})
}
