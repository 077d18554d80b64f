package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
	"github.com/moltocasto/podcast-qa/internal/service"
)

const (
	defaultEpisodeLimit = 15
	defaultSearchLimit  = 5
	maxLimit            = 50
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// ListEpisodesRequest represents the arguments for list_episodes.
type ListEpisodesRequest struct {
	PodcastID int64 `json:"podcast_id"`
	Limit     int   `json:"limit,omitempty"`
}

// SearchRequest represents the arguments for search_transcripts.
type SearchRequest struct {
	PodcastID int64  `json:"podcast_id"`
	Query     string `json:"query"`
	EpisodeID int64  `json:"episode_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// AskRequest represents the arguments for ask_episode.
type AskRequest struct {
	PodcastID int64  `json:"podcast_id"`
	Question  string `json:"question"`
	EpisodeID int64  `json:"episode_id,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// EmbedRequest represents the arguments for embed_episode.
type EmbedRequest struct {
	PodcastID int64 `json:"podcast_id"`
	EpisodeID int64 `json:"episode_id"`
	Replace   bool  `json:"replace,omitempty"`
}

type episodeSummary struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Published string   `json:"published,omitempty"`
	Duration  string   `json:"duration,omitempty"`
	Questions []string `json:"sample_questions,omitempty"`
}

type passage struct {
	EpisodeID int64   `json:"episode_id"`
	Title     string  `json:"title"`
	Timecode  string  `json:"timecode"`
	Text      string  `json:"text"`
	Distance  float64 `json:"distance"`
}

func clampLimit(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return min(n, maxLimit)
}

// HandleListEpisodes handles the list_episodes tool.
func (h *Handlers) HandleListEpisodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListEpisodesRequest](req)
	if err != nil {
		return errorResult(port.NewInputError("%v", err)), nil
	}
	h.audit("list_episodes", input.PodcastID, 0)

	episodes, err := h.deps.Episodes.ListTranscribedEpisodes(ctx, input.PodcastID, clampLimit(input.Limit, defaultEpisodeLimit))
	if err != nil {
		return errorResult(err), nil
	}

	out := make([]episodeSummary, 0, len(episodes))
	for _, e := range episodes {
		s := episodeSummary{ID: e.EpisodeID, Title: e.Title, Duration: e.Duration, Questions: e.Questions}
		if !e.Published.IsZero() {
			s.Published = e.Published.Format("2006-01-02")
		}
		out = append(out, s)
	}
	return successResult(map[string]any{"episodes": out, "count": len(out)})
}

// HandleSearch handles the search_transcripts tool.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(port.NewInputError("%v", err)), nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return errorResult(port.NewInputError("query is empty")), nil
	}
	h.audit("search_transcripts", input.PodcastID, input.EpisodeID)

	vector, err := h.deps.Embedder.Embed(ctx, input.Query)
	if err != nil {
		return errorResult(&port.EmbeddingServiceError{Err: err}), nil
	}

	chunks, err := h.deps.Store.SearchSimilar(ctx, input.PodcastID, input.EpisodeID, vector, clampLimit(input.Limit, defaultSearchLimit))
	if err != nil {
		return errorResult(err), nil
	}

	out := make([]passage, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, passage{
			EpisodeID: c.EpisodeID,
			Title:     c.Title,
			Timecode:  domain.FormatTimecode(c.Timecode),
			Text:      c.Chunk,
			Distance:  c.Distance,
		})
	}
	return successResult(map[string]any{"passages": out, "count": len(out)})
}

// HandleAsk handles the ask_episode tool.
func (h *Handlers) HandleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AskRequest](req)
	if err != nil {
		return errorResult(port.NewInputError("%v", err)), nil
	}
	mode := input.Mode
	if mode == "" {
		mode = service.StrategyFullText
	}
	h.audit("ask_episode", input.PodcastID, input.EpisodeID)

	answer, err := h.deps.Ask.Ask(ctx, mode, port.AnswerRequest{
		Question:  input.Question,
		PodcastID: input.PodcastID,
		EpisodeID: input.EpisodeID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	sources := make([]passage, 0, len(answer.Sources))
	for _, c := range answer.Sources {
		sources = append(sources, passage{
			EpisodeID: c.EpisodeID,
			Title:     c.Title,
			Timecode:  domain.FormatTimecode(c.Timecode),
			Text:      c.Chunk,
			Distance:  c.Distance,
		})
	}
	return successResult(map[string]any{
		"answer":   answer.Answer,
		"strategy": answer.Strategy,
		"model":    answer.Model,
		"sources":  sources,
	})
}

// HandleEmbed handles the embed_episode tool. With a work queue the run is
// only scheduled; otherwise it runs before the tool returns.
func (h *Handlers) HandleEmbed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EmbedRequest](req)
	if err != nil {
		return errorResult(port.NewInputError("%v", err)), nil
	}
	if input.PodcastID <= 0 || input.EpisodeID <= 0 {
		return errorResult(port.NewInputError("podcast_id and episode_id must be positive")), nil
	}
	h.audit("embed_episode", input.PodcastID, input.EpisodeID)

	if h.deps.Queue != nil {
		job := port.EmbedJob{PodcastID: input.PodcastID, EpisodeID: input.EpisodeID, ReplaceExisting: input.Replace}
		if err := h.deps.Queue.Enqueue(ctx, job); err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{"queued": true, "podcast_id": input.PodcastID, "episode_id": input.EpisodeID})
	}

	result, err := h.deps.Pipeline.Run(ctx, input.PodcastID, input.EpisodeID, input.Replace)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

func (h *Handlers) audit(tool string, podcastID, episodeID int64) {
	if h.deps.Audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]any{"tool": tool, "podcast_id": podcastID, "episode_id": episodeID})
	go func() {
		if err := h.deps.Audit.WriteAudit(domain.AuditActionMCPCall, "mcp", tool, string(details), "", ""); err != nil {
			slog.Error("failed to write audit log", "action", domain.AuditActionMCPCall, "error", err)
		}
	}()
}

// Result helpers

// errorCode classifies err for MCP clients.
func errorCode(err error) (string, int) {
	switch {
	case port.IsInputError(err):
		return "INVALID_INPUT", 400
	case errors.Is(err, port.ErrPodcastNotFound),
		errors.Is(err, port.ErrEpisodeNotFound),
		errors.Is(err, port.ErrStrategyNotFound),
		errors.Is(err, port.ErrTranscriptMissing):
		return "NOT_FOUND", 404
	case errors.Is(err, port.ErrQueueUnavailable):
		return "UNAVAILABLE", 503
	case port.IsEmbeddingServiceError(err):
		return "EMBEDDING_SERVICE", 502
	case port.IsStorageError(err):
		return "STORAGE", 500
	default:
		return "INTERNAL", 500
	}
}

// errorResult creates an MCP error result from any error.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	code, status := errorCode(err)
	message := err.Error()
	if code == "INTERNAL" {
		slog.Error("mcp tool failed", "error", err)
		message = "an internal error occurred"
	}

	content, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
