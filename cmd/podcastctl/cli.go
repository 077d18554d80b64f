package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/moltocasto/podcast-qa/internal/mcp"
	"github.com/moltocasto/podcast-qa/internal/port"
	"github.com/moltocasto/podcast-qa/internal/service"
)

// deps are the services behind the commands. Any of them may be nil when
// the matching backend is not configured.
type deps struct {
	PodcastID     int64
	Pipeline      *service.EmbeddingService
	Transcription *service.TranscriptionService
	Feeds         *service.FeedService
	Ask           *service.AskService
	Questions     *service.QuestionService
	Queue         port.WorkQueue
	MCP           *mcp.Server
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "podcastctl",
		Usage:   "Podcast transcript pipeline and Q&A",
		Version: Version,
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "podcast", Aliases: []string{"p"}, Usage: "Podcast ID (default DEFAULT_PODCAST_ID)"},
		},
		Commands: []*cli.Command{
			embedCmd(d),
			transcribeCmd(d),
			ingestCmd(d),
			askCmd(d),
			questionsCmd(d),
			workerCmd(d),
			mcpCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// embedCmd creates the embed command.
func embedCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "embed",
		Usage:     "Chunk and embed the stored transcript of an episode",
		ArgsUsage: "<episodeId>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "replace", Usage: "Delete the episode's previous records first"},
			&cli.BoolFlag{Name: "enqueue", Usage: "Schedule the run on the work queue instead of running it"},
		},
		Action: func(c *cli.Context) error {
			episodeID, err := episodeArg(c)
			if err != nil {
				return outputError(err)
			}
			podcastID := podcastFlag(c, d)

			if c.Bool("enqueue") {
				if d.Queue == nil {
					return outputError(port.ErrQueueUnavailable)
				}
				job := port.EmbedJob{PodcastID: podcastID, EpisodeID: episodeID, ReplaceExisting: c.Bool("replace")}
				if err := d.Queue.Enqueue(c.Context, job); err != nil {
					return outputError(err)
				}
				return outputJSON(c, map[string]any{"queued": true, "podcast_id": podcastID, "episode_id": episodeID})
			}

			result, err := d.Pipeline.Run(c.Context, podcastID, episodeID, c.Bool("replace"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, result)
		},
	}
}

// transcribeCmd creates the transcribe command.
func transcribeCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "transcribe",
		Usage:     "Run speech-to-text on an episode and store the transcript",
		ArgsUsage: "<episodeId>",
		Action: func(c *cli.Context) error {
			if d.Transcription == nil {
				return cli.Exit("transcription not configured: set SPEECH_KEY and SERVICE_REGION", 1)
			}
			episodeID, err := episodeArg(c)
			if err != nil {
				return outputError(err)
			}

			transcript, err := d.Transcription.Transcribe(c.Context, podcastFlag(c, d), episodeID)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"episode_id": episodeID, "phrases": len(transcript.Phrases)})
		},
	}
}

// ingestCmd creates the ingest command.
func ingestCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Insert new episodes from an RSS feed (URL or file)",
		ArgsUsage: "[feed]",
		Action: func(c *cli.Context) error {
			podcastID := podcastFlag(c, d)
			inserted, err := d.Feeds.Ingest(c.Context, podcastID, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"podcast_id": podcastID, "inserted": inserted})
		},
	}
}

// askCmd creates the ask command.
func askCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a question about an episode",
		ArgsUsage: "<episodeId> <question>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: service.StrategyFullText, Usage: "Answer strategy: fulltext|rag"},
			&cli.BoolFlag{Name: "stream", Usage: "Print the answer as it is generated"},
		},
		Action: func(c *cli.Context) error {
			episodeID, err := episodeArg(c)
			if err != nil {
				return outputError(err)
			}
			req := port.AnswerRequest{
				Question:  strings.Join(c.Args().Tail(), " "),
				PodcastID: podcastFlag(c, d),
				EpisodeID: episodeID,
			}

			if c.Bool("stream") {
				tokens, errc, _, err := d.Ask.AskStream(c.Context, c.String("mode"), req)
				if err != nil {
					return outputError(err)
				}
				for token := range tokens {
					fmt.Fprint(c.App.Writer, token)
				}
				fmt.Fprintln(c.App.Writer)
				if err := <-errc; err != nil {
					return outputError(fmt.Errorf("answer incomplete: %w", err))
				}
				return nil
			}

			answer, err := d.Ask.Ask(c.Context, c.String("mode"), req)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, answer)
		},
	}
}

// questionsCmd creates the questions command.
func questionsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "questions",
		Usage:     "Generate and store sample questions for an episode",
		ArgsUsage: "<episodeId>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 3, Usage: "Number of questions"},
		},
		Action: func(c *cli.Context) error {
			episodeID, err := episodeArg(c)
			if err != nil {
				return outputError(err)
			}
			questions, err := d.Questions.Generate(c.Context, podcastFlag(c, d), episodeID, c.Int("count"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"episode_id": episodeID, "questions": questions})
		},
	}
}

// workerCmd creates the worker command.
func workerCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Drain the embedding work queue until interrupted",
		Action: func(c *cli.Context) error {
			if d.Queue == nil {
				return outputError(port.ErrQueueUnavailable)
			}
			if err := service.NewWorker(d.Queue, d.Pipeline).Run(c.Context); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools over stdio",
		Action: func(c *cli.Context) error {
			if err := d.MCP.ServeStdio(); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// episodeArg parses the first positional argument as an episode ID.
func episodeArg(c *cli.Context) (int64, error) {
	raw := c.Args().First()
	if raw == "" {
		return 0, port.NewInputError("episode id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, port.NewInputError("invalid episode id %q", raw)
	}
	return id, nil
}

func podcastFlag(c *cli.Context, d *deps) int64 {
	if id := c.Int64("podcast"); id > 0 {
		return id
	}
	return d.PodcastID
}

// outputJSON writes v as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	return writeJSON(c.App.Writer, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI. Input errors exit with status 2.
func outputError(err error) error {
	if port.IsInputError(err) {
		return cli.Exit(err.Error(), 2)
	}
	return cli.Exit(err.Error(), 1)
}
