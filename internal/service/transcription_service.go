package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
)

// TranscriptionService transcribes episode audio and stores the result.
type TranscriptionService struct {
	episodes    port.EpisodeRepository
	transcriber port.Transcriber
}

// NewTranscriptionService creates a new transcription service.
func NewTranscriptionService(episodes port.EpisodeRepository, transcriber port.Transcriber) *TranscriptionService {
	return &TranscriptionService{episodes: episodes, transcriber: transcriber}
}

// Transcribe runs speech-to-text on the episode audio and saves the result
// document together with its plain text. It returns the parsed transcript.
func (s *TranscriptionService) Transcribe(ctx context.Context, podcastID, episodeID int64) (*domain.Transcript, error) {
	episode, err := s.episodes.GetEpisode(ctx, podcastID, episodeID)
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	if strings.TrimSpace(episode.URL) == "" {
		return nil, port.NewInputError("episode %d has no audio url", episodeID)
	}

	slog.Info("transcribing episode", "podcast_id", podcastID, "episode_id", episodeID, "url", episode.URL)
	raw, err := s.transcriber.Transcribe(ctx, episode.URL)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	transcript, err := domain.ParseTranscript(raw)
	if err != nil {
		return nil, fmt.Errorf("parse transcription result: %w", err)
	}

	if err := s.episodes.SaveTranscript(ctx, podcastID, episodeID, raw, transcript.Text()); err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}

	slog.Info("transcription stored", "episode_id", episodeID, "phrases", len(transcript.Phrases))
	return &transcript, nil
}
