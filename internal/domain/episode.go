package domain

import "time"

// Episode is one podcast episode as stored in the episodes table.
type Episode struct {
	ID             int64     `json:"-"                db:"id"`
	PodcastID      int64     `json:"podcast_id"       db:"podcastid"`
	EpisodeID      int64     `json:"id"               db:"episodeid"`
	Title          string    `json:"episode_name"     db:"title"`
	Summary        string    `json:"summary"          db:"summary"`
	URL            string    `json:"url"              db:"url"`
	Authors        string    `json:"authors"          db:"authors"`
	Published      time.Time `json:"published"        db:"published"`
	Duration       string    `json:"duration"         db:"duration"`
	Questions      []string  `json:"sample_questions" db:"questions"`
	Transcribed    bool      `json:"transcribed"      db:"transcribed"`
	Transcript     []byte    `json:"-"                db:"transcript"` // raw speech-to-text result JSON
	TranscriptText string    `json:"transcript"       db:"transcripttext"`
}

// HasTranscript reports whether a speech-to-text result is stored for the episode.
func (e *Episode) HasTranscript() bool {
	return e.Transcribed && len(e.Transcript) > 0
}
