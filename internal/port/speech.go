package port

import "context"

// Transcriber converts the audio at a URL into a speech-to-text result document
// (recognizedPhrases JSON).
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) ([]byte, error)
}
