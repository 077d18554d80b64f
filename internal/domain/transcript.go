package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TranscriptPhrase is one recognized unit of speech.
type TranscriptPhrase struct {
	Text   string        `json:"text"`
	Offset time.Duration `json:"offset"` // since recording start
}

// Transcript is the ordered phrase sequence produced by speech recognition.
type Transcript struct {
	Phrases []TranscriptPhrase `json:"phrases"`
}

// Text returns the phrase texts joined by single spaces.
func (t Transcript) Text() string {
	parts := make([]string, len(t.Phrases))
	for i, p := range t.Phrases {
		parts[i] = p.Text
	}
	return strings.Join(parts, " ")
}

// ErrMalformedTranscript is returned when a speech result cannot be decoded.
var ErrMalformedTranscript = errors.New("malformed transcript")

// recognitionResult mirrors the batch speech-to-text result file.
type recognitionResult struct {
	RecognizedPhrases []struct {
		Offset        string   `json:"offset"`
		OffsetInTicks *float64 `json:"offsetInTicks"`
		NBest         []struct {
			Display string `json:"display"`
		} `json:"nBest"`
	} `json:"recognizedPhrases"`
}

// ParseTranscript decodes a speech-to-text result into phrases.
// Ticks are 100ns units and win over the ISO-8601 offset when both are present.
// Phrases without a recognition candidate, or whose best candidate is blank,
// are skipped.
func ParseTranscript(raw []byte) (Transcript, error) {
	var res recognitionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrMalformedTranscript, err)
	}

	phrases := make([]TranscriptPhrase, 0, len(res.RecognizedPhrases))
	for i, rp := range res.RecognizedPhrases {
		if len(rp.NBest) == 0 || strings.TrimSpace(rp.NBest[0].Display) == "" {
			continue
		}

		var offset time.Duration
		switch {
		case rp.OffsetInTicks != nil:
			offset = time.Duration(*rp.OffsetInTicks) * 100 * time.Nanosecond
		case rp.Offset != "":
			d, err := ParseTimecode(rp.Offset)
			if err != nil {
				return Transcript{}, fmt.Errorf("%w: phrase %d: %v", ErrMalformedTranscript, i, err)
			}
			offset = d
		}

		phrases = append(phrases, TranscriptPhrase{Text: rp.NBest[0].Display, Offset: offset})
	}
	return Transcript{Phrases: phrases}, nil
}

var timecodePattern = regexp.MustCompile(`^P(?:([0-9.]+)D)?(?:T(?:([0-9.]+)H)?(?:([0-9.]+)M)?(?:([0-9.]+)S)?)?$`)

// ParseTimecode parses an ISO-8601 duration such as "PT1M2.5S".
func ParseTimecode(s string) (time.Duration, error) {
	m := timecodePattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid timecode %q", s)
	}

	var total time.Duration
	units := []string{"h", "h", "m", "s"}
	scale := []float64{24, 1, 1, 1}
	for i, part := range m[1:] {
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timecode %q: %w", s, err)
		}
		d, err := time.ParseDuration(strconv.FormatFloat(v*scale[i], 'f', -1, 64) + units[i])
		if err != nil {
			return 0, fmt.Errorf("invalid timecode %q: %w", s, err)
		}
		total += d
	}
	return total, nil
}

// FormatTimecode renders d as an ISO-8601 duration, e.g. 62.5s -> "PT1M2.5S".
func FormatTimecode(d time.Duration) string {
	if d <= 0 {
		return "PT0S"
	}

	var b strings.Builder
	b.WriteString("PT")
	if h := d / time.Hour; h > 0 {
		fmt.Fprintf(&b, "%dH", h)
		d -= h * time.Hour
	}
	if m := d / time.Minute; m > 0 {
		fmt.Fprintf(&b, "%dM", m)
		d -= m * time.Minute
	}
	if d > 0 {
		b.WriteString(strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
		b.WriteString("S")
	}
	return b.String()
}
