package ai

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/invopop/jsonschema"
)

// questionsPrompt instructs the model to write sample listener questions.
const questionsPrompt = `You write sample questions that a podcast listener could ask about an episode.
Each question must be answerable from the transcript, be a single sentence and be at most 20 words.
Return exactly the requested number of questions.`

// sampleQuestions is the structured output of question generation.
type sampleQuestions struct {
	Questions []string `json:"questions" jsonschema:"required,description=Questions a listener could ask about the episode"`
}

var sampleQuestionsSchema = generateSchema[sampleQuestions]()

func questionsInput(title, transcript string, n int) string {
	return fmt.Sprintf("Write %d questions about the episode titled %q.\n\nTranscript:\n%s", n, title, transcript)
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	ensureStrict(m)
	return m
}

// ensureStrict marks every object closed and every property required, as
// strict structured output demands.
func ensureStrict(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			if len(required) > 0 {
				schema["required"] = required
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				ensureStrict(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		ensureStrict(items)
	}
}

// decodeQuestions parses model output, tolerating text around the JSON object.
func decodeQuestions(output string, n int) ([]string, error) {
	s := strings.TrimSpace(output)
	if s == "" {
		return nil, io.ErrUnexpectedEOF
	}

	var out sampleQuestions
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		start := strings.IndexByte(s, '{')
		end := strings.LastIndexByte(s, '}')
		if start == -1 || end <= start {
			return nil, fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
		}
		if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	}

	questions := make([]string, 0, len(out.Questions))
	for _, q := range out.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if n > 0 && len(questions) > n {
		questions = questions[:n]
	}
	return questions, nil
}
