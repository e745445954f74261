// Package tags turns feature activations into tone tags: it renders the
// classifier prompt and parses the model's answer back into a short list.
package tags

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mentor-api/internal/goodfire"
	"mentor-api/internal/shared"
)

const (
	MaxTags     = 3
	MaxTagWords = 2
)

const promptTemplate = `You are a tone classifier for conversations between a user and their mentor.
The following interpretability features activated most strongly on the user's messages, strongest first:

%s

Using these features, describe the tone of the user's side of the conversation with 1 to 3 tags.
Each tag must be 1 or 2 words long.
Respond with ONLY a JSON array of strings, for example ["anxious", "hopeful"]. Do not add any other text.`

// FormatActivation renders one activation as a prompt line.
func FormatActivation(a goodfire.FeatureActivation) string {
	return "label: " + a.Label + "\tactivation: " + strconv.FormatFloat(a.Activation, 'f', -1, 64)
}

// BuildPrompt renders the classifier prompt, one line per activation in the
// given order.
func BuildPrompt(activations []goodfire.FeatureActivation) string {
	lines := make([]string, len(activations))
	for i, a := range activations {
		lines[i] = FormatActivation(a)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(lines, "\n"))
}

var ErrNoTags = fmt.Errorf("%w: no tags in model output", shared.ErrValidation)

// ParseTags extracts at most MaxTags tags of at most MaxTagWords words from a
// completion. A JSON array is preferred; plain comma separated text is
// accepted as a fallback. The returned slice is never nil.
func ParseTags(raw string) ([]string, error) {
	s := stripFences(raw)

	var candidates []string
	start := strings.Index(s, "[")
	switch {
	case start != -1:
		// Only the first array counts; the model may add prose after it.
		var arr []string
		if err := json.NewDecoder(strings.NewReader(s[start:])).Decode(&arr); err != nil {
			return []string{}, fmt.Errorf("%w: %w", shared.ErrValidation, err)
		}
		candidates = arr
	case strings.HasPrefix(s, "{"):
		return []string{}, fmt.Errorf("%w: unexpected JSON object in model output", shared.ErrValidation)
	default:
		candidates = strings.Split(s, ",")
	}

	out := normalize(candidates)
	if len(out) == 0 {
		return out, ErrNoTags
	}
	return out, nil
}

func normalize(candidates []string) []string {
	out := make([]string, 0, MaxTags)
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		words := strings.Fields(strings.Trim(strings.TrimSpace(c), "\"'`#.*-"))
		if len(words) == 0 {
			continue
		}
		if len(words) > MaxTagWords {
			words = words[:MaxTagWords]
		}
		tag := strings.Join(words, " ")
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}

	return strings.TrimSpace(s)
}

var userSegment = regexp.MustCompile(`(?s)<user>(.*?)</user>`)

var ErrNoUserMessages = errors.New("no <user> messages in transcript")

// ExtractUserMessages collects the <user>...</user> segments of a transcript
// as user chat messages, in transcript order. Blank segments are kept as
// empty messages.
func ExtractUserMessages(transcript string) []shared.ChatMessage {
	matches := userSegment.FindAllStringSubmatch(transcript, -1)
	messages := make([]shared.ChatMessage, 0, len(matches))
	for _, m := range matches {
		messages = append(messages, shared.ChatMessage{Role: "user", Content: strings.TrimSpace(m[1])})
	}
	return messages
}
