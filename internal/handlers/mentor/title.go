package mentor

import (
	"context"
	"fmt"
	"strings"

	"mentor-api/internal/shared"
)

const titleSystemPrompt = "You are a helpful assistant that creates short, descriptive titles for conversation transcripts. " +
	"Create a concise title (3-4 words maximum) that captures the essence of the conversation. " +
	"The title should be engaging but not overly clever. Focus on the main topic or theme discussed."

// GenerateTitle asks the model for a three to four word title of a transcript.
func (h *MentorHandler) GenerateTitle(ctx context.Context, transcript string) (string, error) {
	if err := h.Vendor.CheckCredential(); err != nil {
		return "", err
	}
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("%w: input is required", shared.ErrValidation)
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	messages := []shared.ChatMessage{
		{Role: "system", Content: titleSystemPrompt},
		{Role: "user", Content: transcript},
	}
	out, err := h.Vendor.Complete(ctx, messages, h.tagModel, shared.TitleMaxTokens)
	if err != nil {
		return "", err
	}
	return cleanTitle(out), nil
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
