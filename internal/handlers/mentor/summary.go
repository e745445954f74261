package mentor

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"mentor-api/internal/shared"
)

const NoSessionsSummary = "No sessions found for the past week."

const summarySystemPrompt = `You are an AI assistant that creates concise weekly summaries of therapy/mentoring sessions. Your ONLY task is to generate a 2-3 sentence summary of all sessions from the past week.

CRITICAL INSTRUCTIONS:
1. Analyze all sessions as a whole.
2. Create ONE brief 2-3 sentence summary addressing the user directly.
3. Highlight common themes, progress made, and key insights across all sessions.
4. Use a supportive, reflective tone.
5. YOUR RESPONSE MUST BE EXACTLY IN THIS FORMAT - A VALID JSON OBJECT WITH NO ADDITIONAL TEXT:
{"weekSummary": "Your 2-3 sentence summary here."}

DO NOT include any explanations, introductions, or additional formatting. ONLY return the JSON object.`

const summaryUserPreamble = "Here are my therapy/mentoring sessions from the past week. Please provide a summary of these sessions as a whole:\n\n"

var weekSummaryObject = regexp.MustCompile(`(?s)\{.*"weekSummary".*\}`)

// WeeklySummary summarizes a week of sessions from their titles and tags.
// An empty week is answered without calling the model.
func (h *MentorHandler) WeeklySummary(ctx context.Context, sessions []shared.SessionSummary) (string, error) {
	if len(sessions) == 0 {
		return NoSessionsSummary, nil
	}
	if err := h.Vendor.CheckCredential(); err != nil {
		return "", err
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	messages := []shared.ChatMessage{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: summaryUserPreamble + formatSessions(sessions)},
	}
	out, err := h.Vendor.Complete(ctx, messages, h.tagModel, shared.SummaryMaxTokens)
	if err != nil {
		return "", err
	}

	summary, ok := parseWeekSummary(out)
	if !ok {
		h.Log.Warnw("Weekly summary was not JSON, using raw text", "sessions", len(sessions))
	}
	return summary, nil
}

func formatSessions(sessions []shared.SessionSummary) string {
	lines := make([]string, 0, len(sessions))
	for _, s := range sessions {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = "Untitled session"
		}
		line := "- " + title
		if len(s.Tags) > 0 {
			line += " (tags: " + strings.Join(s.Tags, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// parseWeekSummary pulls weekSummary out of the completion. Text that holds
// no such object is returned trimmed, with ok false.
func parseWeekSummary(raw string) (string, bool) {
	content := strings.TrimSpace(raw)
	if s, ok := decodeWeekSummary(content); ok {
		return s, true
	}
	if m := weekSummaryObject.FindString(content); m != "" {
		if s, ok := decodeWeekSummary(m); ok {
			return s, true
		}
	}
	return content, false
}

func decodeWeekSummary(s string) (string, bool) {
	var out struct {
		WeekSummary string `json:"weekSummary"`
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return "", false
	}
	summary := strings.TrimSpace(out.WeekSummary)
	return summary, summary != ""
}
