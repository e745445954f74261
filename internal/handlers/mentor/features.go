package mentor

import (
	"context"
	"fmt"

	"mentor-api/internal/goodfire"
	"mentor-api/internal/metrics"
	"mentor-api/internal/shared"
	"mentor-api/internal/tags"
)

type FeatureExtractionOutput struct {
	// Raw is the unmodified completion text.
	Raw  string
	Tags []string
}

// FeatureExtraction inspects the conversation, feeds the strongest features
// to the tone classifier prompt and returns its answer along with the parsed
// tags. A completion that does not parse yields an empty tag list, not an
// error.
func (h *MentorHandler) FeatureExtraction(ctx context.Context, messages []shared.ChatMessage) (*FeatureExtractionOutput, error) {
	if err := h.Vendor.CheckCredential(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: user_messages is required", shared.ErrValidation)
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	features, err := h.Vendor.Inspect(ctx, messages, h.tagModel)
	if err != nil {
		return nil, err
	}
	top := goodfire.TopK(features, shared.TopFeatures)

	prompt := tags.BuildPrompt(top)
	raw, err := h.Vendor.Complete(ctx, []shared.ChatMessage{{Role: "user", Content: prompt}}, h.tagModel, shared.TagMaxTokens)
	if err != nil {
		return nil, err
	}

	parsed, perr := tags.ParseTags(raw)
	if perr != nil {
		metrics.TagsParsed.WithLabelValues("fallback").Inc()
		h.Log.Warnw("Failed to parse tags from completion", "error", perr.Error(), "features", len(top))
	} else {
		metrics.TagsParsed.WithLabelValues("ok").Inc()
	}

	return &FeatureExtractionOutput{Raw: raw, Tags: parsed}, nil
}

// GenerateTags pulls the user turns out of a tagged transcript and runs them
// through FeatureExtraction.
func (h *MentorHandler) GenerateTags(ctx context.Context, transcript string) ([]string, error) {
	messages := tags.ExtractUserMessages(transcript)
	if len(messages) == 0 {
		return []string{}, fmt.Errorf("%w: %w", shared.ErrValidation, tags.ErrNoUserMessages)
	}
	out, err := h.FeatureExtraction(ctx, messages)
	if err != nil {
		return []string{}, err
	}
	return out.Tags, nil
}
