package mentor

import (
	"context"
	"fmt"
	"strings"

	"mentor-api/internal/shared"
)

type ProcessTextInput struct {
	InputText string
	Variant   string
}

// ProcessText completes the user's text with the named variant as the model.
// The variant is resolved before the credential is checked.
func (h *MentorHandler) ProcessText(ctx context.Context, input ProcessTextInput) (string, error) {
	if strings.TrimSpace(input.InputText) == "" {
		return "", fmt.Errorf("%w: input_text is required", shared.ErrValidation)
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	variant, err := h.Variants.Load(ctx, input.Variant)
	if err != nil {
		return "", err
	}
	if err := h.Vendor.CheckCredential(); err != nil {
		return "", err
	}

	messages := []shared.ChatMessage{{Role: "user", Content: input.InputText}}
	out, err := h.Vendor.Complete(ctx, messages, variant, shared.ProcessTextMaxTokens)
	if err != nil {
		return "", err
	}
	h.Log.Debugw("Processed text", "variant", variant.Name, "base_model", variant.BaseModel)
	return out, nil
}
