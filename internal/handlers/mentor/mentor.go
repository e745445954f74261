// Package mentor orchestrates the text endpoints: variant completions, tone
// tags from feature activations, conversation titles and weekly summaries.
package mentor

import (
	"context"
	"time"

	"mentor-api/internal/goodfire"
	"mentor-api/internal/shared"
	"mentor-api/internal/variants"

	"go.uber.org/zap"
)

// Vendor is the subset of the goodfire client the handler depends on.
type Vendor interface {
	CheckCredential() error
	Complete(ctx context.Context, messages []shared.ChatMessage, model goodfire.ModelRef, maxTokens int) (string, error)
	Inspect(ctx context.Context, messages []shared.ChatMessage, model goodfire.ModelRef) ([]goodfire.FeatureActivation, error)
}

type VariantStore interface {
	Load(ctx context.Context, name string) (*variants.Variant, error)
	List(ctx context.Context) ([]string, error)
}

type Config struct {
	TagModel       string
	RequestTimeout time.Duration
}

type MentorHandler struct {
	Vendor   Vendor
	Variants VariantStore
	Log      *zap.SugaredLogger
	tagModel goodfire.Model
	timeout  time.Duration
}

func NewMentorHandler(vendor Vendor, store VariantStore, log *zap.SugaredLogger, cfg Config) *MentorHandler {
	tagModel := cfg.TagModel
	if tagModel == "" {
		tagModel = shared.DefaultTagModel
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = shared.DefaultRequestTimeout
	}
	return &MentorHandler{
		Vendor:   vendor,
		Variants: store,
		Log:      log,
		tagModel: goodfire.Model(tagModel),
		timeout:  timeout,
	}
}

func (h *MentorHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.timeout)
}

// ListVariants returns the names of the variants that can be requested.
func (h *MentorHandler) ListVariants(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.Variants.List(ctx)
}
