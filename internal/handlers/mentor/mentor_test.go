package mentor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mentor-api/internal/goodfire"
	"mentor-api/internal/shared"
	"mentor-api/internal/variants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type completeCall struct {
	messages  []shared.ChatMessage
	model     goodfire.ModelRef
	maxTokens int
}

type fakeVendor struct {
	credErr     error
	features    []goodfire.FeatureActivation
	inspectErr  error
	completion  string
	completeErr error

	inspectCalls  int
	completeCalls []completeCall
}

func (f *fakeVendor) CheckCredential() error { return f.credErr }

func (f *fakeVendor) Complete(_ context.Context, messages []shared.ChatMessage, model goodfire.ModelRef, maxTokens int) (string, error) {
	f.completeCalls = append(f.completeCalls, completeCall{messages: messages, model: model, maxTokens: maxTokens})
	return f.completion, f.completeErr
}

func (f *fakeVendor) Inspect(_ context.Context, _ []shared.ChatMessage, _ goodfire.ModelRef) ([]goodfire.FeatureActivation, error) {
	f.inspectCalls++
	return f.features, f.inspectErr
}

func newHandler(t *testing.T, vendor Vendor) (*MentorHandler, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coach.json"),
		[]byte(`{"base_model":"meta-llama/Llama-3.3-70B-Instruct","controller":{"interventions":[]}}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"base_model":`), 0o600))

	h := NewMentorHandler(vendor, variants.NewStore(dir), zap.NewNop().Sugar(), Config{})
	return h, dir
}

func TestProcessText(t *testing.T) {
	vendor := &fakeVendor{completion: "You've got this."}
	h, _ := newHandler(t, vendor)

	out, err := h.ProcessText(context.Background(), ProcessTextInput{InputText: "I'm nervous", Variant: "coach"})
	require.NoError(t, err)
	assert.Equal(t, "You've got this.", out)

	require.Len(t, vendor.completeCalls, 1)
	call := vendor.completeCalls[0]
	assert.Equal(t, []shared.ChatMessage{{Role: "user", Content: "I'm nervous"}}, call.messages)
	assert.Equal(t, "meta-llama/Llama-3.3-70B-Instruct", call.model.ModelID())
	assert.JSONEq(t, `{"interventions":[]}`, string(call.model.ControllerJSON()))
	assert.Equal(t, shared.ProcessTextMaxTokens, call.maxTokens)
}

func TestProcessText_VariantErrors(t *testing.T) {
	vendor := &fakeVendor{completion: "unused"}
	h, dir := newHandler(t, vendor)

	_, err := h.ProcessText(context.Background(), ProcessTextInput{InputText: "hi", Variant: "missing"})
	assert.ErrorIs(t, err, shared.ErrVariantNotFound)
	assert.Contains(t, err.Error(), filepath.Join(dir, "missing.json"))

	_, err = h.ProcessText(context.Background(), ProcessTextInput{InputText: "hi", Variant: "broken"})
	assert.ErrorIs(t, err, shared.ErrMalformedConfig)

	_, err = h.ProcessText(context.Background(), ProcessTextInput{InputText: "hi", Variant: "../coach"})
	assert.ErrorIs(t, err, shared.ErrInvalidVariantName)

	assert.Empty(t, vendor.completeCalls)
}

func TestProcessText_RequiresInput(t *testing.T) {
	vendor := &fakeVendor{}
	h, _ := newHandler(t, vendor)

	_, err := h.ProcessText(context.Background(), ProcessTextInput{InputText: "  ", Variant: "coach"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, vendor.completeCalls)
}

func TestProcessText_UpstreamError(t *testing.T) {
	vendor := &fakeVendor{completeErr: &shared.UpstreamError{StatusCode: 401, Message: "invalid api key"}}
	h, _ := newHandler(t, vendor)

	_, err := h.ProcessText(context.Background(), ProcessTextInput{InputText: "hi", Variant: "coach"})
	assert.ErrorIs(t, err, shared.ErrUpstream)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestMissingCredential_NoVendorCalls(t *testing.T) {
	vendor := &fakeVendor{credErr: shared.ErrMissingCredential}
	h, _ := newHandler(t, vendor)

	_, err := h.ProcessText(context.Background(), ProcessTextInput{InputText: "hi", Variant: "coach"})
	assert.ErrorIs(t, err, shared.ErrMissingCredential)
	assert.Contains(t, err.Error(), shared.GoodfireAPIKeyEnv)

	_, err = h.FeatureExtraction(context.Background(), []shared.ChatMessage{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, shared.ErrMissingCredential)

	_, err = h.GenerateTitle(context.Background(), "<user>hi</user>")
	assert.ErrorIs(t, err, shared.ErrMissingCredential)

	assert.Zero(t, vendor.inspectCalls)
	assert.Empty(t, vendor.completeCalls)
}

func TestMissingCredential_RealClientNoNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := goodfire.NewClient(goodfire.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	h, _ := newHandler(t, client)

	_, err := h.ProcessText(context.Background(), ProcessTextInput{InputText: "hi", Variant: "coach"})
	assert.ErrorIs(t, err, shared.ErrMissingCredential)
	_, err = h.FeatureExtraction(context.Background(), []shared.ChatMessage{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, shared.ErrMissingCredential)

	assert.EqualValues(t, 0, hits.Load())
}

func TestFeatureExtraction(t *testing.T) {
	features := []goodfire.FeatureActivation{
		{Label: "f1", Activation: 9}, {Label: "f2", Activation: 8}, {Label: "f3", Activation: 7},
		{Label: "f4", Activation: 6}, {Label: "f5", Activation: 5}, {Label: "f6", Activation: 4},
		{Label: "f7", Activation: 3},
	}
	vendor := &fakeVendor{features: features, completion: `["anxious", "hopeful"]`}
	h, _ := newHandler(t, vendor)

	out, err := h.FeatureExtraction(context.Background(), []shared.ChatMessage{{Role: "user", Content: "exams soon"}})
	require.NoError(t, err)
	assert.Equal(t, `["anxious", "hopeful"]`, out.Raw)
	assert.Equal(t, []string{"anxious", "hopeful"}, out.Tags)

	assert.Equal(t, 1, vendor.inspectCalls)
	require.Len(t, vendor.completeCalls, 1)
	call := vendor.completeCalls[0]
	assert.Equal(t, shared.DefaultTagModel, call.model.ModelID())
	assert.Equal(t, shared.TagMaxTokens, call.maxTokens)
	require.Len(t, call.messages, 1)
	assert.Equal(t, "user", call.messages[0].Role)

	prompt := call.messages[0].Content
	assert.Equal(t, 5, strings.Count(prompt, "label: "))
	assert.Contains(t, prompt, "label: f1\tactivation: 9\nlabel: f2\tactivation: 8")
	assert.Contains(t, prompt, "label: f5\tactivation: 5")
	assert.NotContains(t, prompt, "label: f6")
}

func TestFeatureExtraction_UnparseableCompletion(t *testing.T) {
	vendor := &fakeVendor{features: []goodfire.FeatureActivation{{Label: "x", Activation: 1}}, completion: "I cannot help with that"}
	h, _ := newHandler(t, vendor)

	out, err := h.FeatureExtraction(context.Background(), []shared.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "I cannot help with that", out.Raw)
	assert.NotNil(t, out.Tags)
}

func TestFeatureExtraction_Errors(t *testing.T) {
	vendor := &fakeVendor{inspectErr: errors.Join(shared.ErrUpstream, errors.New("connection reset"))}
	h, _ := newHandler(t, vendor)

	_, err := h.FeatureExtraction(context.Background(), nil)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Zero(t, vendor.inspectCalls)

	_, err = h.FeatureExtraction(context.Background(), []shared.ChatMessage{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, shared.ErrUpstream)
	assert.Empty(t, vendor.completeCalls)
}

func TestGenerateTags(t *testing.T) {
	vendor := &fakeVendor{features: []goodfire.FeatureActivation{{Label: "x", Activation: 1}}, completion: "calm, curious"}
	h, _ := newHandler(t, vendor)

	got, err := h.GenerateTags(context.Background(), "<mentor>hey</mentor><user>hello</user>")
	require.NoError(t, err)
	assert.Equal(t, []string{"calm", "curious"}, got)

	got, err = h.GenerateTags(context.Background(), "no user turns")
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, got)
	assert.Equal(t, 1, vendor.inspectCalls)
}

func TestGenerateTitle(t *testing.T) {
	vendor := &fakeVendor{completion: `  "Exam Stress Check-in"  `}
	h, _ := newHandler(t, vendor)

	title, err := h.GenerateTitle(context.Background(), "<user>exams</user>")
	require.NoError(t, err)
	assert.Equal(t, "Exam Stress Check-in", title)

	require.Len(t, vendor.completeCalls, 1)
	call := vendor.completeCalls[0]
	require.Len(t, call.messages, 2)
	assert.Equal(t, "system", call.messages[0].Role)
	assert.Equal(t, shared.TitleMaxTokens, call.maxTokens)

	_, err = h.GenerateTitle(context.Background(), "")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Weekly Wins", cleanTitle(`"Weekly Wins"`))
	assert.Equal(t, "Weekly Wins", cleanTitle(`'Weekly Wins'`))
	assert.Equal(t, `"Unbalanced`, cleanTitle(`"Unbalanced`))
	assert.Equal(t, `"`, cleanTitle(`"`))
}

type slowLoader struct{}

func (slowLoader) Load(ctx context.Context, _ string) (*variants.Variant, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowLoader) List(_ context.Context) ([]string, error) {
	return nil, nil
}

func TestListVariants(t *testing.T) {
	h, _ := newHandler(t, &fakeVendor{})
	names, err := h.ListVariants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"broken", "coach"}, names)
}

func TestProcessText_Timeout(t *testing.T) {
	vendor := &fakeVendor{}
	h := NewMentorHandler(vendor, slowLoader{}, zap.NewNop().Sugar(), Config{RequestTimeout: 20 * time.Millisecond})

	_, err := h.ProcessText(context.Background(), ProcessTextInput{InputText: "hi", Variant: "coach"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, vendor.completeCalls)
}

func TestWeeklySummary(t *testing.T) {
	vendor := &fakeVendor{completion: `{"weekSummary": "You worked through exam stress and found calm."}`}
	h, _ := newHandler(t, vendor)

	got, err := h.WeeklySummary(context.Background(), []shared.SessionSummary{
		{Title: "Exam Week Nerves", Tags: []string{"anxious", "hopeful"}},
		{Title: "", Tags: nil},
	})
	require.NoError(t, err)
	assert.Equal(t, "You worked through exam stress and found calm.", got)

	require.Len(t, vendor.completeCalls, 1)
	call := vendor.completeCalls[0]
	assert.Equal(t, shared.SummaryMaxTokens, call.maxTokens)
	assert.Equal(t, shared.DefaultTagModel, call.model.ModelID())
	require.Len(t, call.messages, 2)
	assert.Equal(t, "system", call.messages[0].Role)
	assert.Contains(t, call.messages[0].Content, `{"weekSummary"`)
	assert.True(t, strings.HasSuffix(call.messages[1].Content,
		"- Exam Week Nerves (tags: anxious, hopeful)\n- Untitled session"))
}

func TestWeeklySummary_RawTextFallback(t *testing.T) {
	vendor := &fakeVendor{completion: "  You had a reflective week.  "}
	h, _ := newHandler(t, vendor)

	got, err := h.WeeklySummary(context.Background(), []shared.SessionSummary{{Title: "Check-in"}})
	require.NoError(t, err)
	assert.Equal(t, "You had a reflective week.", got)
}

func TestWeeklySummary_NoSessions(t *testing.T) {
	vendor := &fakeVendor{credErr: shared.ErrMissingCredential}
	h, _ := newHandler(t, vendor)

	for _, sessions := range [][]shared.SessionSummary{nil, {}} {
		got, err := h.WeeklySummary(context.Background(), sessions)
		require.NoError(t, err)
		assert.Equal(t, NoSessionsSummary, got)
	}
	assert.Empty(t, vendor.completeCalls)
}

func TestWeeklySummary_Errors(t *testing.T) {
	sessions := []shared.SessionSummary{{Title: "Check-in"}}

	h, _ := newHandler(t, &fakeVendor{credErr: shared.ErrMissingCredential})
	_, err := h.WeeklySummary(context.Background(), sessions)
	assert.ErrorIs(t, err, shared.ErrMissingCredential)

	h, _ = newHandler(t, &fakeVendor{completeErr: &shared.UpstreamError{StatusCode: 502, Message: "bad gateway"}})
	_, err = h.WeeklySummary(context.Background(), sessions)
	assert.ErrorIs(t, err, shared.ErrUpstream)
}

func TestParseWeekSummary(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"json", `{"weekSummary":"Steady progress."}`, "Steady progress.", true},
		{"embedded", "Here it is:\n```json\n{\"weekSummary\": \"Steady progress.\"}\n```", "Steady progress.", true},
		{"plain text", " Steady progress. ", "Steady progress.", false},
		{"empty field", `{"weekSummary":""}`, `{"weekSummary":""}`, false},
		{"other object", `{"summary":"x"}`, `{"summary":"x"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseWeekSummary(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
