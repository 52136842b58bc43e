package briefing

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-briefing/internal/metrics"
	"github.com/sells-group/deal-briefing/internal/model"
	"github.com/sells-group/deal-briefing/pkg/anthropic"
)

// DefaultMaxTokens caps the model response.
const DefaultMaxTokens = 8192

// Prioritization is the engine output for one run.
type Prioritization struct {
	Result   model.PriorityResult
	Usage    model.Usage
	Warnings []string
}

// Prioritizer ranks enriched deals.
type Prioritizer interface {
	Prioritize(ctx context.Context, contexts []model.DealContext) (*Prioritization, error)
}

// Engine ranks deals with a single structured-output model call.
type Engine struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	prompt    Prompt
}

// NewEngine creates an Engine. The client should be built with SDK retries
// disabled: the call is expensive and not idempotent.
func NewEngine(client anthropic.Client, modelID string, maxTokens int64, prompt Prompt) *Engine {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Engine{client: client, model: modelID, maxTokens: maxTokens, prompt: prompt}
}

// Prioritize sends every context in one request and returns the validated,
// densely ranked result. A failed request is a model_call Failure; a
// payload that cannot be normalized or validated is a model_response
// Failure.
func (e *Engine) Prioritize(ctx context.Context, contexts []model.DealContext) (*Prioritization, error) {
	if len(contexts) == 0 {
		return &Prioritization{Result: model.PriorityResult{Deals: []model.DealPriority{}}}, nil
	}

	tool, err := priorityTool()
	if err != nil {
		return nil, newFailure(KindModelResponse, "anthropic", err)
	}

	log := zap.L().With(zap.String("model", e.model), zap.Int("deals", len(contexts)))
	log.Info("requesting deal prioritization")

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: e.prompt.System(), CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages:   []anthropic.Message{{Role: "user", Content: e.prompt.User(contexts)}},
		Tools:      []anthropic.Tool{tool},
		ToolChoice: PriorityToolName,
	})
	if err != nil {
		return nil, newFailure(KindModelCall, "anthropic", err)
	}

	resp.Usage.LogCost(e.model, "prioritize")
	metrics.ObserveTokens(e.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	usage := model.Usage{
		Model:            e.model,
		InputTokens:      resp.Usage.InputTokens,
		OutputTokens:     resp.Usage.OutputTokens,
		EstimatedCostUSD: resp.Usage.EstimateCost(e.model),
	}

	if resp.StopReason == "max_tokens" {
		return nil, newFailure(KindModelResponse, "anthropic",
			eris.Errorf("briefing: response truncated at %d tokens", e.maxTokens))
	}

	payload, ok := resp.ToolInput(PriorityToolName)
	if !ok {
		text := resp.Text()
		if text == "" {
			return nil, newFailure(KindModelResponse, "anthropic", eris.New("briefing: response has no tool call or text"))
		}
		log.Warn("model answered in text instead of the tool call")
		payload = []byte(text)
	}

	result, err := DecodePriorities(payload)
	if err != nil {
		return nil, newFailure(KindModelResponse, "anthropic", err)
	}

	submitted := make([]int64, len(contexts))
	for i, c := range contexts {
		submitted[i] = c.DealID
	}
	ranked, warnings := ApplyRankPolicy(result.Deals, submitted)
	for _, w := range warnings {
		log.Warn("ranking repaired", zap.String("detail", w))
	}

	return &Prioritization{
		Result:   model.PriorityResult{Deals: ranked},
		Usage:    usage,
		Warnings: warnings,
	}, nil
}
