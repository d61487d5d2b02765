package agents

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/caldway/tradehelm/internal/config"
	"github.com/caldway/tradehelm/internal/tools"
)

const (
	maxAgentSteps  = 40
	maxModelTokens = 4096
)

// Deps carries what a reasoning stage needs: configuration, the
// run's toolset, and the chat model. A nil Model selects the
// deterministic offline reasoner for every stage.
type Deps struct {
	Cfg   *config.Config
	Tools *tools.Toolset
	Model model.ToolCallingChatModel
}

// NewChatModel builds the tool-calling model for the configured
// provider. DeepSeek uses its own endpoint; everything else goes
// through the OpenAI-compatible client.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	switch cfg.LLMProvider {
	case "deepseek":
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: maxModelTokens,
		})
	default:
		maxTokens := maxModelTokens
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: &maxTokens,
		})
	}
}

// ToolCallChecker tells the react agent whether a streamed response
// is heading into a tool call.
func ToolCallChecker(ctx context.Context, sr *schema.StreamReader[*schema.Message]) (bool, error) {
	defer sr.Close()
	for {
		msg, err := sr.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		if len(msg.ToolCalls) > 0 {
			return true, nil
		}
	}
}
