package unifiedllm

import (
	"context"
	"sync"
)

// GenerateOptions configures a high-level Generate call.
type GenerateOptions struct {
	Model    string    // logical model name, used when ChatModel is nil
	Prompt   string    // simple text prompt (mutually exclusive with Messages)
	Messages []Message // full conversation (mutually exclusive with Prompt)
	System   string

	Temperature     *float64
	MaxTokens       *int
	ProviderOptions map[string]interface{}

	// ChatModel reuses an existing model. When nil, one is built with
	// NewModel(Model, ModelOptions...).
	ChatModel    *ChatModel
	ModelOptions []ModelOption
}

// Generate is the high-level blocking generation function. It standardizes
// the prompt into messages and runs one ChatModel.Query.
func Generate(ctx context.Context, opts GenerateOptions) (*QueryResult, error) {
	model, messages, overrides, err := prepareGenerate(opts)
	if err != nil {
		return nil, err
	}
	return model.Query(ctx, messages, overrides)
}

// BatchResult holds the outcome of one prompt in GenerateBatch.
type BatchResult struct {
	Prompt string
	Result *QueryResult
	Err    error
}

// GenerateBatch runs one query per prompt concurrently against a single
// model. opts.Prompt and opts.Messages are ignored. Results keep the order of
// prompts.
func GenerateBatch(ctx context.Context, opts GenerateOptions, prompts []string) ([]BatchResult, error) {
	opts.Prompt, opts.Messages = "", nil
	model, _, overrides, err := prepareGenerate(opts)
	if err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(prompts))
	var wg sync.WaitGroup

	for i, prompt := range prompts {
		wg.Add(1)
		go func(idx int, p string) {
			defer wg.Done()

			messages := []Message{UserMessage(p)}
			if opts.System != "" {
				messages = append([]Message{SystemMessage(opts.System)}, messages...)
			}
			res, err := model.Query(ctx, messages, overrides)
			results[idx] = BatchResult{Prompt: p, Result: res, Err: err}
		}(i, prompt)
	}

	wg.Wait()
	return results, nil
}

func prepareGenerate(opts GenerateOptions) (*ChatModel, []Message, map[string]interface{}, error) {
	// Validate mutually exclusive options.
	if opts.Prompt != "" && len(opts.Messages) > 0 {
		return nil, nil, nil, &ConfigurationError{SDKError: SDKError{
			Message: "cannot specify both prompt and messages",
		}}
	}

	model := opts.ChatModel
	if model == nil {
		if opts.Model == "" {
			return nil, nil, nil, &ConfigurationError{
				SDKError: SDKError{Message: "no model specified"},
				Field:    "model_name",
			}
		}
		var err error
		model, err = NewModel(opts.Model, opts.ModelOptions...)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	// Build initial messages.
	messages := opts.Messages
	if opts.Prompt != "" {
		messages = []Message{UserMessage(opts.Prompt)}
	}
	if opts.System != "" {
		messages = append([]Message{SystemMessage(opts.System)}, messages...)
	}

	overrides := make(map[string]interface{}, len(opts.ProviderOptions)+2)
	for k, v := range opts.ProviderOptions {
		overrides[k] = v
	}
	if opts.Temperature != nil {
		overrides["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		overrides["max_tokens"] = *opts.MaxTokens
	}

	return model, messages, overrides, nil
}
