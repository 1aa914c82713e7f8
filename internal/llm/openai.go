package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAIBackend {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *OpenAIBackend) Name() string { return "openai/" + c.model }

func (c *OpenAIBackend) request(req Request) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
}

func (c *OpenAIBackend) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(req))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("openai returned no choices")
	}
	return Response{
		Content:          resp.Choices[0].Message.Content,
		Model:            c.model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (c *OpenAIBackend) Stream(ctx context.Context, req Request) (FragmentReader, error) {
	r := c.request(req)
	r.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat completion stream: %w", err)
	}
	return &openAIFragments{stream: stream}, nil
}

type openAIFragments struct {
	stream *openai.ChatCompletionStream
}

func (o *openAIFragments) Recv() (string, error) {
	for {
		chunk, err := o.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("openai stream: %w", err)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
}

func (o *openAIFragments) Close() error { return o.stream.Close() }
