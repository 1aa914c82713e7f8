package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

type AnthropicBackend struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string, opts ...option.RequestOption) *AnthropicBackend {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicBackend{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (c *AnthropicBackend) Name() string { return "anthropic/" + c.model }

// params moves the persona and any system-role messages into the
// dedicated system field; the API accepts only user and assistant turns.
func (c *AnthropicBackend) params(req Request) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	if req.System != "" {
		system = append(system, anthropic.TextBlockParam{Text: req.System})
	}
	var msgs []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	p := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		Messages:    msgs,
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}
	if len(system) > 0 {
		p.System = system
	}
	return p
}

func (c *AnthropicBackend) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.client.Messages.New(ctx, c.params(req))
	if err != nil {
		return Response{}, fmt.Errorf("anthropic api error: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return Response{
		Content:          sb.String(),
		Model:            string(resp.Model),
		PromptTokens:     in,
		CompletionTokens: out,
		TotalTokens:      in + out,
	}, nil
}

func (c *AnthropicBackend) Stream(ctx context.Context, req Request) (FragmentReader, error) {
	return &anthropicFragments{stream: c.client.Messages.NewStreaming(ctx, c.params(req))}, nil
}

type anthropicFragments struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

func (a *anthropicFragments) Recv() (string, error) {
	for a.stream.Next() {
		ev, ok := a.stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && d.Text != "" {
			return d.Text, nil
		}
	}
	if err := a.stream.Err(); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("anthropic stream: %w", err)
	}
	return "", io.EOF
}

func (a *anthropicFragments) Close() error { return a.stream.Close() }
