package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Morwran/yagpt"
)

type YandexBackend struct {
	ya       yagpt.YaGPTFace
	iamToken string
}

func NewYandex(oauthToken, folderID string) (*YandexBackend, error) {
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	resp, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create iam token: %w", err)
	}

	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	return &YandexBackend{
		ya:       ya,
		iamToken: resp.IamToken,
	}, nil
}

func (c *YandexBackend) Name() string { return "yandex/" + yagpt.YaModelLite }

// Complete sends the persona as a leading system message. The client has
// no knobs for max tokens or temperature, so those are left to the service.
func (c *YandexBackend) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]yagpt.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, yagpt.Message{Role: RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, yagpt.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := c.ya.CompletionWithCtx(ctx, c.iamToken, messages)
	if err != nil {
		return Response{}, fmt.Errorf("yagpt completion failed: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return Response{}, errors.New("yagpt returned empty response")
	}
	out := Response{Content: resp.Alternatives[0].Message.Content, Model: yagpt.YaModelLite}
	out.PromptTokens = int(resp.Usage.InputTextTokens)
	out.CompletionTokens = int(resp.Usage.CompletionTokens)
	out.TotalTokens = int(resp.Usage.TotalTokens)
	return out, nil
}

func (c *YandexBackend) Stream(ctx context.Context, req Request) (FragmentReader, error) {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return &singleFragment{text: resp.Content}, nil
}
