package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/config"
)

func TestOpenAIComplete(t *testing.T) {
	var body struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"Hi there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`)
	}))
	defer srv.Close()

	b := NewOpenAI("k", srv.URL+"/v1", "gpt-test")
	resp, err := b.Complete(context.Background(), Request{
		System:   "persona",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Content)
	assert.Equal(t, 7, resp.TotalTokens)
	assert.Equal(t, "gpt-test", body.Model)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, Message{Role: RoleSystem, Content: "persona"}, body.Messages[0])
}

func TestOpenAIStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range []string{"Hel", "", "lo"} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", frag)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	r, err := NewOpenAI("k", srv.URL+"/v1", "gpt-test").Stream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	defer r.Close()

	var got []string
	for {
		frag, err := r.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, frag)
	}
	assert.Equal(t, []string{"Hel", "lo"}, got)
}

func TestAnthropicComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[{"type":"text","text":"Good evening."}],"stop_reason":"end_turn","usage":{"input_tokens":9,"output_tokens":3}}`)
	}))
	defer srv.Close()

	b := NewAnthropic("k", "claude-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := b.Complete(context.Background(), Request{
		System:    "persona",
		MaxTokens: 100,
		Messages: []Message{
			{Role: RoleSystem, Content: "Skill result: 2 = 2"},
			{Role: RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Good evening.", resp.Content)
	assert.Equal(t, 12, resp.TotalTokens)

	system, ok := body["system"].([]any)
	require.True(t, ok)
	assert.Len(t, system, 2)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestAnthropicStream(t *testing.T) {
	events := []string{
		`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"usage":{"input_tokens":1,"output_tokens":0}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Good "}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"evening."}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_stop"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			var head struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal([]byte(e), &head)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", head.Type, e)
		}
	}))
	defer srv.Close()

	b := NewAnthropic("k", "claude-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	r, err := b.Stream(context.Background(), Request{MaxTokens: 10, Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	defer r.Close()

	var sb strings.Builder
	for {
		frag, err := r.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sb.WriteString(frag)
	}
	assert.Equal(t, "Good evening.", sb.String())
}

func TestSingleFragment(t *testing.T) {
	r := &singleFragment{text: "whole reply"}
	s, err := r.Recv()
	require.NoError(t, err)
	assert.Equal(t, "whole reply", s)
	_, err = r.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestFactoryUnknownProvider(t *testing.T) {
	f := NewFactory(&config.Config{OpenAIAPIKey: "k"})
	_, err := f.CreateBackend("palm", "x")
	assert.Error(t, err)

	b, err := f.CreateBackend(config.ProviderOpenAI, "gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4", b.Name())

	b, err = f.CreateBackend(config.ProviderAnthropic, "claude-3")
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3", b.Name())
}
