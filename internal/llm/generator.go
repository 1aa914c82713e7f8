package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const ApologyText = "I apologize, but I encountered an error processing your request. Could you please try again or rephrase your question?"

const (
	defaultMaxTokens   = 4000
	defaultTemperature = 0.7
	defaultTimeout     = 60 * time.Second
	helperTemperature  = 0.3
)

// Options tune a single generation; zero values use the generator defaults.
type Options struct {
	MaxTokens   int
	Temperature *float64
}

func Temperature(t float64) *float64 { return &t }

// Generator turns a message window into a reply through one Backend.
type Generator struct {
	backend     Backend
	system      string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

type GeneratorOption func(*Generator)

func WithDefaults(maxTokens int, temperature float64) GeneratorOption {
	return func(g *Generator) {
		if maxTokens > 0 {
			g.maxTokens = maxTokens
		}
		g.temperature = temperature
	}
}

func WithTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

func NewGenerator(backend Backend, systemPrompt string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		backend:     backend,
		system:      systemPrompt,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
		timeout:     defaultTimeout,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Generator) BackendName() string { return g.backend.Name() }

func (g *Generator) request(messages []Message, o Options) Request {
	req := Request{
		System:      g.system,
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}
	if o.MaxTokens > 0 {
		req.MaxTokens = o.MaxTokens
	}
	if o.Temperature != nil {
		req.Temperature = *o.Temperature
	}
	return req
}

func (g *Generator) complete(ctx context.Context, messages []Message, o Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	resp, err := g.backend.Complete(ctx, g.request(messages, o))
	if err != nil {
		return "", err
	}
	g.logger.Debug("generation done",
		zap.String("backend", g.backend.Name()),
		zap.Int("prompt_tokens", resp.PromptTokens),
		zap.Int("completion_tokens", resp.CompletionTokens))
	return resp.Content, nil
}

// Generate never fails: backend errors are logged and replaced by the apology.
func (g *Generator) Generate(ctx context.Context, messages []Message, o Options) string {
	text, err := g.complete(ctx, messages, o)
	if err != nil {
		g.logger.Error("generation failed", zap.String("backend", g.backend.Name()), zap.Error(err))
		return ApologyText
	}
	return text
}

// Stream opens a streaming generation. The caller must Close it.
func (g *Generator) Stream(ctx context.Context, messages []Message, o Options) *Stream {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	reader, err := g.backend.Stream(ctx, g.request(messages, o))
	if err != nil {
		cancel()
		g.logger.Error("stream open failed", zap.String("backend", g.backend.Name()), zap.Error(err))
		return failedStream(err)
	}
	return newStream(reader, cancel, g.logger)
}

// Summarize falls back to the first maxWords words of text when generation
// fails.
func (g *Generator) Summarize(ctx context.Context, text string, maxWords int) string {
	prompt := fmt.Sprintf("Summarize the following text in %d words or less:\n\n%s\n\nSummary:", maxWords, text)
	out, err := g.complete(ctx, []Message{{Role: RoleUser, Content: prompt}}, Options{Temperature: Temperature(helperTemperature)})
	if err != nil {
		g.logger.Warn("summarize failed", zap.Error(err))
		if words := strings.Fields(text); len(words) > maxWords {
			text = strings.Join(words[:maxWords], " ")
		}
		return text + "..."
	}
	return out
}

func (g *Generator) ExtractKeywords(ctx context.Context, text string, n int) []string {
	prompt := fmt.Sprintf("Extract the %d most important keywords from this text.\nReturn only the keywords, comma-separated.\n\nText: %s\n\nKeywords:", n, text)
	out, err := g.complete(ctx, []Message{{Role: RoleUser, Content: prompt}}, Options{Temperature: Temperature(helperTemperature)})
	if err != nil {
		g.logger.Warn("keyword extraction failed", zap.Error(err))
		return nil
	}
	var kws []string
	for _, kw := range strings.Split(out, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	return kws
}
