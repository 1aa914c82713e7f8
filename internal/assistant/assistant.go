// Package assistant wires the per-turn pipeline: classify, route, log,
// assemble context, generate, log, persist.
package assistant

import (
	"context"
	"time"

	"go.uber.org/zap"

	"jarvis/internal/analytics"
	"jarvis/internal/intent"
	"jarvis/internal/llm"
	"jarvis/internal/logging"
	"jarvis/internal/memory"
	"jarvis/internal/skills"
	"jarvis/internal/storage"
)

const (
	ChannelCLI      = "cli"
	ChannelWeb      = "web"
	ChannelTelegram = "telegram"
	ChannelMCP      = "mcp"
)

const defaultContextBudget = 2000

// Deps are the collaborators shared by every session. Memory and Recorder
// may be nil.
type Deps struct {
	Classifier       *intent.Classifier
	Router           *skills.Router
	Generator        *llm.Generator
	Memory           *memory.Gateway
	Recorder         storage.Recorder
	ConversationsDir string
	ContextBudget    int
	UserName         string
	Now              func() time.Time
	Logger           *zap.Logger
}

// Assistant holds the shared, stateless side of the pipeline.
type Assistant struct {
	classifier *intent.Classifier
	router     *skills.Router
	generator  *llm.Generator
	memory     *memory.Gateway
	recorder   storage.Recorder
	convDir    string
	budget     int
	userName   string
	now        func() time.Time
	logger     *zap.Logger
}

func New(d Deps) *Assistant {
	a := &Assistant{
		classifier: d.Classifier,
		router:     d.Router,
		generator:  d.Generator,
		memory:     d.Memory,
		recorder:   d.Recorder,
		convDir:    d.ConversationsDir,
		budget:     d.ContextBudget,
		userName:   d.UserName,
		now:        d.Now,
		logger:     logging.OrNop(d.Logger),
	}
	if a.classifier == nil {
		a.classifier = intent.New()
	}
	if a.router == nil {
		a.router = skills.NewRouter(a.logger)
	}
	if a.recorder == nil {
		a.recorder = storage.Nop{}
	}
	if a.budget <= 0 {
		a.budget = defaultContextBudget
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

func (a *Assistant) Router() *skills.Router  { return a.router }
func (a *Assistant) Memory() *memory.Gateway { return a.memory }
func (a *Assistant) ConversationsDir() string {
	return a.convDir
}

// MemoryStats reports the gateway statistics, or zero stats when no
// memory is configured.
func (a *Assistant) MemoryStats(ctx context.Context) (memory.Stats, error) {
	if a.memory == nil {
		return memory.Stats{ByType: map[string]int{}}, nil
	}
	return a.memory.Stats(ctx)
}

// DailyStats aggregates the recorded interactions of the given day.
func (a *Assistant) DailyStats(day time.Time) (*analytics.DailyStats, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	events, err := a.recorder.LoadSince(start)
	if err != nil {
		return nil, err
	}
	return analytics.AnalyzeDaily(events, day), nil
}
