package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"jarvis/internal/assistant"
	"jarvis/internal/logging"
	"jarvis/internal/skills"
)

type CalculateParams struct {
	Expression string `json:"expression" mcp:"arithmetic expression, e.g. '25 * 4 + 10' or 'sqrt(16)'"`
}

type RememberParams struct {
	Content    string `json:"content" mcp:"text to remember"`
	MemoryType string `json:"memory_type,omitempty" mcp:"fact (default) or preference"`
}

type RecallParams struct {
	Query      string `json:"query" mcp:"what to look for"`
	NResults   int    `json:"n_results,omitempty" mcp:"maximum number of memories (default 5)"`
	MemoryType string `json:"memory_type,omitempty" mcp:"restrict to fact, preference or conversation"`
}

type CreateReminderParams struct {
	Message string `json:"message" mcp:"what to be reminded about"`
	TimeStr string `json:"time_str" mcp:"when: 'in 10 minutes', 'tomorrow at 3pm', 'at 17:30'"`
}

type ListRemindersParams struct {
	Status string `json:"status,omitempty" mcp:"pending, completed or all (default)"`
}

type DeleteReminderParams struct {
	ReminderID string `json:"reminder_id" mcp:"id returned when the reminder was created"`
}

type WeatherParams struct {
	Location string `json:"location,omitempty" mcp:"city name (default DEFAULT_LOCATION)"`
}

type NewsParams struct {
	Query    string `json:"query,omitempty" mcp:"free-text topic; empty for top headlines"`
	Category string `json:"category,omitempty" mcp:"headline category, e.g. technology"`
}

type SearchParams struct {
	Query string `json:"query" mcp:"web search query"`
}

type EmptyParams struct{}

// JarvisTools exposes the capability router as MCP tools.
type JarvisTools struct {
	router *skills.Router
	logger *zap.Logger
}

func NewJarvisTools(router *skills.Router, logger *zap.Logger) *JarvisTools {
	return &JarvisTools{router: router, logger: logging.OrNop(logger)}
}

// Register adds every tool to the server.
func (t *JarvisTools) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jarvis_calculate",
		Description: "Evaluates an arithmetic expression safely",
	}, t.Calculate)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jarvis_remember",
		Description: "Stores a fact or preference in JARVIS long-term memory",
	}, t.Remember)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jarvis_recall",
		Description: "Searches JARVIS long-term memory",
	}, t.Recall)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jarvis_memory_stats",
		Description: "Reports how many memories JARVIS holds, by type",
	}, t.MemoryStats)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jarvis_create_reminder",
		Description: "Creates a reminder from a natural time expression",
	}, t.CreateReminder)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jarvis_list_reminders",
		Description: "Lists reminders",
	}, t.ListReminders)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jarvis_delete_reminder",
		Description: "Deletes a reminder by id",
	}, t.DeleteReminder)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jarvis_weather",
		Description: "Current weather for a location",
	}, t.Weather)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jarvis_news",
		Description: "Top headlines or news on a topic",
	}, t.News)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jarvis_search",
		Description: "Web search with provider fallback",
	}, t.Search)
}

func (t *JarvisTools) Calculate(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[CalculateParams]) (*mcp.CallToolResultFor[any], error) {
	return t.invoke(ctx, skills.NameCalculator, skills.Params{"expression": params.Arguments.Expression}), nil
}

func (t *JarvisTools) Remember(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[RememberParams]) (*mcp.CallToolResultFor[any], error) {
	p := skills.Params{"action": "store", "content": params.Arguments.Content}
	if params.Arguments.MemoryType != "" {
		p["memory_type"] = params.Arguments.MemoryType
	}
	return t.invoke(ctx, skills.NameMemory, p), nil
}

func (t *JarvisTools) Recall(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[RecallParams]) (*mcp.CallToolResultFor[any], error) {
	p := skills.Params{"action": "retrieve", "query": params.Arguments.Query}
	if params.Arguments.NResults > 0 {
		p["n_results"] = strconv.Itoa(params.Arguments.NResults)
	}
	if params.Arguments.MemoryType != "" {
		p["memory_type"] = params.Arguments.MemoryType
	}
	return t.invoke(ctx, skills.NameMemory, p), nil
}

func (t *JarvisTools) MemoryStats(ctx context.Context, _ *mcp.ServerSession, _ *mcp.CallToolParamsFor[EmptyParams]) (*mcp.CallToolResultFor[any], error) {
	return t.invoke(ctx, skills.NameMemory, skills.Params{"action": "stats"}), nil
}

func (t *JarvisTools) CreateReminder(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[CreateReminderParams]) (*mcp.CallToolResultFor[any], error) {
	return t.invoke(ctx, skills.NameSchedule, skills.Params{
		"action":   "create",
		"message":  params.Arguments.Message,
		"time_str": params.Arguments.TimeStr,
	}), nil
}

func (t *JarvisTools) ListReminders(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ListRemindersParams]) (*mcp.CallToolResultFor[any], error) {
	p := skills.Params{"action": "list"}
	if params.Arguments.Status != "" {
		p["status"] = params.Arguments.Status
	}
	return t.invoke(ctx, skills.NameSchedule, p), nil
}

func (t *JarvisTools) DeleteReminder(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[DeleteReminderParams]) (*mcp.CallToolResultFor[any], error) {
	return t.invoke(ctx, skills.NameSchedule, skills.Params{"action": "delete", "reminder_id": params.Arguments.ReminderID}), nil
}

func (t *JarvisTools) Weather(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[WeatherParams]) (*mcp.CallToolResultFor[any], error) {
	p := skills.Params{}
	if params.Arguments.Location != "" {
		p["location"] = params.Arguments.Location
	}
	return t.invoke(ctx, skills.NameWeather, p), nil
}

func (t *JarvisTools) News(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[NewsParams]) (*mcp.CallToolResultFor[any], error) {
	p := skills.Params{}
	if params.Arguments.Query != "" {
		p["query"] = params.Arguments.Query
	}
	if params.Arguments.Category != "" {
		p["category"] = params.Arguments.Category
	}
	return t.invoke(ctx, skills.NameNews, p), nil
}

func (t *JarvisTools) Search(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SearchParams]) (*mcp.CallToolResultFor[any], error) {
	return t.invoke(ctx, skills.NameSearch, skills.Params{"query": params.Arguments.Query}), nil
}

// invoke runs the named capability and renders its result as tool text.
// Capability failures are tool errors, never protocol errors.
func (t *JarvisTools) invoke(ctx context.Context, name string, p skills.Params) *mcp.CallToolResultFor[any] {
	t.logger.Info("mcp tool call", zap.String("capability", name))
	res, found := t.router.Invoke(skills.WithOwner(ctx, assistant.ChannelMCP), name, p)
	if !found {
		return errorResult(fmt.Sprintf("capability %s is not enabled", name))
	}
	if !res.Success {
		return errorResult(res.Error)
	}

	text := res.Message
	if res.Data != nil {
		if b, err := json.MarshalIndent(res.Data, "", "  "); err == nil {
			text += "\n" + string(b)
		}
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(msg string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
