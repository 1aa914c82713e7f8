package skills

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"jarvis/internal/intent"
	"jarvis/internal/memory"
)

const NameMemory = "memory"

// MemoryGateway is the part of memory.Gateway the memory skill needs.
type MemoryGateway interface {
	Store(ctx context.Context, content string, metadata map[string]string, memType string) (string, error)
	Query(ctx context.Context, text string, k int, memType string) ([]memory.Hit, error)
	Stats(ctx context.Context) (memory.Stats, error)
}

type MemorySkill struct {
	gw MemoryGateway
}

func NewMemorySkill(gw MemoryGateway) *MemorySkill { return &MemorySkill{gw: gw} }

func (s *MemorySkill) Name() string     { return NameMemory }
func (s *MemorySkill) Describe() string { return "Handles memory storage and retrieval" }

func (s *MemorySkill) IsEligible(in intent.Result) bool {
	return in.Has(intent.Remember) || in.Has(intent.Recall)
}

var (
	rememberLeadIn = regexp.MustCompile(`(?i)^\s*(please\s+)?(remember|note|keep in mind|don't forget|save|store)\b\s*((that|this)\b)?\s*:?\s*`)
	recallLeadIn   = regexp.MustCompile(`(?i)^\s*(what do you (know|remember) about|what did i (say|tell you) about|do you remember|recall)\s*`)
	preferenceRe   = regexp.MustCompile(`(?i)\b(like|likes|love|loves|prefer|prefers|favou?rite|enjoy|enjoys|hate|hates|dislike|dislikes)\b`)
)

func (s *MemorySkill) ParametersFrom(text string, in intent.Result) Params {
	if in.Has(intent.Recall) {
		q := strings.TrimRight(strings.TrimSpace(recallLeadIn.ReplaceAllString(text, "")), "?.! ")
		if q == "" {
			q = text
		}
		return Params{"action": "retrieve", "query": q}
	}
	content := strings.TrimSpace(rememberLeadIn.ReplaceAllString(text, ""))
	if content == "" {
		content = strings.TrimSpace(text)
	}
	memType := memory.TypeFact
	if preferenceRe.MatchString(content) {
		memType = memory.TypePreference
	}
	return Params{"action": "store", "content": content, "memory_type": memType}
}

func (s *MemorySkill) Invoke(ctx context.Context, p Params) Result {
	switch action := p.Get("action", "store"); action {
	case "store":
		return s.store(ctx, p)
	case "retrieve":
		return s.retrieve(ctx, p)
	case "stats":
		st, err := s.gw.Stats(ctx)
		if err != nil {
			return fail(NameMemory, fmt.Sprintf("Failed to get memory stats: %v", err))
		}
		return ok(NameMemory, st, "Memory statistics retrieved")
	default:
		return fail(NameMemory, "Unknown action: "+action)
	}
}

func (s *MemorySkill) store(ctx context.Context, p Params) Result {
	content := strings.TrimSpace(p["content"])
	if content == "" {
		return fail(NameMemory, "Memory content is required")
	}
	var meta map[string]string
	if owner := OwnerFrom(ctx); owner != "" {
		meta = map[string]string{"session": owner}
	}
	id, err := s.gw.Store(ctx, content, meta, p.Get("memory_type", memory.TypeFact))
	if err != nil {
		return fail(NameMemory, fmt.Sprintf("Failed to store memory: %v", err))
	}
	return ok(NameMemory, map[string]any{"memory_id": id, "content": content}, "Memory stored successfully")
}

func (s *MemorySkill) retrieve(ctx context.Context, p Params) Result {
	query := strings.TrimSpace(p["query"])
	if query == "" {
		return fail(NameMemory, "Search query is required")
	}
	k, err := strconv.Atoi(p.Get("n_results", "5"))
	if err != nil || k <= 0 {
		k = 5
	}
	hits, err := s.gw.Query(ctx, query, k, p["memory_type"])
	if err != nil {
		return fail(NameMemory, fmt.Sprintf("Failed to retrieve memories: %v", err))
	}
	return ok(NameMemory,
		map[string]any{"memories": hits, "count": len(hits)},
		fmt.Sprintf("Found %d relevant memory/memories", len(hits)))
}
