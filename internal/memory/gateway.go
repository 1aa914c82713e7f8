package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"jarvis/internal/logging"
)

// Stats summarizes the store content.
type Stats struct {
	Total      int            `json:"total_memories"`
	ByType     map[string]int `json:"by_type"`
	Collection string         `json:"collection_name,omitempty"`
}

// Gateway is the write/read policy around a semantic store: it tags every
// write with a type and timestamp, builds type filters for reads and runs
// the retention sweep. It keeps no cross-session lock.
type Gateway struct {
	store      Store
	collection string
	now        func() time.Time
	logger     *zap.Logger
}

type GatewayOption func(*Gateway)

func WithCollection(name string) GatewayOption { return func(g *Gateway) { g.collection = name } }
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) { g.now = now }
}
func WithLogger(l *zap.Logger) GatewayOption { return func(g *Gateway) { g.logger = l } }

func NewGateway(store Store, opts ...GatewayOption) *Gateway {
	g := &Gateway{store: store, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	g.logger = logging.OrNop(g.logger)
	return g
}

// Backend exposes the underlying store.
func (g *Gateway) Backend() Store { return g.store }

// Store writes content as a memory of the given type and returns its id
// (<type>_<ulid>). Caller metadata cannot override the type and timestamp tags.
func (g *Gateway) Store(ctx context.Context, content string, metadata map[string]string, memType string) (string, error) {
	if memType == "" {
		memType = TypeConversation
	}
	now := g.now()
	id := fmt.Sprintf("%s_%s", memType, ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String())

	meta := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[KeyType] = memType
	meta[KeyTimestamp] = now.Format(time.RFC3339Nano)

	if err := g.store.Add(ctx, Record{ID: id, Content: content, Metadata: meta}); err != nil {
		g.logger.Error("failed to store memory", zap.String("type", memType), zap.Error(err))
		return "", fmt.Errorf("store memory: %w", err)
	}
	g.logger.Debug("memory stored", zap.String("id", id))
	return id, nil
}

// Query returns up to k memories ranked by the store, optionally limited to one type.
func (g *Gateway) Query(ctx context.Context, text string, k int, memType string) ([]Hit, error) {
	hits, err := g.store.Query(ctx, text, k, Filter{Type: memType})
	if err != nil {
		g.logger.Error("failed to query memories", zap.String("query", text), zap.Error(err))
		return nil, fmt.Errorf("query memories: %w", err)
	}
	g.logger.Debug("memories retrieved", zap.Int("count", len(hits)))
	return hits, nil
}

func (g *Gateway) StoreConversation(ctx context.Context, userMessage, assistantMessage string) (string, error) {
	content := fmt.Sprintf("User: %s\nAssistant: %s", userMessage, assistantMessage)
	return g.Store(ctx, content, map[string]string{
		"user_message":      userMessage,
		"assistant_message": assistantMessage,
	}, TypeConversation)
}

func (g *Gateway) StoreFact(ctx context.Context, fact, category string) (string, error) {
	meta := map[string]string{}
	if category != "" {
		meta["category"] = category
	}
	return g.Store(ctx, fact, meta, TypeFact)
}

func (g *Gateway) StorePreference(ctx context.Context, preference, key string) (string, error) {
	meta := map[string]string{}
	if key != "" {
		meta["key"] = key
	}
	return g.Store(ctx, preference, meta, TypePreference)
}

func (g *Gateway) SearchFacts(ctx context.Context, query string, k int) ([]Hit, error) {
	return g.Query(ctx, query, k, TypeFact)
}

func (g *Gateway) SearchPreferences(ctx context.Context, query string, k int) ([]Hit, error) {
	return g.Query(ctx, query, k, TypePreference)
}

// RecentConversations returns the newest n conversation memories.
func (g *Gateway) RecentConversations(ctx context.Context, n int) ([]Record, error) {
	all, err := g.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	var convs []Record
	for _, r := range all {
		if r.Metadata[KeyType] == TypeConversation {
			convs = append(convs, r)
		}
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].Metadata[KeyTimestamp] > convs[j].Metadata[KeyTimestamp]
	})
	if n > 0 && len(convs) > n {
		convs = convs[:n]
	}
	return convs, nil
}

// Delete removes one memory and reports success.
func (g *Gateway) Delete(ctx context.Context, id string) bool {
	if err := g.store.Delete(ctx, id); err != nil {
		g.logger.Error("failed to delete memory", zap.String("id", id), zap.Error(err))
		return false
	}
	return true
}

// Cleanup deletes every memory whose timestamp is older than olderThanDays
// and returns how many were deleted. Records with a missing or unparseable
// timestamp are skipped.
func (g *Gateway) Cleanup(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := g.now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	all, err := g.store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("list memories: %w", err)
	}
	deleted := 0
	for _, r := range all {
		ts, ok := parseTimestamp(r.Metadata[KeyTimestamp])
		if !ok {
			continue
		}
		if ts.Before(cutoff) && g.Delete(ctx, r.ID) {
			deleted++
		}
	}
	g.logger.Info("cleared old memories", zap.Int("deleted", deleted), zap.Int("older_than_days", olderThanDays))
	return deleted, nil
}

func (g *Gateway) Stats(ctx context.Context) (Stats, error) {
	total, err := g.store.Count(ctx)
	if err != nil {
		return Stats{ByType: map[string]int{}}, fmt.Errorf("count memories: %w", err)
	}
	all, err := g.store.All(ctx)
	if err != nil {
		return Stats{ByType: map[string]int{}}, fmt.Errorf("list memories: %w", err)
	}
	byType := map[string]int{}
	for _, r := range all {
		byType[r.Type()]++
	}
	return Stats{Total: total, ByType: byType, Collection: g.collection}, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
