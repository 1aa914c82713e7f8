package memory

import (
	"context"
	"strings"
)

const (
	TypeConversation = "conversation"
	TypeFact         = "fact"
	TypePreference   = "preference"
)

// Metadata keys written by the Gateway on every record.
const (
	KeyType      = "type"
	KeyTimestamp = "timestamp"
)

// Record is one document held by a semantic store.
type Record struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Type returns the record type tag, "unknown" when absent.
func (r Record) Type() string {
	if t := r.Metadata[KeyType]; t != "" {
		return t
	}
	return "unknown"
}

// Hit is a ranked query result; lower distance means closer.
type Hit struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
	ID       string            `json:"id"`
}

// Filter restricts a query. Empty Type matches every record.
type Filter struct {
	Type string
}

// Store is the external semantic store the Gateway delegates ranking and
// persistence to. Implementations must be safe for concurrent use.
type Store interface {
	Add(ctx context.Context, rec Record) error
	Query(ctx context.Context, text string, k int, filter Filter) ([]Hit, error)
	All(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, ids ...string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// tokens lower-cases text and splits it into unique alphanumeric terms of
// at least two characters, in first-seen order.
func tokens(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, part := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127)
	}) {
		if len(part) < 2 {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
