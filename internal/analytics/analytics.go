package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"jarvis/internal/storage"
)

// DailyStats summarises one calendar day of recorded interactions.
type DailyStats struct {
	Date            string         `json:"date"`
	TotalMessages   int            `json:"total_messages"`
	UniqueSessions  int            `json:"unique_sessions"`
	SkillCallsTotal int            `json:"skill_calls_total"`
	SkillsByName    map[string]int `json:"skills_by_name"`
	IntentsByName   map[string]int `json:"intents_by_name"`
	ByChannel       map[string]int `json:"by_channel"`
}

// AnalyzeDaily counts the events that fall on day, in day's location.
// Events without a user message are ignored.
func AnalyzeDaily(events []storage.Event, day time.Time) *DailyStats {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:          start.Format("2006-01-02"),
		SkillsByName:  make(map[string]int),
		IntentsByName: make(map[string]int),
		ByChannel:     make(map[string]int),
	}
	sessions := make(map[string]struct{})

	for _, ev := range events {
		if ev.Timestamp.Before(start) || !ev.Timestamp.Before(end) {
			continue
		}
		if ev.UserMessage == "" {
			continue
		}
		stats.TotalMessages++
		sessions[ev.SessionID] = struct{}{}
		if ev.Intent != "" {
			stats.IntentsByName[ev.Intent]++
		}
		if ev.Channel != "" {
			stats.ByChannel[ev.Channel]++
		}
		if ev.Skill != "" {
			stats.SkillCallsTotal++
			stats.SkillsByName[ev.Skill]++
		}
	}

	stats.UniqueSessions = len(sessions)
	return stats
}

// Summary renders the stats as plain text for the CLI.
func (ds *DailyStats) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage for %s:\n", ds.Date)
	fmt.Fprintf(&sb, "- Messages: %d\n", ds.TotalMessages)
	fmt.Fprintf(&sb, "- Sessions: %d\n", ds.UniqueSessions)
	fmt.Fprintf(&sb, "- Skill invocations: %d\n", ds.SkillCallsTotal)
	writeCounts(&sb, "Skills", ds.SkillsByName)
	writeCounts(&sb, "Intents", ds.IntentsByName)
	return sb.String()
}

func writeCounts(sb *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(sb, "%s:\n", title)
	for _, name := range names {
		fmt.Fprintf(sb, "  %s: %d\n", name, counts[name])
	}
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
