package skills

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"jarvis/internal/intent"
	"jarvis/internal/schedule"
)

const NameSchedule = "schedule"

// ReminderStore is the part of schedule.FileRepository the schedule skill needs.
type ReminderStore interface {
	Add(r schedule.Reminder) error
	List(status string) ([]schedule.Reminder, error)
	Delete(id string) (bool, error)
}

type ScheduleSkill struct {
	repo ReminderStore
	now  func() time.Time
}

func NewScheduleSkill(repo ReminderStore, now func() time.Time) *ScheduleSkill {
	if now == nil {
		now = time.Now
	}
	return &ScheduleSkill{repo: repo, now: now}
}

func (s *ScheduleSkill) Name() string     { return NameSchedule }
func (s *ScheduleSkill) Describe() string { return "Manages reminders and scheduled tasks" }

func (s *ScheduleSkill) IsEligible(in intent.Result) bool { return in.Has(intent.Schedule) }

var (
	listRemindersRe   = regexp.MustCompile(`(?i)\b(list|show|what are)\b.*\breminders?\b`)
	deleteReminderRe  = regexp.MustCompile(`(?i)\b(delete|cancel|remove)\b.*\breminder\b`)
	reminderIDRe      = regexp.MustCompile(`reminder_[A-Za-z0-9._-]+`)
	timePhraseRe      = regexp.MustCompile(`(?i)\bin \d+ (minute|hour|day|week)s?\b|\b(tomorrow|today|tonight)\b(\s+at)?(\s+\d{1,2}(:\d{2})?\s*(am|pm)?)?|\bat \d{1,2}(:\d{2})?\s*(am|pm)?\b`)
	recurrenceRe      = regexp.MustCompile(`(?i)\b(every day|daily|every week|weekly)\b`)
	reminderLeadIn    = regexp.MustCompile(`(?i)^\s*(please\s+)?(remind me|set (a|an) (reminder|alarm))\s*(to|about|that)?\s*`)
	messageTrailingRe = regexp.MustCompile(`(?i)\s+(at|on|by)\s*$`)
)

func (s *ScheduleSkill) ParametersFrom(text string, _ intent.Result) Params {
	switch {
	case deleteReminderRe.MatchString(text):
		return Params{"action": "delete", "reminder_id": reminderIDRe.FindString(text)}
	case listRemindersRe.MatchString(text):
		return Params{"action": "list", "status": "all"}
	}

	p := Params{"action": "create"}
	msg := text
	if rec := recurrenceRe.FindString(text); rec != "" {
		p["recurring"] = "true"
		p["period"] = schedule.PeriodDaily
		if strings.Contains(strings.ToLower(rec), "week") {
			p["period"] = schedule.PeriodWeekly
		}
		msg = strings.Replace(msg, rec, "", 1)
	}

	timeStr := strings.TrimSpace(timePhraseRe.FindString(msg))
	if timeStr != "" {
		msg = strings.Replace(msg, timeStr, "", 1)
	} else {
		timeStr = text
	}
	msg = reminderLeadIn.ReplaceAllString(msg, "")
	msg = strings.Join(strings.Fields(msg), " ")
	msg = messageTrailingRe.ReplaceAllString(msg, "")
	msg = strings.TrimRight(msg, "?.!, ")
	if msg == "" {
		msg = strings.TrimSpace(text)
	}
	p["message"] = msg
	p["time_str"] = timeStr
	return p
}

func (s *ScheduleSkill) Invoke(ctx context.Context, p Params) Result {
	switch action := p.Get("action", "create"); action {
	case "create":
		return s.create(ctx, p)
	case "list":
		return s.list(p.Get("status", "all"))
	case "delete":
		return s.delete(p["reminder_id"])
	default:
		return fail(NameSchedule, "Unknown action: "+action)
	}
}

func (s *ScheduleSkill) create(ctx context.Context, p Params) Result {
	msg := strings.TrimSpace(p["message"])
	timeStr := strings.TrimSpace(p["time_str"])
	if msg == "" || timeStr == "" {
		return fail(NameSchedule, "Reminder message and time are required")
	}
	now := s.now()
	at, parsed := schedule.ParseTimeString(timeStr, now)
	if !parsed {
		return fail(NameSchedule, "Could not parse time: "+timeStr)
	}
	rem := schedule.NewReminder(msg, timeStr, at, now)
	rem.Recurring = p["recurring"] == "true"
	if rem.Recurring {
		rem.Period = p.Get("period", schedule.PeriodDaily)
	}
	rem.Owner = OwnerFrom(ctx)
	if err := s.repo.Add(rem); err != nil {
		return fail(NameSchedule, fmt.Sprintf("Failed to create reminder: %v", err))
	}
	return ok(NameSchedule, rem, "Reminder set for "+at.Format("2006-01-02 15:04"))
}

func (s *ScheduleSkill) list(status string) Result {
	items, err := s.repo.List(status)
	if err != nil {
		return fail(NameSchedule, fmt.Sprintf("Failed to list reminders: %v", err))
	}
	return ok(NameSchedule,
		map[string]any{"reminders": items, "count": len(items)},
		fmt.Sprintf("Found %d reminder(s)", len(items)))
}

func (s *ScheduleSkill) delete(id string) Result {
	if id == "" {
		return fail(NameSchedule, "Reminder id is required")
	}
	removed, err := s.repo.Delete(id)
	if err != nil {
		return fail(NameSchedule, fmt.Sprintf("Failed to delete reminder: %v", err))
	}
	if !removed {
		return fail(NameSchedule, "Reminder not found: "+id)
	}
	return ok(NameSchedule, nil, "Reminder deleted successfully")
}
