package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

const (
	PeriodDaily  = "daily"
	PeriodWeekly = "weekly"
)

// Reminder is a persisted reminder. Owner identifies the session that
// created it (for example "telegram:42") so delivery can be routed back.
type Reminder struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
	TimeStr   string    `json:"time_str"`
	Recurring bool      `json:"recurring"`
	Period    string    `json:"period,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
	Owner     string    `json:"owner,omitempty"`
}

// NewReminder builds a pending reminder with a fresh id.
func NewReminder(message, timeStr string, at, now time.Time) Reminder {
	return Reminder{
		ID:        "reminder_" + uuid.NewString(),
		Message:   message,
		Time:      at,
		TimeStr:   timeStr,
		CreatedAt: now,
		Status:    StatusPending,
	}
}

func (r Reminder) Due(now time.Time) bool {
	return r.Status == StatusPending && !r.Time.After(now)
}

// Next returns the first occurrence of a recurring reminder after now.
// An unset period repeats daily.
func (r Reminder) Next(now time.Time) time.Time {
	days := 1
	if r.Period == PeriodWeekly {
		days = 7
	}
	next := r.Time
	for !next.After(now) {
		next = next.AddDate(0, 0, days)
	}
	return next
}

func (r Reminder) String() string {
	return fmt.Sprintf("%s at %s", r.Message, r.Time.Format("2006-01-02 15:04"))
}

var (
	relativeRe  = regexp.MustCompile(`in (\d+) (minute|hour|day|week)s?`)
	clockTimeRe = regexp.MustCompile(`(\d{1,2}):?(\d{2})?\s*(am|pm)?`)
	bareAtRe    = regexp.MustCompile(`\bat\s+\d{1,2}(:\d{2})?\s*(am|pm)?\b`)
)

// ParseTimeString understands RFC 3339 timestamps, "in N
// minutes|hours|days|weeks", "tomorrow [at H[:MM][am|pm]]" (09:00 when no
// time is given), "today"/"tonight" with a time, and a bare "at
// H[:MM][am|pm]", which means the next such time of day. Anything else is
// not parsable.
func ParseTimeString(s string, now time.Time) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
		return t, true
	}
	lower := strings.ToLower(s)

	if m := relativeRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			switch m[2] {
			case "minute":
				return now.Add(time.Duration(n) * time.Minute), true
			case "hour":
				return now.Add(time.Duration(n) * time.Hour), true
			case "day":
				return now.AddDate(0, 0, n), true
			case "week":
				return now.AddDate(0, 0, 7*n), true
			}
		}
	}

	if strings.Contains(lower, "tomorrow") {
		day := now.AddDate(0, 0, 1)
		h, m, ok := clockTime(lower)
		if !ok {
			h, m = 9, 0
		}
		return at(day, h, m)
	}

	if strings.Contains(lower, "today") || strings.Contains(lower, "tonight") {
		h, m, ok := clockTime(lower)
		if !ok {
			return time.Time{}, false
		}
		return at(now, h, m)
	}

	if loc := bareAtRe.FindStringIndex(lower); loc != nil {
		h, m, _ := clockTime(lower[loc[0]:])
		t, ok := at(now, h, m)
		if ok && !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, ok
	}

	return time.Time{}, false
}

func clockTime(s string) (hour, minute int, ok bool) {
	m := clockTimeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch {
	case m[3] == "pm" && hour < 12:
		hour += 12
	case m[3] == "am" && hour == 12:
		hour = 0
	}
	return hour, minute, true
}

func at(day time.Time, hour, minute int) (time.Time, bool) {
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), true
}
