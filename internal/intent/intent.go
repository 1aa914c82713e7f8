package intent

import (
	"regexp"
	"strings"
)

const (
	Search       = "search"
	Remember     = "remember"
	Recall       = "recall"
	Schedule     = "schedule"
	Calculate    = "calculate"
	Image        = "image"
	Weather      = "weather"
	News         = "news"
	File         = "file"
	Conversation = "conversation"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

type Entities struct {
	Dates   []string `json:"dates"`
	Times   []string `json:"times"`
	Numbers []string `json:"numbers"`
	URLs    []string `json:"urls"`
}

type Result struct {
	Primary        string   `json:"primary_intent"`
	All            []string `json:"all_intents"`
	Entities       Entities `json:"entities"`
	Urgency        Urgency  `json:"urgency"`
	RequiresAction bool     `json:"requires_action"`
}

// Has reports whether name is among the detected intents.
func (r Result) Has(name string) bool {
	for _, in := range r.All {
		if in == name {
			return true
		}
	}
	return false
}

func (r Result) RequiresSearch() bool     { return r.Has(Search) }
func (r Result) RequiresMemory() bool     { return r.Has(Remember) || r.Has(Recall) }
func (r Result) RequiresScheduling() bool { return r.Has(Schedule) }

type rule struct {
	name     string
	triggers []*regexp.Regexp
}

// Table order decides both all_intents order and the primary intent.
var rules = []rule{
	{Search, compile(
		`search (for|about|on)`,
		`look up`,
		`find (out|information|info)`,
		`what (is|are|was|were)`,
		`who (is|are|was|were)`,
		`when (is|are|was|were|did)`,
		`where (is|are|was|were)`,
		`how (to|do|does|did)`,
		`tell me about`,
	)},
	{Remember, compile(
		`remember (that|this)`,
		`save (this|that)`,
		`store (this|that)`,
		`keep in mind`,
		`don't forget`,
		`note (that|this)`,
		`my .* is`,
	)},
	{Recall, compile(
		`what (do you|did you) (know|remember)`,
		`recall`,
		`what did i (say|tell)`,
		`do you remember`,
	)},
	{Schedule, compile(
		`remind me`,
		`set (a|an) (reminder|alarm)`,
		`schedule`,
		`at \d+`,
		`(tomorrow|today|tonight)`,
		`in \d+ (minutes|hours|days)`,
	)},
	{Calculate, compile(
		`calculate`,
		`compute`,
		`what is \d+`,
		`\d+\s*[\+\-\*\/]\s*\d+`,
	)},
	{Image, compile(
		`generate (an|a) image`,
		`create (an|a) (picture|image|photo)`,
		`draw`,
		`show me (a|an) image`,
	)},
	{Weather, compile(
		`weather`,
		`temperature`,
		`forecast`,
		`how (hot|cold|warm)`,
	)},
	{News, compile(
		`news`,
		`headlines`,
		`what's happening`,
		`latest (on|about)`,
	)},
	{File, compile(
		`create (a|an) (file|document|pdf)`,
		`save (to|as) (file|document)`,
		`write to file`,
	)},
}

var (
	datePatterns = compile(
		`(tomorrow|today|tonight|yesterday)`,
		`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`,
		`(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}`,
	)
	timePatterns = compile(
		`\d{1,2}:\d{2}\s*(am|pm)?`,
		`\d{1,2}\s*(am|pm)`,
		`in \d+ (minutes|hours|days)`,
	)
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	urlPattern    = regexp.MustCompile(`https?://\S+`)
)

var (
	highUrgencyWords   = []string{"urgent", "asap", "immediately", "now", "emergency", "critical"}
	mediumUrgencyWords = []string{"soon", "today", "tonight", "quickly"}
)

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// Classifier maps free text to intents, entities and urgency using a fixed rule table.
// It holds no state and is safe for concurrent use.
type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

// Names returns the intent names in table order.
func (c *Classifier) Names() []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.name)
	}
	return out
}

func (c *Classifier) Classify(text string) Result {
	lower := strings.ToLower(text)

	detected := []string{}
	for _, r := range rules {
		for _, re := range r.triggers {
			if re.MatchString(lower) {
				detected = append(detected, r.name)
				break
			}
		}
	}

	primary := Conversation
	if len(detected) > 0 {
		primary = detected[0]
	}

	return Result{
		Primary:        primary,
		All:            detected,
		Entities:       extractEntities(text, lower),
		Urgency:        urgency(lower),
		RequiresAction: primary != Conversation,
	}
}

func extractEntities(text, lower string) Entities {
	e := Entities{
		Dates:   []string{},
		Times:   []string{},
		Numbers: []string{},
		URLs:    []string{},
	}
	for _, re := range datePatterns {
		e.Dates = append(e.Dates, re.FindAllString(lower, -1)...)
	}
	for _, re := range timePatterns {
		e.Times = append(e.Times, re.FindAllString(lower, -1)...)
	}
	e.Numbers = append(e.Numbers, numberPattern.FindAllString(text, -1)...)
	e.URLs = append(e.URLs, urlPattern.FindAllString(text, -1)...)
	return e
}

func urgency(lower string) Urgency {
	for _, w := range highUrgencyWords {
		if strings.Contains(lower, w) {
			return UrgencyHigh
		}
	}
	for _, w := range mediumUrgencyWords {
		if strings.Contains(lower, w) {
			return UrgencyMedium
		}
	}
	return UrgencyLow
}
