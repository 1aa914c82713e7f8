package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPersonality = "professional"
	DefaultStyle       = "concise"

	ConversationStarter = "Hello! I'm JARVIS, your personal AI assistant. How can I help you today?"
)

// Personas maps personality and response-style keys to prompt text.
type Personas struct {
	Personalities map[string]string `yaml:"personalities"`
	Styles        map[string]string `yaml:"styles"`
}

func DefaultPersonas() *Personas {
	return &Personas{
		Personalities: map[string]string{
			"professional": `You are JARVIS (Just A Rather Very Intelligent System), a highly advanced AI assistant.
You are professional, efficient, and precise in your responses.
You provide accurate information and helpful assistance while maintaining a formal tone.
You are knowledgeable across many domains and can help with various tasks.`,
			"friendly": `You are JARVIS, a friendly and approachable AI assistant.
You're warm, conversational, and enjoy helping people.
You explain things clearly and make users feel comfortable.
You're enthusiastic about solving problems and learning new things.`,
			"witty": `You are JARVIS, inspired by Tony Stark's AI assistant.
You're intelligent, slightly sarcastic, and have a dry sense of humor.
You're helpful but don't mind adding witty remarks when appropriate.
You balance professionalism with personality, making interactions enjoyable.`,
			"formal": `You are JARVIS, a formal and sophisticated AI system.
You maintain strict professionalism and use precise language.
You provide thorough, well-structured responses.
You are respectful and maintain appropriate boundaries.`,
		},
		Styles: map[string]string{
			"concise":   "Keep responses brief and to the point. Provide essential information without unnecessary elaboration.",
			"detailed":  "Provide comprehensive responses with explanations, examples, and context when relevant.",
			"technical": "Use technical terminology and provide in-depth technical details when appropriate.",
		},
	}
}

// LoadPersonas returns the defaults overlaid with entries from a YAML file.
// An empty path yields the defaults.
func LoadPersonas(path string) (*Personas, error) {
	p := DefaultPersonas()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas file: %w", err)
	}
	var extra Personas
	if err := yaml.Unmarshal(b, &extra); err != nil {
		return nil, fmt.Errorf("parse personas file: %w", err)
	}
	for k, v := range extra.Personalities {
		p.Personalities[k] = v
	}
	for k, v := range extra.Styles {
		p.Styles[k] = v
	}
	return p, nil
}

const promptTail = `Capabilities:
- Answer questions and provide information
- Search the web for current information
- Remember important details from conversations
- Set reminders and schedule tasks
- Perform calculations and data analysis
- Generate images based on descriptions
- Create and manage files
- Provide weather updates and news
- Help with various tasks and automation

Guidelines:
- Be helpful and accurate
- Admit when you don't know something
- Ask for clarification when needed
- Respect user privacy and preferences
- Provide sources when citing information
- Be proactive in offering assistance
`

// SystemPrompt builds the persona instruction. Unknown keys fall back to
// professional and concise.
func (p *Personas) SystemPrompt(personality, style string) string {
	base, ok := p.Personalities[personality]
	if !ok {
		base = p.Personalities[DefaultPersonality]
	}
	instr, ok := p.Styles[style]
	if !ok {
		instr = p.Styles[DefaultStyle]
	}
	return fmt.Sprintf("%s\n\nResponse Style: %s\n\n%s", base, instr, promptTail)
}

func SystemPrompt(personality, style string) string {
	return DefaultPersonas().SystemPrompt(personality, style)
}
