package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"jarvis/internal/intent"
)

const NameFile = "file"

type FileSkill struct {
	dir string
	now func() time.Time
}

func NewFileSkill(dir string, now func() time.Time) *FileSkill {
	if now == nil {
		now = time.Now
	}
	return &FileSkill{dir: dir, now: now}
}

func (s *FileSkill) Name() string     { return NameFile }
func (s *FileSkill) Describe() string { return "Handles file operations" }

func (s *FileSkill) IsEligible(in intent.Result) bool { return in.Has(intent.File) }

var (
	fileNameRe    = regexp.MustCompile(`(?i)\b(?:named|called)\s+"?([\w.-]+)"?`)
	fileContentRe = regexp.MustCompile(`(?is)\b(?:with(?: the)? (?:content|text)|saying|containing)\s+(.+)$`)
)

func (s *FileSkill) ParametersFrom(text string, _ intent.Result) Params {
	p := Params{"action": "create_text"}
	if m := fileNameRe.FindStringSubmatch(text); m != nil {
		p["filename"] = m[1]
	}
	switch {
	case strings.Contains(text, ":"):
		p["content"] = strings.TrimSpace(text[strings.Index(text, ":")+1:])
	default:
		if m := fileContentRe.FindStringSubmatch(text); m != nil {
			p["content"] = strings.Trim(strings.TrimSpace(m[1]), `"'`)
		}
	}
	return p
}

func (s *FileSkill) Invoke(_ context.Context, p Params) Result {
	switch action := p.Get("action", "create_text"); action {
	case "create_text":
		return s.createText(p["content"], p["filename"])
	default:
		return fail(NameFile, "Unknown action: "+action)
	}
}

func (s *FileSkill) createText(content, filename string) Result {
	if strings.TrimSpace(content) == "" {
		return fail(NameFile, "Content is required")
	}
	if filename == "" {
		filename = fmt.Sprintf("document_%s.txt", s.now().Format("20060102_150405"))
	}
	filename = SanitizeFilename(filename)
	if filename == "" {
		return fail(NameFile, "Invalid filename")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fail(NameFile, fmt.Sprintf("Failed to create text file: %v", err))
	}
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fail(NameFile, "Failed to write file")
	}
	return ok(NameFile, map[string]any{"filepath": path, "filename": filename}, "Text file created: "+filename)
}

var unsafeFilenameRe = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename drops path and shell-hostile characters, replaces spaces
// with underscores and caps the stem at 200 characters.
func SanitizeFilename(name string) string {
	name = unsafeFilenameRe.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.TrimLeft(name, ".")
	if len(name) > 200 {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		if len(stem) > 200 {
			stem = stem[:200]
		}
		name = stem + ext
	}
	return name
}
