package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt names used by the feature services.
const (
	PromptTopics        = "topics"
	PromptSpelling      = "spelling"
	PromptGrammar       = "grammar"
	PromptPolish        = "polish"
	PromptKeywords      = "keywords"
	PromptSynopsis      = "synopsis"
	PromptKeyPoints     = "keypoints"
	PromptEmailAccept   = "email_accept"
	PromptEmailReject   = "email_reject"
	PromptEmailReminder = "email_reminder"
)

var requiredPrompts = []string{
	PromptTopics, PromptSpelling, PromptGrammar, PromptPolish, PromptKeywords,
	PromptSynopsis, PromptKeyPoints, PromptEmailAccept, PromptEmailReject, PromptEmailReminder,
}

// PromptYAML is one catalogue entry as written in YAML.
type PromptYAML struct {
	System      string  `yaml:"system"`
	User        string  `yaml:"user"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// RenderedPrompt is a prompt ready to send.
type RenderedPrompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

type compiledPrompt struct {
	def    PromptYAML
	system *template.Template
	user   *template.Template
}

// Prompts is the parsed prompt catalogue. It is immutable and safe for concurrent use.
type Prompts struct {
	byName map[string]compiledPrompt
}

var promptFuncs = template.FuncMap{
	"join": func(elems []string, sep string) string { return strings.Join(elems, sep) },
	"langName": func(code string) string {
		if strings.EqualFold(code, "vi") {
			return "Vietnamese"
		}
		return "English"
	},
}

// LoadPrompts returns the catalogue from path, or the embedded default when path is empty.
func LoadPrompts(path string) (*Prompts, error) {
	if path == "" {
		return ParsePrompts(defaultPrompts)
	}
	// #nosec G304 -- operator supplied configuration file
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadPrompts: %w", err)
	}
	return ParsePrompts(content)
}

// DefaultPrompts returns the embedded catalogue and panics if it is malformed.
func DefaultPrompts() *Prompts {
	p, err := ParsePrompts(defaultPrompts)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePrompts parses and compiles a YAML catalogue. Every known prompt must be present.
func ParsePrompts(content []byte) (*Prompts, error) {
	var raw map[string]PromptYAML
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("op=config.ParsePrompts: failed to parse YAML: %w", err)
	}
	p := &Prompts{byName: make(map[string]compiledPrompt, len(raw))}
	for name, def := range raw {
		sys, err := template.New(name + ".system").Funcs(promptFuncs).Option("missingkey=error").Parse(def.System)
		if err != nil {
			return nil, fmt.Errorf("op=config.ParsePrompts: %s system: %w", name, err)
		}
		usr, err := template.New(name + ".user").Funcs(promptFuncs).Option("missingkey=error").Parse(def.User)
		if err != nil {
			return nil, fmt.Errorf("op=config.ParsePrompts: %s user: %w", name, err)
		}
		p.byName[name] = compiledPrompt{def: def, system: sys, user: usr}
	}
	for _, name := range requiredPrompts {
		if _, ok := p.byName[name]; !ok {
			return nil, fmt.Errorf("op=config.ParsePrompts: missing prompt %q", name)
		}
	}
	return p, nil
}

// Render executes the named prompt with data.
func (p *Prompts) Render(name string, data any) (RenderedPrompt, error) {
	cp, ok := p.byName[name]
	if !ok {
		return RenderedPrompt{}, fmt.Errorf("op=config.Render: unknown prompt %q", name)
	}
	var sys, usr strings.Builder
	if err := cp.system.Execute(&sys, data); err != nil {
		return RenderedPrompt{}, fmt.Errorf("op=config.Render: %s: %w", name, err)
	}
	if err := cp.user.Execute(&usr, data); err != nil {
		return RenderedPrompt{}, fmt.Errorf("op=config.Render: %s: %w", name, err)
	}
	return RenderedPrompt{
		System:      strings.TrimSpace(sys.String()),
		User:        strings.TrimSpace(usr.String()),
		Temperature: cp.def.Temperature,
		MaxTokens:   cp.def.MaxTokens,
	}, nil
}
