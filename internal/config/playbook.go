package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/acolita/termdriver/internal/adapters/realfs"
	"github.com/acolita/termdriver/internal/outcome"
	"github.com/acolita/termdriver/internal/ports"
	"github.com/acolita/termdriver/internal/prompt"
)

// Playbook is an ordered list of commands for one session.
type Playbook struct {
	PromptMarkers []string `yaml:"prompt_markers"`
	Calls         []Call   `yaml:"calls"`
}

// Call is one command with its interactive answers and output markers.
type Call struct {
	Command       string     `yaml:"command"`
	PromptMarkers []string   `yaml:"prompt_markers"`
	Responses     []Response `yaml:"responses"`
	Warnings      []string   `yaml:"warnings"`
	Errors        []string   `yaml:"errors"`
	Criticals     []string   `yaml:"criticals"`
}

// Response answers a question. Preset names a built-in rule whose question
// and answer fill in whatever the response leaves empty.
type Response struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
	Newline  bool   `yaml:"newline"`
	Preset   string `yaml:"preset"`
}

// Rule resolves the response into a prompt rule.
func (r Response) Rule() (prompt.Rule, error) {
	rule := prompt.Rule{Question: r.Question, Answer: r.Answer, Newline: r.Newline}
	if r.Preset != "" {
		p, err := prompt.Preset(r.Preset)
		if err != nil {
			return prompt.Rule{}, err
		}
		if rule.Question == "" {
			rule.Question = p.Question
		}
		if rule.Answer == "" {
			rule.Answer = p.Answer
			rule.Newline = rule.Newline || p.Newline
		}
	}
	if rule.Question == "" {
		return prompt.Rule{}, fmt.Errorf("response without question")
	}
	return rule, nil
}

// Rules resolves all responses of the call.
func (c Call) Rules() ([]prompt.Rule, error) {
	rules := make([]prompt.Rule, 0, len(c.Responses))
	for i, r := range c.Responses {
		rule, err := r.Rule()
		if err != nil {
			return nil, fmt.Errorf("responses[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Markers returns the classification markers of the call.
func (c Call) Markers() outcome.Markers {
	return outcome.Markers{Warnings: c.Warnings, Errors: c.Errors, Criticals: c.Criticals}
}

// ParsePlaybook decodes and checks a playbook.
func ParsePlaybook(data []byte) (*Playbook, error) {
	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("parse playbook: %w", err)
	}
	if len(pb.Calls) == 0 {
		return nil, fmt.Errorf("playbook has no calls")
	}
	for i, c := range pb.Calls {
		if c.Command == "" {
			return nil, fmt.Errorf("calls[%d]: command is required", i)
		}
		if _, err := c.Rules(); err != nil {
			return nil, fmt.Errorf("calls[%d]: %w", i, err)
		}
	}
	return &pb, nil
}

// LoadPlaybook reads a playbook file. A nil fs selects the real filesystem.
func LoadPlaybook(path string, fs ports.FileSystem) (*Playbook, error) {
	if fs == nil {
		fs = realfs.New()
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}
	return ParsePlaybook(data)
}
