package prompt

import (
	"fmt"
	"io"
	"log/slog"
)

// Rule answers an interactive question that shows up in command output.
type Rule struct {
	// Question is matched literally against the output.
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
	// Newline sends "\n" after Answer.
	Newline bool `yaml:"newline" json:"newline"`
}

// Responder writes answers for the first question found in a piece of output.
type Responder struct {
	w     io.Writer
	rules []Rule
}

// NewResponder returns a Responder that writes answers to w.
func NewResponder(w io.Writer, rules []Rule) *Responder {
	return &Responder{w: w, rules: rules}
}

// Respond looks for the earliest question in text. On a hit it writes the
// rule's answer and returns the offset just after the question. When two
// questions start at the same offset the rule listed first wins.
func (r *Responder) Respond(text string) (int, bool, error) {
	if len(r.rules) == 0 || text == "" {
		return 0, false, nil
	}

	questions := make([]string, len(r.rules))
	for i, rule := range r.rules {
		questions[i] = rule.Question
	}
	m, ok := FindAny(text, questions)
	if !ok {
		return 0, false, nil
	}

	var rule Rule
	for _, candidate := range r.rules {
		if candidate.Question == m.Marker {
			rule = candidate
			break
		}
	}

	reply := rule.Answer
	if rule.Newline {
		reply += "\n"
	}
	slog.Debug("answering interactive question", slog.String("question", rule.Question))
	if reply != "" {
		if _, err := io.WriteString(r.w, reply); err != nil {
			return m.End(), true, fmt.Errorf("answer %q: %w", rule.Question, err)
		}
	}
	return m.End(), true, nil
}
