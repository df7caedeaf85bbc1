package outcome

import (
	"strings"

	"github.com/acolita/termdriver/internal/prompt"
)

// Markers are line-start substrings that flag a command's output. All empty
// means the output is never classified as a failure.
type Markers struct {
	Warnings  []string `yaml:"warnings" json:"warnings"`
	Errors    []string `yaml:"errors" json:"errors"`
	Criticals []string `yaml:"criticals" json:"criticals"`
}

// Empty reports whether no marker is configured.
func (m Markers) Empty() bool {
	return len(m.Warnings) == 0 && len(m.Errors) == 0 && len(m.Criticals) == 0
}

// Classify turns a command transcript into an Outcome. echo is the command as
// it was sent, without the trailing newline. Markers are only honoured at the
// start of a line; precedence is critical, then error, then warning.
func Classify(transcript, echo string, m Markers) Outcome {
	transcript = strings.ReplaceAll(transcript, "\r\n", "\n")
	echo = strings.TrimSpace(echo)

	if m.Empty() {
		if body, ok := stripExactEcho(transcript, echo); ok {
			return Success(strings.TrimSpace(body))
		}
		return Success(strings.TrimSpace(transcript))
	}

	body, ok := stripExactEcho(transcript, echo)
	if !ok {
		body = dropFirstLine(transcript)
	}

	checks := []struct {
		markers  []string
		kind     Kind
		severity Severity
	}{
		{m.Criticals, KindFatal, SeverityCritical},
		{m.Errors, KindRecoverable, SeverityError},
		{m.Warnings, KindRecoverable, SeverityWarning},
	}
	for _, c := range checks {
		if hit, found := prompt.FindAnyAnchored(body, c.markers); found {
			return Outcome{Kind: c.kind, Severity: c.severity, Text: strings.TrimSpace(body), Marker: hit.Marker}
		}
	}
	return Success(strings.TrimSpace(body))
}

// stripExactEcho returns what follows echo when echo is found in text with
// nothing but whitespace in front of it.
func stripExactEcho(text, echo string) (string, bool) {
	if echo == "" {
		return text, false
	}
	i := strings.Index(text, echo)
	if i < 0 || strings.TrimSpace(text[:i]) != "" {
		return "", false
	}
	return text[i+len(echo):], true
}

// dropFirstLine keeps the "\n" that ends the first line so the next line still
// counts as a line start.
func dropFirstLine(text string) string {
	i := strings.IndexByte(text, '\n')
	if i < 0 {
		return text
	}
	return text[i:]
}
