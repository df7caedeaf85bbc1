// Package outcome classifies command output into success, recoverable failure
// or fatal failure.
package outcome

import (
	"errors"
	"fmt"
)

// Kind is the retry class of a result.
type Kind int

const (
	KindSuccess Kind = iota
	// KindRecoverable means the caller may retry the command.
	KindRecoverable
	// KindFatal means the session must not be retried.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRecoverable:
		return "recoverable"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Severity says why a result is not a success.
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
	// SeverityClosed marks a channel that went away before the prompt came back.
	SeverityClosed Severity = "closed"
	// SeverityStalled marks a command abandoned after too many empty reads.
	SeverityStalled Severity = "stalled"
)

// ClosesChannel reports whether a result of this severity ends the session.
func (s Severity) ClosesChannel() bool {
	switch s {
	case SeverityError, SeverityCritical, SeverityClosed, SeverityStalled:
		return true
	}
	return false
}

// Outcome is the classified result of one command.
type Outcome struct {
	Kind     Kind
	Severity Severity
	// Text is the response body with the command echo removed and surrounding
	// whitespace trimmed.
	Text string
	// Marker is the severity marker that fired, if any.
	Marker string
}

// Success builds a successful Outcome.
func Success(text string) Outcome {
	return Outcome{Kind: KindSuccess, Text: text}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Err returns nil for a success and a *Failure otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Failure{Kind: o.Kind, Severity: o.Severity, Marker: o.Marker, Output: o.Text}
}

// Failure is the error form of a non-successful Outcome.
type Failure struct {
	Kind     Kind
	Severity Severity
	Marker   string
	Output   string
	// Err is the cause of failures that did not come from command output,
	// such as a secret store or HTTP error.
	Err error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s failure: %v", f.Kind, f.Err)
	}
	switch f.Severity {
	case SeverityClosed:
		return fmt.Sprintf("%s failure: channel closed before the prompt returned", f.Kind)
	case SeverityStalled:
		return fmt.Sprintf("%s failure: no output from the remote side", f.Kind)
	}
	if f.Marker != "" {
		return fmt.Sprintf("%s failure: %s marker %q in output", f.Kind, f.Severity, f.Marker)
	}
	return fmt.Sprintf("%s failure: %s", f.Kind, f.Severity)
}

// Recoverable builds a recoverable *Failure with the given cause text.
func Recoverable(severity Severity, output string) *Failure {
	return &Failure{Kind: KindRecoverable, Severity: severity, Output: output}
}

// Fatal builds a fatal *Failure.
func Fatal(severity Severity, output string) *Failure {
	return &Failure{Kind: KindFatal, Severity: severity, Output: output}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// RecoverableErr wraps err as a recoverable failure of severity error.
func RecoverableErr(err error) *Failure {
	return &Failure{Kind: KindRecoverable, Severity: SeverityError, Err: err}
}

// FatalErr wraps err as a fatal failure of severity error.
func FatalErr(err error) *Failure {
	return &Failure{Kind: KindFatal, Severity: SeverityError, Err: err}
}

// AuthError reports that the channel could not be opened. It is always fatal.
type AuthError struct {
	Endpoint string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("open channel to %s: %v", e.Endpoint, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether err carries a recoverable failure.
func IsRecoverable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == KindRecoverable
}

// IsFatal reports whether err is a fatal failure or an AuthError.
func IsFatal(err error) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return true
	}
	var f *Failure
	return errors.As(err, &f) && f.Kind == KindFatal
}

// KindOf returns the retry class of err. A nil error is a success and an
// unclassified error is treated as fatal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindSuccess
	case IsRecoverable(err):
		return KindRecoverable
	default:
		return KindFatal
	}
}
