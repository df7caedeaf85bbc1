package ports

// CredentialRequest describes a secret the user is asked to type in.
type CredentialRequest struct {
	Title       string
	Description string
	Host        string
	User        string
}

// DialogProvider abstracts interactive user dialogs.
// Implementations may use TUI forms or test fakes.
type DialogProvider interface {
	// AskSecret prompts for a hidden value such as a password or a key
	// passphrase. An empty answer with a nil error means the user submitted
	// nothing.
	AskSecret(req CredentialRequest) (string, error)

	// Confirm asks a yes/no question.
	Confirm(title, description string) (bool, error)
}
