package auth

// ProviderError is an error reported by the auth provider. Message is the
// provider's raw text and is the key used for translation.
type ProviderError struct {
	Message string
	Err     error
}

// NewProviderError wraps err with the provider message.
func NewProviderError(message string, err error) *ProviderError {
	return &ProviderError{Message: message, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Provider messages understood by Translator.
const (
	MsgInvalidCredentials = "Invalid login credentials"
	MsgEmailNotConfirmed  = "Email not confirmed"
	MsgUserRegistered     = "User already registered"
	MsgWeakPassword       = "Password should be at least 6 characters"
	MsgInvalidEmail       = "Invalid email"
	MsgUserNotFound       = "User not found"
	MsgSignupsDisabled    = "Signups not allowed for this instance"
	MsgEmailTaken         = "Email address already registered"
	MsgUnknown            = "Unknown error"
)
