package auth

// AuthenticationError reports a signature verification failure. It is always
// fatal to the message that carried the signature.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}
