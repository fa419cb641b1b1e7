package auth

import "errors"

// ErrNoToken means nothing is stored and no acquisition strategy is
// configured; the user has to go through the login flow.
var ErrNoToken = errors.New("no stored credentials")

// CredentialError means the token could not be refreshed or acquired. It is
// terminal for the session: the caller must re-authenticate, not retry.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return "credential refresh failed: " + e.Err.Error()
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}
