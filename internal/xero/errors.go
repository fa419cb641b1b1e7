package xero

import "fmt"

// AuthError is a 401-equivalent rejection of a single remote call or token
// exchange. Callers may retry once after a refresh; a second AuthError means
// the credentials themselves are bad.
type AuthError struct {
	Op      string
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("xero: %s rejected with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("xero: %s rejected with status %d: %s", e.Op, e.Status, e.Message)
}

// RemoteValidationError is a business-rule rejection of one invoice. It is a
// row-level failure: the batch records it and moves on.
type RemoteValidationError struct {
	Reason string
}

func (e *RemoteValidationError) Error() string {
	return "Xero API Error: " + e.Reason
}
