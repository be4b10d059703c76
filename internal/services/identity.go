package services

// Identity is the caller attached to a request after authentication.
type Identity struct {
	AccountID int
}

// Authenticated reports whether the identity refers to an account.
func (i Identity) Authenticated() bool {
	return i.AccountID > 0
}

func requireIdentity(identity Identity) error {
	if !identity.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}
