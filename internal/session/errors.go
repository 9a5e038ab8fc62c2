package session

import "errors"

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrNotStaff         = errors.New("account does not have admin access")
)
