package services

import "errors"

// Business-rule errors surfaced by the services. Handlers map these to HTTP
// statuses; anything else is treated as an internal error and never reaches
// the client verbatim.
var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("username or email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSelfRoleChange     = errors.New("admins cannot change their own role")
	ErrSelfDelete         = errors.New("admins cannot delete their own account")
	ErrNothingToUpdate    = errors.New("nothing to update")
)
