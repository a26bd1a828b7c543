package users

import "errors"

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong
// password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")
