package sso

import "errors"

var (
	ErrSessionInvalid = errors.New("sso session invalid")
)
