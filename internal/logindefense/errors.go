package logindefense

import "errors"

var (
	ErrAccountLocked  = errors.New("account locked")
	ErrSourceHighRisk = errors.New("source address flagged high risk")
)
