package lifecycle

import "errors"

var (
	ErrNoActiveSubscription = errors.New("user has no active subscription")
	ErrInvalidPauseCycles   = errors.New("pause cycles must be between 0 and 12")
)
