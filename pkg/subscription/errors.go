package subscription

import "errors"

var (
	ErrNotFound          = errors.New("subscription not found")
	ErrNoProviderLinkage = errors.New("subscription has no payment provider linkage")
)
