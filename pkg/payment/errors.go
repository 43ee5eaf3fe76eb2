package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChangeRequest is returned when a change request specifies
	// neither a plan code nor add-on updates.
	ErrInvalidChangeRequest = errors.New("change request must set a plan code or add-on updates")

	// ErrInvalidSubscription is returned when a provider payload is missing
	// required subscription fields.
	ErrInvalidSubscription = errors.New("invalid provider subscription")
)

// DuplicateAddOnError is returned when purchasing an add-on the subscription
// already carries.
type DuplicateAddOnError struct {
	SubscriptionID string
	AddOnCode      string
}

func (e *DuplicateAddOnError) Error() string {
	return fmt.Sprintf("subscription %s already has add-on %s", e.SubscriptionID, e.AddOnCode)
}

// AddOnNotPresentError is returned when updating, removing or reactivating
// an add-on the subscription does not carry.
type AddOnNotPresentError struct {
	SubscriptionID string
	AddOnCode      string
}

func (e *AddOnNotPresentError) Error() string {
	return fmt.Sprintf("subscription %s does not have add-on %s", e.SubscriptionID, e.AddOnCode)
}

// MissingBillingInfoError is returned when the provider has no billing info
// on file for the user.
type MissingBillingInfoError struct {
	UserID string
}

func (e *MissingBillingInfoError) Error() string {
	return fmt.Sprintf("no billing info on file for user %s", e.UserID)
}

// SubtotalLimitExceededError is returned when the provider rejects a change
// because it would exceed the account's subtotal limit. Adding carries the
// requested seat delta when the change came from a seat purchase, so callers
// can build a meaningful message.
type SubtotalLimitExceededError struct {
	SubscriptionID string
	Adding         int
}

func (e *SubtotalLimitExceededError) Error() string {
	return fmt.Sprintf("subtotal limit exceeded for subscription %s", e.SubscriptionID)
}

// PaymentActionRequiredError is returned when a transaction needs a
// customer-side authentication step. The payload must reach the caller
// intact so it can render the challenge.
type PaymentActionRequiredError struct {
	ClientSecret string
	PublicKey    string
}

func (e *PaymentActionRequiredError) Error() string {
	return "payment action required to complete transaction"
}
