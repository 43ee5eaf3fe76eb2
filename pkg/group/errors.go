package group

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoSubscription is returned when the user owns no subscription
	// record.
	ErrNoSubscription = errors.New("no subscription was found")

	// ErrNotGroupPlan is returned when an operation requires a group
	// subscription but the user's plan is individual.
	ErrNotGroupPlan = errors.New("subscription is not a group plan")

	// ErrFlexibleLicensingUnsupported is returned when the plan cannot
	// change its seat count.
	ErrFlexibleLicensingUnsupported = errors.New("the group plan does not support flexible licensing")

	// ErrSubscriptionInactive is returned when the provider-side state is
	// anything but active.
	ErrSubscriptionInactive = errors.New("the subscription is not active")

	// ErrManuallyCollected is returned when an operation requires automatic
	// collection.
	ErrManuallyCollected = errors.New("the subscription is collected manually")

	// ErrMissingAdditionalLicense is returned when a manually collected
	// subscription lacks the additional-license add-on that seat changes
	// are billed through.
	ErrMissingAdditionalLicense = errors.New("manually collected subscription has no additional-license add-on")

	// ErrPendingChange is returned when the subscription already has a
	// scheduled change.
	ErrPendingChange = errors.New("the subscription has a pending change")

	// ErrPastDueInvoice is returned when the account carries a past-due
	// invoice.
	ErrPastDueInvoice = errors.New("the subscription has a past due invoice")
)

// InvalidEmailError rejects a whole bulk update because of malformed
// addresses. No part of the batch is applied.
type InvalidEmailError struct {
	Emails []string
}

func (e *InvalidEmailError) Error() string {
	return fmt.Sprintf("invalid emails: %s", strings.Join(e.Emails, ", "))
}

// MembersLimitReachedError is returned when a committed bulk update would
// exceed the group's members limit.
type MembersLimitReachedError struct {
	CurrentMemberCount int
	NewTotalCount      int
	MembersLimit       int
}

func (e *MembersLimitReachedError) Error() string {
	return fmt.Sprintf("members limit reached: %d members requested, limit is %d", e.NewTotalCount, e.MembersLimit)
}
