package group

import (
	"github.com/scribehub/subscriptionkit/pkg/payment"
	"github.com/scribehub/subscriptionkit/pkg/plan"
	"github.com/scribehub/subscriptionkit/pkg/subscription"
)

// Guard predicates run before every mutating seat operation. Each names
// the violated precondition so callers can map it to a user-facing
// message.

// EnsureFlexibleLicensingEnabled rejects plans whose seat count is fixed.
func EnsureFlexibleLicensingEnabled(p plan.Plan) error {
	if !p.CanUseFlexibleLicensing {
		return ErrFlexibleLicensingUnsupported
	}
	return nil
}

// EnsureSubscriptionIsActive rejects records whose provider-side state is
// not active.
func EnsureSubscriptionIsActive(record *subscription.Subscription) error {
	if record.PaymentProvider == nil || record.PaymentProvider.State != "active" {
		return ErrSubscriptionInactive
	}
	return nil
}

// EnsureCollectionMethodIsNotManual rejects manually collected
// subscriptions.
func EnsureCollectionMethodIsNotManual(providerSub *payment.Subscription) error {
	if providerSub.IsCollectionMethodManual() {
		return ErrManuallyCollected
	}
	return nil
}

// EnsureNoPendingChange rejects subscriptions with a scheduled change.
func EnsureNoPendingChange(providerSub *payment.Subscription) error {
	if providerSub.PendingChange != nil {
		return ErrPendingChange
	}
	return nil
}

// EnsureNoPastDueInvoice rejects accounts carrying a past-due invoice.
func EnsureNoPastDueInvoice(account *payment.Account) error {
	if account != nil && account.HasPastDueInvoice {
		return ErrPastDueInvoice
	}
	return nil
}

// EnsureAdditionalLicenseWhenManual requires manually collected
// subscriptions to already carry the additional-license add-on, since seat
// changes on them can only update that add-on's quantity.
func EnsureAdditionalLicenseWhenManual(providerSub *payment.Subscription) error {
	if providerSub.IsCollectionMethodManual() && !providerSub.HasAddOn(payment.MembersLimitAddOnCode) {
		return ErrMissingAdditionalLicense
	}
	return nil
}
