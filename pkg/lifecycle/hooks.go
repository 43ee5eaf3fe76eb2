package lifecycle

import (
	"context"

	"github.com/scribehub/subscriptionkit/pkg/hook"
	"github.com/scribehub/subscriptionkit/pkg/payment"
	"github.com/scribehub/subscriptionkit/pkg/subscription"
)

// PaymentRecord bundles the provider-side view of a local subscription
// record.
type PaymentRecord struct {
	Subscription *payment.Subscription
	Account      *payment.Account
	Coupons      []payment.Coupon
}

// TermsInput is the context for generating invoice terms and conditions.
type TermsInput struct {
	Currency string
	PONumber string
}

// Hooks is the typed extension point set other packages program against.
// Consumers fire hooks; whoever wires the application registers handlers,
// normally via RegisterGateway.
type Hooks struct {
	GetPaymentFromRecord       hook.Hook[*subscription.Subscription, *PaymentRecord]
	GetPaymentMethod           hook.Hook[string, payment.Method]
	GenerateTermsAndConditions hook.Hook[TermsInput, string]
	PreviewChangeRequest       hook.Hook[*payment.ChangeRequest, *payment.Change]
	ApplyChangeAndSync         hook.Hook[*payment.ChangeRequest, struct{}]
	UpdateSubscriptionDetails  hook.Hook[*payment.UpdateRequest, struct{}]
}

// Syncer re-synchronizes a local record from provider data.
type Syncer interface {
	SyncSubscription(ctx context.Context, providerSub *payment.Subscription, adminID string) error
}

// Gateway is the provider surface the lifecycle operations need. The
// recurly gateway satisfies it.
type Gateway interface {
	AccountForUser(ctx context.Context, userID string) (*payment.Account, error)
	CouponsForUser(ctx context.Context, userID string) ([]payment.Coupon, error)
	PaymentMethod(ctx context.Context, userID string) (payment.Method, error)
	Subscription(ctx context.Context, subscriptionID string) (*payment.Subscription, error)
	SubscriptionForUser(ctx context.Context, userID string) (*payment.Subscription, error)
	ApplyChangeRequest(ctx context.Context, req *payment.ChangeRequest) error
	PreviewChangeRequest(ctx context.Context, req *payment.ChangeRequest) (*payment.Change, error)
	RemovePendingChange(ctx context.Context, subscriptionID string) error
	UpdateSubscriptionDetails(ctx context.Context, req *payment.UpdateRequest) error
	CancelSubscription(ctx context.Context, subscriptionID string) error
	ReactivateSubscription(ctx context.Context, subscriptionID string) error
	PauseSubscription(ctx context.Context, subscriptionID string, pauseCycles int) error
	ResumeSubscription(ctx context.Context, subscriptionID string) error
}

// RegisterGateway wires the provider gateway and syncer in as the default
// handler set. GenerateTermsAndConditions stays unregistered: terms wording
// belongs to the application, and consumers fall back to empty terms when
// no handler exists.
func (h *Hooks) RegisterGateway(gateway Gateway, syncer Syncer) {
	h.GetPaymentFromRecord.Register(func(ctx context.Context, sub *subscription.Subscription) (*PaymentRecord, error) {
		providerSubID := sub.ProviderSubscriptionID()
		if providerSubID == "" {
			return nil, subscription.ErrNoProviderLinkage
		}
		providerSub, err := gateway.Subscription(ctx, providerSubID)
		if err != nil {
			return nil, err
		}
		account, err := gateway.AccountForUser(ctx, sub.AdminID)
		if err != nil {
			return nil, err
		}
		coupons, err := gateway.CouponsForUser(ctx, sub.AdminID)
		if err != nil {
			return nil, err
		}
		return &PaymentRecord{Subscription: providerSub, Account: account, Coupons: coupons}, nil
	})

	h.GetPaymentMethod.Register(func(ctx context.Context, userID string) (payment.Method, error) {
		return gateway.PaymentMethod(ctx, userID)
	})

	h.PreviewChangeRequest.Register(func(ctx context.Context, req *payment.ChangeRequest) (*payment.Change, error) {
		return gateway.PreviewChangeRequest(ctx, req)
	})

	h.ApplyChangeAndSync.Register(func(ctx context.Context, req *payment.ChangeRequest) (struct{}, error) {
		if err := gateway.ApplyChangeRequest(ctx, req); err != nil {
			return struct{}{}, err
		}
		providerSub, err := gateway.Subscription(ctx, req.Subscription.ID)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, syncer.SyncSubscription(ctx, providerSub, providerSub.UserID)
	})

	h.UpdateSubscriptionDetails.Register(func(ctx context.Context, req *payment.UpdateRequest) (struct{}, error) {
		return struct{}{}, gateway.UpdateSubscriptionDetails(ctx, req)
	})
}
