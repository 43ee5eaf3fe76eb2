// Package revert rolls a subscription back to its last paid configuration
// when the payment for a plan change fails.
package revert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/scribehub/subscriptionkit/pkg/payment"
	"github.com/scribehub/subscriptionkit/pkg/subscription"
)

// maxInvoiceAge is how far past its due date a past-due invoice can be and
// still be attributed to the failed plan change. Older invoices belong to
// regular renewal dunning.
const maxInvoiceAge = 24 * time.Hour

// IndeterminateInvoiceError is returned when the failed invoice cannot be
// identified beyond doubt. The revert fails closed: it is better to leave
// the subscription alone than to fail the wrong invoice.
type IndeterminateInvoiceError struct {
	ProviderSubscriptionID string
}

func (e *IndeterminateInvoiceError) Error() string {
	return fmt.Sprintf("cannot determine invoice to fail for plan revert on subscription %s", e.ProviderSubscriptionID)
}

// Gateway is the provider surface the revert flow needs.
type Gateway interface {
	Subscription(ctx context.Context, subscriptionID string) (*payment.Subscription, error)
	PastDueInvoices(ctx context.Context, subscriptionID string) ([]payment.Invoice, error)
	FailInvoice(ctx context.Context, invoiceID string) error
	ApplyChangeRequest(ctx context.Context, req *payment.ChangeRequest) error
}

// Syncer re-synchronizes the local record after the provider-side revert.
type Syncer interface {
	SyncSubscription(ctx context.Context, providerSub *payment.Subscription, adminID string) error
}

// Controller handles failed-payment notifications for plan changes.
type Controller struct {
	gateway Gateway
	store   subscription.Store
	syncer  Syncer
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a revert controller.
func NewController(gateway Gateway, store subscription.Store, syncer Syncer, opts ...Option) *Controller {
	if gateway == nil {
		panic("revert: gateway is required")
	}
	if store == nil {
		panic("revert: store is required")
	}
	if syncer == nil {
		panic("revert: syncer is required")
	}
	c := &Controller{
		gateway: gateway,
		store:   store,
		syncer:  syncer,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleFailedPayment reverts the subscription's last plan change if a
// restore point exists. Without one the notification is ignored: a failed
// renewal is handled by the provider's dunning process, not here.
func (c *Controller) HandleFailedPayment(ctx context.Context, providerSubscriptionID string) error {
	sub, err := c.store.ByProviderSubscriptionID(ctx, providerSubscriptionID)
	if err != nil {
		return err
	}
	restorePoint := sub.LastSuccessfulSubscription
	if restorePoint == nil || restorePoint.PlanCode == "" {
		c.logger.DebugContext(ctx, "no restore point for failed payment, leaving to dunning",
			slog.String("provider_subscription_id", providerSubscriptionID))
		return nil
	}
	return c.revertPlanChange(ctx, sub, restorePoint)
}

func (c *Controller) revertPlanChange(ctx context.Context, sub *subscription.Subscription, restorePoint *subscription.RestorePoint) error {
	providerSubID := sub.ProviderSubscriptionID()
	providerSub, err := c.gateway.Subscription(ctx, providerSubID)
	if err != nil {
		return err
	}

	invoice, err := c.invoiceToFail(ctx, providerSubID)
	if err != nil {
		return err
	}
	if err := c.gateway.FailInvoice(ctx, invoice.ID); err != nil {
		return err
	}

	req := providerSub.ChangeRequestForPlanRevert(restorePoint.PlanCode, restorePoint.RevertAddOns())
	if err := c.gateway.ApplyChangeRequest(ctx, req); err != nil {
		return err
	}

	if err := c.store.ConsumeRestorePoint(ctx, sub.ID); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "reverted plan change after failed payment",
		slog.String("subscription_id", sub.ID),
		slog.String("plan_code", restorePoint.PlanCode))

	return c.syncer.SyncSubscription(ctx, providerSub, providerSub.UserID)
}

// invoiceToFail identifies the invoice raised by the failed plan change:
// exactly one past-due invoice, due within the last day, collected
// automatically. Anything else is indeterminate.
func (c *Controller) invoiceToFail(ctx context.Context, providerSubscriptionID string) (payment.Invoice, error) {
	invoices, err := c.gateway.PastDueInvoices(ctx, providerSubscriptionID)
	if err != nil {
		return payment.Invoice{}, err
	}
	if len(invoices) != 1 {
		return payment.Invoice{}, &IndeterminateInvoiceError{ProviderSubscriptionID: providerSubscriptionID}
	}
	invoice := invoices[0]
	if c.now().Sub(invoice.DueAt) > maxInvoiceAge {
		return payment.Invoice{}, &IndeterminateInvoiceError{ProviderSubscriptionID: providerSubscriptionID}
	}
	if invoice.CollectionMethod != payment.CollectionAutomatic {
		return payment.Invoice{}, &IndeterminateInvoiceError{ProviderSubscriptionID: providerSubscriptionID}
	}
	return invoice, nil
}
