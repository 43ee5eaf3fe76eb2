package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/scribehub/subscriptionkit/pkg/revert"
)

// Event is a provider callback event type, already parsed from the
// provider's notification format.
type Event string

const (
	EventFailedPayment       Event = "failed_payment"
	EventNewSubscription     Event = "new_subscription"
	EventUpdatedSubscription Event = "updated_subscription"
	EventExpiredSubscription Event = "expired_subscription"
	EventSubscriptionPaused  Event = "subscription_paused"
	EventSubscriptionResumed Event = "subscription_resumed"
)

// Notification is one provider callback.
type Notification struct {
	Event                  Event
	ProviderSubscriptionID string
	AccountCode            string
}

// FailedPaymentHandler reverts a plan change after a failed payment. The
// revert controller satisfies it.
type FailedPaymentHandler interface {
	HandleFailedPayment(ctx context.Context, providerSubscriptionID string) error
}

// NotificationDispatcher routes provider callbacks to the revert flow or
// the syncer.
type NotificationDispatcher struct {
	gateway        Gateway
	syncer         Syncer
	failedPayments FailedPaymentHandler
	logger         *slog.Logger
}

// NewNotificationDispatcher creates a dispatcher.
func NewNotificationDispatcher(gateway Gateway, syncer Syncer, failedPayments FailedPaymentHandler, logger *slog.Logger) *NotificationDispatcher {
	if gateway == nil {
		panic("lifecycle: gateway is required")
	}
	if syncer == nil {
		panic("lifecycle: syncer is required")
	}
	if failedPayments == nil {
		panic("lifecycle: failed payment handler is required")
	}
	return &NotificationDispatcher{
		gateway:        gateway,
		syncer:         syncer,
		failedPayments: failedPayments,
		logger:         logger,
	}
}

// Dispatch handles one provider notification. Unknown events are ignored so
// new provider event types never break callback processing.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, n Notification) error {
	switch n.Event {
	case EventFailedPayment:
		return d.handleFailedPayment(ctx, n)
	case EventNewSubscription, EventUpdatedSubscription, EventExpiredSubscription,
		EventSubscriptionPaused, EventSubscriptionResumed:
		return d.sync(ctx, n)
	default:
		d.logger.DebugContext(ctx, "ignoring provider notification",
			slog.String("event", string(n.Event)))
		return nil
	}
}

func (d *NotificationDispatcher) handleFailedPayment(ctx context.Context, n Notification) error {
	// A failed manual charge carries no subscription id; there is nothing
	// to revert.
	if n.ProviderSubscriptionID == "" {
		d.logger.InfoContext(ctx, "ignoring failed payment notification without subscription id")
		return nil
	}
	err := d.failedPayments.HandleFailedPayment(ctx, n.ProviderSubscriptionID)
	var indeterminate *revert.IndeterminateInvoiceError
	if errors.As(err, &indeterminate) {
		d.logger.WarnContext(ctx, "could not determine invoice to fail for subscription",
			slog.String("provider_subscription_id", n.ProviderSubscriptionID))
		return nil
	}
	return err
}

func (d *NotificationDispatcher) sync(ctx context.Context, n Notification) error {
	providerSub, err := d.gateway.Subscription(ctx, n.ProviderSubscriptionID)
	if err != nil {
		return err
	}
	return d.syncer.SyncSubscription(ctx, providerSub, providerSub.UserID)
}
