package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/scribehub/subscriptionkit/pkg/payment"
	"github.com/scribehub/subscriptionkit/pkg/plan"
	"github.com/scribehub/subscriptionkit/pkg/subscription"
)

// maxPauseCycles limits how long a subscription can be paused. Zero cycles
// cancels a pending pause.
const maxPauseCycles = 12

// EmailScheduler schedules lifecycle notification emails. Scheduling
// failures never fail the operation that triggered them.
type EmailScheduler interface {
	ScheduleCancellationEmail(ctx context.Context, userID string) error
}

// Manager implements the user-facing subscription operations.
type Manager struct {
	gateway Gateway
	store   subscription.Store
	syncer  Syncer
	catalog *plan.Catalog
	emails  EmailScheduler
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithEmailScheduler sets the scheduler for lifecycle emails.
func WithEmailScheduler(emails EmailScheduler) Option {
	return func(m *Manager) { m.emails = emails }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a lifecycle manager.
func NewManager(gateway Gateway, store subscription.Store, syncer Syncer, catalog *plan.Catalog, opts ...Option) *Manager {
	if gateway == nil {
		panic("lifecycle: gateway is required")
	}
	if store == nil {
		panic("lifecycle: store is required")
	}
	if syncer == nil {
		panic("lifecycle: syncer is required")
	}
	if catalog == nil {
		panic("lifecycle: catalog is required")
	}
	m := &Manager{
		gateway: gateway,
		store:   store,
		syncer:  syncer,
		catalog: catalog,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) activeSubscription(ctx context.Context, userID string) (*payment.Subscription, error) {
	providerSub, err := m.gateway.SubscriptionForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if providerSub == nil {
		return nil, ErrNoActiveSubscription
	}
	return providerSub, nil
}

// planChangeRequest builds the change request for a plan switch, deciding
// the timeframe from the catalog prices.
func (m *Manager) planChangeRequest(providerSub *payment.Subscription, planCode string) (*payment.ChangeRequest, error) {
	currentPlan, err := m.catalog.Find(providerSub.PlanCode)
	if err != nil {
		return nil, err
	}
	nextPlan, err := m.catalog.Find(planCode)
	if err != nil {
		return nil, err
	}
	atTermEnd := plan.ShouldPlanChangeAtTermEnd(currentPlan, nextPlan, providerSub.IsInTrial(m.now()))
	return providerSub.ChangeRequestForPlanChange(planCode, 1, atTermEnd), nil
}

// PreviewPlanChange previews switching the user's subscription to another
// plan, including the immediate charge if the change applies now.
func (m *Manager) PreviewPlanChange(ctx context.Context, userID, planCode string) (*payment.Change, error) {
	providerSub, err := m.activeSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	req, err := m.planChangeRequest(providerSub, planCode)
	if err != nil {
		return nil, err
	}
	return m.gateway.PreviewChangeRequest(ctx, req)
}

// ApplyPlanChange switches the user's subscription to another plan. After a
// successful immediate change the previous configuration is recorded as the
// restore point, so a payment failure reported later can roll the change
// back. Term-end changes charge nothing and need no restore point.
func (m *Manager) ApplyPlanChange(ctx context.Context, userID, planCode string) error {
	providerSub, err := m.activeSubscription(ctx, userID)
	if err != nil {
		return err
	}
	req, err := m.planChangeRequest(providerSub, planCode)
	if err != nil {
		return err
	}
	if err := m.gateway.ApplyChangeRequest(ctx, req); err != nil {
		return err
	}

	if req.Timeframe == payment.TimeframeNow {
		if err := m.setRestorePoint(ctx, userID, providerSub); err != nil {
			return err
		}
	}
	return m.resync(ctx, providerSub)
}

func (m *Manager) setRestorePoint(ctx context.Context, userID string, previous *payment.Subscription) error {
	sub, err := m.store.ByAdmin(ctx, userID)
	if err != nil {
		return fmt.Errorf("set restore point: %w", err)
	}
	return m.store.SetRestorePoint(ctx, sub.ID, previous.PlanCode, subscription.SnapshotAddOns(previous.AddOns))
}

func (m *Manager) resync(ctx context.Context, providerSub *payment.Subscription) error {
	refreshed, err := m.gateway.Subscription(ctx, providerSub.ID)
	if err != nil {
		return err
	}
	return m.syncer.SyncSubscription(ctx, refreshed, refreshed.UserID)
}

// PurchaseAddOn adds an add-on to the user's subscription at the catalog
// price.
func (m *Manager) PurchaseAddOn(ctx context.Context, userID, addOnCode string, quantity int) error {
	providerSub, err := m.activeSubscription(ctx, userID)
	if err != nil {
		return err
	}
	req, err := providerSub.ChangeRequestForAddOnPurchase(addOnCode, quantity, nil)
	if err != nil {
		return err
	}
	if err := m.gateway.ApplyChangeRequest(ctx, req); err != nil {
		return err
	}
	return m.resync(ctx, providerSub)
}

// RemoveAddOn drops an add-on from the user's subscription.
func (m *Manager) RemoveAddOn(ctx context.Context, userID, addOnCode string) error {
	providerSub, err := m.activeSubscription(ctx, userID)
	if err != nil {
		return err
	}
	req, err := providerSub.ChangeRequestForAddOnRemoval(addOnCode, m.now())
	if err != nil {
		return err
	}
	if err := m.gateway.ApplyChangeRequest(ctx, req); err != nil {
		return err
	}
	return m.resync(ctx, providerSub)
}

// ReactivateAddOn undoes a pending add-on removal.
func (m *Manager) ReactivateAddOn(ctx context.Context, userID, addOnCode string) error {
	providerSub, err := m.activeSubscription(ctx, userID)
	if err != nil {
		return err
	}
	req, err := providerSub.ChangeRequestForAddOnReactivation(addOnCode)
	if err != nil {
		return err
	}
	if err := m.gateway.ApplyChangeRequest(ctx, req); err != nil {
		return err
	}
	return m.resync(ctx, providerSub)
}

// CancelPendingChange removes the subscription's pending change.
func (m *Manager) CancelPendingChange(ctx context.Context, userID string) error {
	providerSub, err := m.activeSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.gateway.RemovePendingChange(ctx, providerSub.ID); err != nil {
		return err
	}
	return m.resync(ctx, providerSub)
}

// CancelSubscription cancels the user's subscription at term end and
// schedules the cancellation email.
func (m *Manager) CancelSubscription(ctx context.Context, userID string) error {
	providerSub, err := m.activeSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.gateway.CancelSubscription(ctx, providerSub.ID); err != nil {
		return err
	}
	if m.emails != nil {
		if err := m.emails.ScheduleCancellationEmail(ctx, userID); err != nil {
			m.logger.ErrorContext(ctx, "failed to schedule cancellation email",
				slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	return m.resync(ctx, providerSub)
}

// ReactivateSubscription undoes a pending cancellation.
func (m *Manager) ReactivateSubscription(ctx context.Context, userID string) error {
	providerSub, err := m.activeSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.gateway.ReactivateSubscription(ctx, providerSub.ID); err != nil {
		return err
	}
	return m.resync(ctx, providerSub)
}

// PauseSubscription pauses the subscription for the given number of billing
// cycles. Zero cancels a pending pause.
func (m *Manager) PauseSubscription(ctx context.Context, userID string, pauseCycles int) error {
	if pauseCycles < 0 || pauseCycles > maxPauseCycles {
		return ErrInvalidPauseCycles
	}
	providerSub, err := m.activeSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.gateway.PauseSubscription(ctx, providerSub.ID, pauseCycles); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "paused subscription",
		slog.String("user_id", userID), slog.Int("pause_cycles", pauseCycles))
	return m.resync(ctx, providerSub)
}

// ResumeSubscription resumes a paused subscription immediately.
func (m *Manager) ResumeSubscription(ctx context.Context, userID string) error {
	providerSub, err := m.activeSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.gateway.ResumeSubscription(ctx, providerSub.ID); err != nil {
		return err
	}
	return m.resync(ctx, providerSub)
}
