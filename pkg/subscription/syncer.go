package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/scribehub/subscriptionkit/pkg/payment"
	"github.com/scribehub/subscriptionkit/pkg/plan"
)

// EntitlementsRefresher schedules a re-evaluation of user entitlements
// after a subscription changes. Refresh failures must not fail the sync, so
// errors are logged and swallowed by the syncer.
type EntitlementsRefresher interface {
	ScheduleRefresh(ctx context.Context, userIDs []string, reason string) error
}

// AccountMapper records the linkage between a local subscription record and
// its provider-side counterpart for analytics. Fire-and-forget.
type AccountMapper interface {
	RegisterSubscriptionMapping(ctx context.Context, subscriptionID, providerSubscriptionID string) error
}

// Syncer folds provider subscription data into local records.
type Syncer struct {
	store     Store
	catalog   *plan.Catalog
	refresher EntitlementsRefresher
	mapper    AccountMapper
	logger    *slog.Logger
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithEntitlementsRefresher sets the refresher notified after each sync.
func WithEntitlementsRefresher(refresher EntitlementsRefresher) SyncerOption {
	return func(s *Syncer) { s.refresher = refresher }
}

// WithAccountMapper sets the analytics account mapper.
func WithAccountMapper(mapper AccountMapper) SyncerOption {
	return func(s *Syncer) { s.mapper = mapper }
}

// WithSyncerLogger sets the logger.
func WithSyncerLogger(logger *slog.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = logger }
}

// NewSyncer creates a syncer.
func NewSyncer(store Store, catalog *plan.Catalog, opts ...SyncerOption) *Syncer {
	if store == nil {
		panic("subscription: store is required")
	}
	if catalog == nil {
		panic("subscription: catalog is required")
	}
	s := &Syncer{
		store:   store,
		catalog: catalog,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncSubscription finds or creates the admin's local record and folds the
// provider subscription into it.
func (s *Syncer) SyncSubscription(ctx context.Context, providerSub *payment.Subscription, adminID string) error {
	sub, err := s.store.ByAdmin(ctx, adminID)
	if errors.Is(err, ErrNotFound) {
		sub, err = s.store.Create(ctx, adminID)
	}
	if err != nil {
		return err
	}
	return s.UpdateFromProviderSubscription(ctx, sub, providerSub)
}

// UpdateFromProviderSubscription applies the provider's view of the
// subscription onto the local record.
func (s *Syncer) UpdateFromProviderSubscription(ctx context.Context, sub *Subscription, providerSub *payment.Subscription) error {
	// A record owned by a competing provider must never be overwritten
	// with this provider's data.
	if service := sub.ProviderService(); strings.Contains(service, "stripe") {
		s.logger.WarnContext(ctx, "attempted to update subscription owned by another provider",
			slog.String("subscription_id", sub.ID),
			slog.String("service", service))
		return nil
	}

	if providerSub.State == payment.StateExpired {
		return s.handleExpired(ctx, sub)
	}

	localPlan, err := s.catalog.Find(providerSub.PlanCode)
	if err != nil {
		return fmt.Errorf("sync subscription %s: %w", sub.ID, err)
	}

	// Moving from a group plan to an individual one replaces the record
	// entirely so group membership does not leak into the new plan.
	if !localPlan.Group && sub.GroupPlan {
		return s.deleteAndReplace(ctx, sub, providerSub)
	}

	sub.PlanCode = providerSub.PlanCode
	sub.AddOns = SnapshotAddOns(providerSub.AddOns)
	sub.PaymentProvider = &ProviderRecord{
		Service:        providerSub.Service,
		SubscriptionID: providerSub.ID,
		State:          string(providerSub.State),
		TrialStartedAt: providerSub.TrialPeriodStart,
		TrialEndsAt:    providerSub.TrialPeriodEnd,
	}

	if localPlan.Group {
		if !sub.GroupPlan {
			sub.MemberIDs = append(sub.MemberIDs, sub.AdminID)
		}
		sub.GroupPlan = true
		sub.MembersLimit = localPlan.MembersLimit
		if localPlan.MembersLimitAddOn != "" {
			for _, addOn := range providerSub.AddOns {
				if addOn.Code == localPlan.MembersLimitAddOn {
					sub.MembersLimit += addOn.Quantity
				}
			}
		}
	}

	if err := s.store.Save(ctx, sub); err != nil {
		return err
	}

	if s.mapper != nil {
		if err := s.mapper.RegisterSubscriptionMapping(ctx, sub.ID, providerSub.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to register account mapping",
				slog.String("subscription_id", sub.ID), slog.Any("error", err))
		}
	}
	s.scheduleRefresh(ctx, sub)
	return nil
}

// handleExpired deletes the local record for an expired subscription unless
// a managed-users or group SSO arrangement pins the group in place.
func (s *Syncer) handleExpired(ctx context.Context, sub *Subscription) error {
	switch {
	case sub.ManagedUsersEnabled:
		s.logger.WarnContext(ctx, "expired subscription has managed users enabled, skipping deletion",
			slog.String("subscription_id", sub.ID))
		return nil
	case sub.GroupSSOEnabled:
		s.logger.WarnContext(ctx, "expired subscription has group SSO enabled, skipping deletion",
			slog.String("subscription_id", sub.ID))
		return nil
	}
	if err := s.store.Delete(ctx, sub.ID); err != nil {
		return err
	}
	s.scheduleRefresh(ctx, sub)
	return nil
}

func (s *Syncer) deleteAndReplace(ctx context.Context, sub *Subscription, providerSub *payment.Subscription) error {
	if err := s.store.Delete(ctx, sub.ID); err != nil {
		return err
	}
	s.scheduleRefresh(ctx, sub)

	replacement, err := s.store.Create(ctx, sub.AdminID)
	if err != nil {
		return err
	}
	return s.UpdateFromProviderSubscription(ctx, replacement, providerSub)
}

func (s *Syncer) scheduleRefresh(ctx context.Context, sub *Subscription) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.ScheduleRefresh(ctx, sub.AllUserIDs(), "subscription-sync"); err != nil {
		s.logger.ErrorContext(ctx, "failed to schedule entitlements refresh",
			slog.String("subscription_id", sub.ID), slog.Any("error", err))
	}
}
