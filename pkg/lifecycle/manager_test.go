package lifecycle_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scribehub/subscriptionkit/pkg/lifecycle"
	"github.com/scribehub/subscriptionkit/pkg/payment"
	"github.com/scribehub/subscriptionkit/pkg/plan"
	"github.com/scribehub/subscriptionkit/pkg/revert"
	"github.com/scribehub/subscriptionkit/pkg/subscription"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) AccountForUser(ctx context.Context, userID string) (*payment.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Account), args.Error(1)
}

func (m *mockGateway) CouponsForUser(ctx context.Context, userID string) ([]payment.Coupon, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment.Coupon), args.Error(1)
}

func (m *mockGateway) PaymentMethod(ctx context.Context, userID string) (payment.Method, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(payment.Method), args.Error(1)
}

func (m *mockGateway) Subscription(ctx context.Context, subscriptionID string) (*payment.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Subscription), args.Error(1)
}

func (m *mockGateway) SubscriptionForUser(ctx context.Context, userID string) (*payment.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Subscription), args.Error(1)
}

func (m *mockGateway) ApplyChangeRequest(ctx context.Context, req *payment.ChangeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockGateway) PreviewChangeRequest(ctx context.Context, req *payment.ChangeRequest) (*payment.Change, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Change), args.Error(1)
}

func (m *mockGateway) RemovePendingChange(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockGateway) UpdateSubscriptionDetails(ctx context.Context, req *payment.UpdateRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockGateway) ReactivateSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockGateway) PauseSubscription(ctx context.Context, subscriptionID string, pauseCycles int) error {
	return m.Called(ctx, subscriptionID, pauseCycles).Error(0)
}

func (m *mockGateway) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) SyncSubscription(ctx context.Context, providerSub *payment.Subscription, adminID string) error {
	return m.Called(ctx, providerSub, adminID).Error(0)
}

type managerStore struct {
	subscription.Store
	mock.Mock
}

func (m *managerStore) ByAdmin(ctx context.Context, adminID string) (*subscription.Subscription, error) {
	args := m.Called(ctx, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *managerStore) SetRestorePoint(ctx context.Context, id, planCode string, addOns []subscription.AddOnSnapshot) error {
	return m.Called(ctx, id, planCode, addOns).Error(0)
}

type mockEmails struct {
	mock.Mock
}

func (m *mockEmails) ScheduleCancellationEmail(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func testCatalog(t *testing.T) *plan.Catalog {
	t.Helper()
	catalog, err := plan.NewCatalog([]plan.Plan{
		{Code: "collaborator", Name: "Collaborator", Price: 15},
		{Code: "professional", Name: "Professional", Price: 20},
	})
	require.NoError(t, err)
	return catalog
}

func activeProviderSub(t *testing.T, planCode string) *payment.Subscription {
	t.Helper()
	sub, err := payment.NewSubscription(payment.Subscription{
		ID:       "prov-1",
		UserID:   "user-1",
		PlanCode: planCode,
		Currency: "USD",
		AddOns:   []payment.AddOn{payment.NewAddOn("extra", "Extra", 1, 5)},
	})
	require.NoError(t, err)
	return sub
}

func TestApplyPlanChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("immediate upgrade writes a restore point", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)
		gateway.On("ApplyChangeRequest", ctx, mock.MatchedBy(func(req *payment.ChangeRequest) bool {
			return req.PlanCode == "professional" && req.Timeframe == payment.TimeframeNow
		})).Return(nil)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)

		store := new(managerStore)
		store.On("ByAdmin", ctx, "user-1").Return(&subscription.Subscription{ID: "sub-1", AdminID: "user-1"}, nil)
		store.On("SetRestorePoint", ctx, "sub-1", "collaborator", []subscription.AddOnSnapshot{
			{AddOnCode: "extra", Quantity: 1, UnitAmountInCents: 500},
		}).Return(nil)

		syncer := new(mockSyncer)
		syncer.On("SyncSubscription", ctx, providerSub, "user-1").Return(nil)

		manager := lifecycle.NewManager(gateway, store, syncer, testCatalog(t))
		require.NoError(t, manager.ApplyPlanChange(ctx, "user-1", "professional"))
		store.AssertExpectations(t)
		syncer.AssertExpectations(t)
	})

	t.Run("downgrade waits for term end and writes no restore point", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "professional")
		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)
		gateway.On("ApplyChangeRequest", ctx, mock.MatchedBy(func(req *payment.ChangeRequest) bool {
			return req.PlanCode == "collaborator" && req.Timeframe == payment.TimeframeTermEnd
		})).Return(nil)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)

		store := new(managerStore)
		syncer := new(mockSyncer)
		syncer.On("SyncSubscription", ctx, providerSub, "user-1").Return(nil)

		manager := lifecycle.NewManager(gateway, store, syncer, testCatalog(t))
		require.NoError(t, manager.ApplyPlanChange(ctx, "user-1", "collaborator"))
		store.AssertNotCalled(t, "SetRestorePoint", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("downgrade during trial applies immediately", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "professional")
		trialEnd := time.Now().Add(5 * 24 * time.Hour)
		providerSub.TrialPeriodEnd = &trialEnd

		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)
		gateway.On("ApplyChangeRequest", ctx, mock.MatchedBy(func(req *payment.ChangeRequest) bool {
			return req.Timeframe == payment.TimeframeNow
		})).Return(nil)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)

		store := new(managerStore)
		store.On("ByAdmin", ctx, "user-1").Return(&subscription.Subscription{ID: "sub-1", AdminID: "user-1"}, nil)
		store.On("SetRestorePoint", ctx, "sub-1", "professional", mock.Anything).Return(nil)
		syncer := new(mockSyncer)
		syncer.On("SyncSubscription", ctx, providerSub, "user-1").Return(nil)

		manager := lifecycle.NewManager(gateway, store, syncer, testCatalog(t))
		require.NoError(t, manager.ApplyPlanChange(ctx, "user-1", "collaborator"))
	})

	t.Run("no active subscription", func(t *testing.T) {
		t.Parallel()

		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(nil, nil)

		manager := lifecycle.NewManager(gateway, new(managerStore), new(mockSyncer), testCatalog(t))
		err := manager.ApplyPlanChange(ctx, "user-1", "professional")
		assert.ErrorIs(t, err, lifecycle.ErrNoActiveSubscription)
	})
}

func TestPreviewPlanChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	providerSub := activeProviderSub(t, "collaborator")

	gateway := new(mockGateway)
	gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)
	expected := &payment.Change{NextPlanCode: "professional"}
	gateway.On("PreviewChangeRequest", ctx, mock.Anything).Return(expected, nil)

	manager := lifecycle.NewManager(gateway, new(managerStore), new(mockSyncer), testCatalog(t))
	change, err := manager.PreviewPlanChange(ctx, "user-1", "professional")
	require.NoError(t, err)
	assert.Same(t, expected, change)
}

func TestPauseSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("rejects out of range cycles", func(t *testing.T) {
		t.Parallel()

		manager := lifecycle.NewManager(new(mockGateway), new(managerStore), new(mockSyncer), testCatalog(t))
		assert.ErrorIs(t, manager.PauseSubscription(ctx, "user-1", -1), lifecycle.ErrInvalidPauseCycles)
		assert.ErrorIs(t, manager.PauseSubscription(ctx, "user-1", 13), lifecycle.ErrInvalidPauseCycles)
	})

	t.Run("pauses within bounds", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)
		gateway.On("PauseSubscription", ctx, "prov-1", 3).Return(nil)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)
		syncer := new(mockSyncer)
		syncer.On("SyncSubscription", ctx, providerSub, "user-1").Return(nil)

		manager := lifecycle.NewManager(gateway, new(managerStore), syncer, testCatalog(t))
		require.NoError(t, manager.PauseSubscription(ctx, "user-1", 3))
		gateway.AssertExpectations(t)
	})

	t.Run("zero cancels a pending pause", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)
		gateway.On("PauseSubscription", ctx, "prov-1", 0).Return(nil)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)
		syncer := new(mockSyncer)
		syncer.On("SyncSubscription", ctx, providerSub, "user-1").Return(nil)

		manager := lifecycle.NewManager(gateway, new(managerStore), syncer, testCatalog(t))
		require.NoError(t, manager.PauseSubscription(ctx, "user-1", 0))
	})
}

func TestCancelSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("cancels and schedules the email", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)
		gateway.On("CancelSubscription", ctx, "prov-1").Return(nil)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)
		syncer := new(mockSyncer)
		syncer.On("SyncSubscription", ctx, providerSub, "user-1").Return(nil)
		emails := new(mockEmails)
		emails.On("ScheduleCancellationEmail", ctx, "user-1").Return(nil)

		manager := lifecycle.NewManager(gateway, new(managerStore), syncer, testCatalog(t),
			lifecycle.WithEmailScheduler(emails))
		require.NoError(t, manager.CancelSubscription(ctx, "user-1"))
		emails.AssertExpectations(t)
	})

	t.Run("email scheduling failure does not fail the cancel", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)
		gateway.On("CancelSubscription", ctx, "prov-1").Return(nil)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)
		syncer := new(mockSyncer)
		syncer.On("SyncSubscription", ctx, providerSub, "user-1").Return(nil)
		emails := new(mockEmails)
		emails.On("ScheduleCancellationEmail", ctx, "user-1").Return(assert.AnError)

		manager := lifecycle.NewManager(gateway, new(managerStore), syncer, testCatalog(t),
			lifecycle.WithEmailScheduler(emails))
		require.NoError(t, manager.CancelSubscription(ctx, "user-1"))
	})
}

func TestRemoveAndReactivateAddOn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("purchase applies and resyncs", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)
		gateway.On("ApplyChangeRequest", ctx, mock.Anything).Return(nil)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)
		syncer := new(mockSyncer)
		syncer.On("SyncSubscription", ctx, providerSub, "user-1").Return(nil)

		manager := lifecycle.NewManager(gateway, new(managerStore), syncer, testCatalog(t))
		require.NoError(t, manager.PurchaseAddOn(ctx, "user-1", "assist", 1))
	})

	t.Run("purchasing a held add-on fails without provider calls", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)

		manager := lifecycle.NewManager(gateway, new(managerStore), new(mockSyncer), testCatalog(t))
		err := manager.PurchaseAddOn(ctx, "user-1", "extra", 1)
		var dup *payment.DuplicateAddOnError
		assert.ErrorAs(t, err, &dup)
		gateway.AssertNotCalled(t, "ApplyChangeRequest", mock.Anything, mock.Anything)
	})

	t.Run("removing an absent add-on fails", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		gateway := new(mockGateway)
		gateway.On("SubscriptionForUser", ctx, "user-1").Return(providerSub, nil)

		manager := lifecycle.NewManager(gateway, new(managerStore), new(mockSyncer), testCatalog(t))
		err := manager.RemoveAddOn(ctx, "user-1", "assist")
		var notPresent *payment.AddOnNotPresentError
		assert.ErrorAs(t, err, &notPresent)
	})
}

func TestNotificationDispatcher(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("routes sync events", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		gateway := new(mockGateway)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)
		syncer := new(mockSyncer)
		syncer.On("SyncSubscription", ctx, providerSub, "user-1").Return(nil)

		dispatcher := lifecycle.NewNotificationDispatcher(gateway, syncer, new(mockFailedPayments), logger)
		require.NoError(t, dispatcher.Dispatch(ctx, lifecycle.Notification{
			Event:                  lifecycle.EventUpdatedSubscription,
			ProviderSubscriptionID: "prov-1",
		}))
		syncer.AssertExpectations(t)
	})

	t.Run("routes failed payments to the revert flow", func(t *testing.T) {
		t.Parallel()

		failed := new(mockFailedPayments)
		failed.On("HandleFailedPayment", ctx, "prov-1").Return(nil)

		dispatcher := lifecycle.NewNotificationDispatcher(new(mockGateway), new(mockSyncer), failed, logger)
		require.NoError(t, dispatcher.Dispatch(ctx, lifecycle.Notification{
			Event:                  lifecycle.EventFailedPayment,
			ProviderSubscriptionID: "prov-1",
		}))
		failed.AssertExpectations(t)
	})

	t.Run("failed payment without subscription id is ignored", func(t *testing.T) {
		t.Parallel()

		failed := new(mockFailedPayments)
		dispatcher := lifecycle.NewNotificationDispatcher(new(mockGateway), new(mockSyncer), failed, logger)
		require.NoError(t, dispatcher.Dispatch(ctx, lifecycle.Notification{Event: lifecycle.EventFailedPayment}))
		failed.AssertNotCalled(t, "HandleFailedPayment", mock.Anything, mock.Anything)
	})

	t.Run("indeterminate invoice is swallowed", func(t *testing.T) {
		t.Parallel()

		failed := new(mockFailedPayments)
		failed.On("HandleFailedPayment", ctx, "prov-1").
			Return(&revert.IndeterminateInvoiceError{ProviderSubscriptionID: "prov-1"})

		dispatcher := lifecycle.NewNotificationDispatcher(new(mockGateway), new(mockSyncer), failed, logger)
		require.NoError(t, dispatcher.Dispatch(ctx, lifecycle.Notification{
			Event:                  lifecycle.EventFailedPayment,
			ProviderSubscriptionID: "prov-1",
		}))
	})

	t.Run("unknown events are ignored", func(t *testing.T) {
		t.Parallel()

		dispatcher := lifecycle.NewNotificationDispatcher(new(mockGateway), new(mockSyncer), new(mockFailedPayments), logger)
		require.NoError(t, dispatcher.Dispatch(ctx, lifecycle.Notification{Event: "billing_info_updated"}))
	})
}

type mockFailedPayments struct {
	mock.Mock
}

func (m *mockFailedPayments) HandleFailedPayment(ctx context.Context, providerSubscriptionID string) error {
	return m.Called(ctx, providerSubscriptionID).Error(0)
}

func TestHooksRegisterGateway(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("payment record bundles provider data", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		gateway := new(mockGateway)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)
		gateway.On("AccountForUser", ctx, "user-1").Return(&payment.Account{Code: "user-1", Email: "u@example.com"}, nil)
		gateway.On("CouponsForUser", ctx, "user-1").Return([]payment.Coupon{}, nil)

		hooks := &lifecycle.Hooks{}
		hooks.RegisterGateway(gateway, new(mockSyncer))

		record, err := hooks.GetPaymentFromRecord.First(ctx, &subscription.Subscription{
			ID:              "sub-1",
			AdminID:         "user-1",
			PaymentProvider: &subscription.ProviderRecord{Service: "recurly", SubscriptionID: "prov-1"},
		})
		require.NoError(t, err)
		assert.Same(t, providerSub, record.Subscription)
		assert.Equal(t, "user-1", record.Account.Code)
	})

	t.Run("record without provider linkage fails", func(t *testing.T) {
		t.Parallel()

		hooks := &lifecycle.Hooks{}
		hooks.RegisterGateway(new(mockGateway), new(mockSyncer))

		_, err := hooks.GetPaymentFromRecord.First(ctx, &subscription.Subscription{ID: "sub-1", AdminID: "user-1"})
		assert.ErrorIs(t, err, subscription.ErrNoProviderLinkage)
	})

	t.Run("apply change and sync", func(t *testing.T) {
		t.Parallel()

		providerSub := activeProviderSub(t, "collaborator")
		req := providerSub.ChangeRequestForPlanChange("professional", 1, false)

		gateway := new(mockGateway)
		gateway.On("ApplyChangeRequest", ctx, req).Return(nil)
		gateway.On("Subscription", ctx, "prov-1").Return(providerSub, nil)
		syncer := new(mockSyncer)
		syncer.On("SyncSubscription", ctx, providerSub, "user-1").Return(nil)

		hooks := &lifecycle.Hooks{}
		hooks.RegisterGateway(gateway, syncer)

		_, err := hooks.ApplyChangeAndSync.First(ctx, req)
		require.NoError(t, err)
		gateway.AssertExpectations(t)
		syncer.AssertExpectations(t)
	})

	t.Run("terms generation stays unregistered", func(t *testing.T) {
		t.Parallel()

		hooks := &lifecycle.Hooks{}
		hooks.RegisterGateway(new(mockGateway), new(mockSyncer))
		assert.Equal(t, 0, hooks.GenerateTermsAndConditions.Len())
	})
}
