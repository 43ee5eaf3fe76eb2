package recurly_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scribehub/subscriptionkit/pkg/payment"
	"github.com/scribehub/subscriptionkit/pkg/recurly"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) GetAccount(ctx context.Context, accountID string) (*recurly.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurly.Account), args.Error(1)
}

func (m *mockClient) CreateAccount(ctx context.Context, body recurly.AccountCreate) (*recurly.Account, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurly.Account), args.Error(1)
}

func (m *mockClient) ListActiveCouponRedemptions(ctx context.Context, accountID string) ([]recurly.CouponRedemption, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]recurly.CouponRedemption), args.Error(1)
}

func (m *mockClient) ListAccountSubscriptions(ctx context.Context, accountID, state string, limit int) ([]recurly.Subscription, error) {
	args := m.Called(ctx, accountID, state, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]recurly.Subscription), args.Error(1)
}

func (m *mockClient) GetSubscription(ctx context.Context, subscriptionID string) (*recurly.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurly.Subscription), args.Error(1)
}

func (m *mockClient) CreateSubscriptionChange(ctx context.Context, subscriptionID string, body recurly.SubscriptionChangeCreate) (*recurly.SubscriptionChange, error) {
	args := m.Called(ctx, subscriptionID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurly.SubscriptionChange), args.Error(1)
}

func (m *mockClient) PreviewSubscriptionChange(ctx context.Context, subscriptionID string, body recurly.SubscriptionChangeCreate) (*recurly.SubscriptionChange, error) {
	args := m.Called(ctx, subscriptionID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurly.SubscriptionChange), args.Error(1)
}

func (m *mockClient) RemoveSubscriptionChange(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockClient) UpdateSubscription(ctx context.Context, subscriptionID string, body recurly.SubscriptionUpdate) (*recurly.Subscription, error) {
	args := m.Called(ctx, subscriptionID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurly.Subscription), args.Error(1)
}

func (m *mockClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockClient) ReactivateSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockClient) PauseSubscription(ctx context.Context, subscriptionID string, body recurly.PauseRequest) error {
	return m.Called(ctx, subscriptionID, body).Error(0)
}

func (m *mockClient) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockClient) TerminateSubscription(ctx context.Context, subscriptionID string, body recurly.TerminateRequest) error {
	return m.Called(ctx, subscriptionID, body).Error(0)
}

func (m *mockClient) GetBillingInfo(ctx context.Context, accountID string) (*recurly.BillingInfo, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurly.BillingInfo), args.Error(1)
}

func (m *mockClient) GetPlan(ctx context.Context, planID string) (*recurly.Plan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurly.Plan), args.Error(1)
}

func (m *mockClient) GetPlanAddOn(ctx context.Context, planID, addOnID string) (*recurly.AddOn, error) {
	args := m.Called(ctx, planID, addOnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurly.AddOn), args.Error(1)
}

func (m *mockClient) ListSubscriptionInvoices(ctx context.Context, subscriptionID, state string) ([]recurly.Invoice, error) {
	args := m.Called(ctx, subscriptionID, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]recurly.Invoice), args.Error(1)
}

func (m *mockClient) MarkInvoiceFailed(ctx context.Context, invoiceID string) error {
	return m.Called(ctx, invoiceID).Error(0)
}

func ptr[T any](v T) *T { return &v }

func wireSubscription(uuid, userCode string) *recurly.Subscription {
	now := time.Now()
	return &recurly.Subscription{
		UUID:                 uuid,
		Account:              &recurly.AccountMini{Code: userCode},
		Plan:                 &recurly.PlanMini{Code: "professional", Name: "Professional"},
		UnitAmount:           ptr(20.0),
		Subtotal:             ptr(20.0),
		Total:                ptr(24.0),
		Tax:                  ptr(4.0),
		TaxInfo:              &recurly.TaxInfo{Rate: 0.2},
		Currency:             "usd",
		CurrentPeriodStarted: ptr(now),
		CurrentPeriodEnds:    ptr(now.AddDate(0, 1, 0)),
		CollectionMethod:     "automatic",
		NetTerms:             ptr(0),
		PONumber:             ptr(""),
		TermsAndConditions:   ptr(""),
		State:                "active",
	}
}

func TestAccountForUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("maps user id to account code", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("GetAccount", ctx, "code-user-1").Return(&recurly.Account{
			Code:  "user-1",
			Email: "user@example.com",
		}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		account, err := gateway.AccountForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", account.Code)
		client.AssertExpectations(t)
	})

	t.Run("nil on not found", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("GetAccount", ctx, "code-user-1").Return(nil, &recurly.Error{Type: recurly.ErrorTypeNotFound})

		gateway := recurly.NewGateway(client, recurly.Config{})
		account, err := gateway.AccountForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Nil(t, account)
	})
}

func TestCouponsForUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty on not found", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("ListActiveCouponRedemptions", ctx, "code-user-1").
			Return(nil, &recurly.Error{Type: recurly.ErrorTypeNotFound})

		gateway := recurly.NewGateway(client, recurly.Config{})
		coupons, err := gateway.CouponsForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, coupons)
	})

	t.Run("translates redemptions", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("ListActiveCouponRedemptions", ctx, "code-user-1").Return([]recurly.CouponRedemption{
			{Coupon: &recurly.Coupon{Code: "spring", Name: "Spring Sale", HostedPageDescription: "20% off"}},
		}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		coupons, err := gateway.CouponsForUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, coupons, 1)
		assert.Equal(t, "spring", coupons[0].Code)
		assert.Equal(t, "20% off", coupons[0].Description)
	})
}

func TestSubscriptionForUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("single active subscription", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("ListAccountSubscriptions", ctx, "code-user-1", "active", 2).
			Return([]recurly.Subscription{*wireSubscription("sub-1", "user-1")}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		sub, err := gateway.SubscriptionForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "sub-1", sub.ID)
		assert.Equal(t, "user-1", sub.UserID)
		assert.Equal(t, "USD", sub.Currency)
	})

	t.Run("nil without account", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("ListAccountSubscriptions", ctx, "code-user-1", "active", 2).
			Return(nil, &recurly.Error{Type: recurly.ErrorTypeNotFound})

		gateway := recurly.NewGateway(client, recurly.Config{})
		sub, err := gateway.SubscriptionForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Nil(t, sub)
	})

	t.Run("nil without subscriptions", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("ListAccountSubscriptions", ctx, "code-user-1", "active", 2).
			Return([]recurly.Subscription{}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		sub, err := gateway.SubscriptionForUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Nil(t, sub)
	})

	t.Run("error on multiple active subscriptions", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("ListAccountSubscriptions", ctx, "code-user-1", "active", 2).
			Return([]recurly.Subscription{
				*wireSubscription("sub-1", "user-1"),
				*wireSubscription("sub-2", "user-1"),
			}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		_, err := gateway.SubscriptionForUser(ctx, "user-1")
		assert.ErrorContains(t, err, "more than one active subscription")
	})
}

func TestApplyChangeRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	newSub := func(t *testing.T) *payment.Subscription {
		t.Helper()
		sub, err := payment.NewSubscription(payment.Subscription{
			ID:       "sub-1",
			UserID:   "user-1",
			PlanCode: "professional",
			Currency: "USD",
		})
		require.NoError(t, err)
		return sub
	}

	t.Run("submits change body", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("CreateSubscriptionChange", ctx, "uuid-sub-1", mock.MatchedBy(func(body recurly.SubscriptionChangeCreate) bool {
			return body.Timeframe == "now" && body.PlanCode == "collaborator" && body.AddOns == nil
		})).Return(&recurly.SubscriptionChange{ID: "change-1"}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		req := newSub(t).ChangeRequestForPlanChange("collaborator", 1, false)
		require.NoError(t, gateway.ApplyChangeRequest(ctx, req))
		client.AssertExpectations(t)
	})

	t.Run("submits payment terms before the change", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("UpdateSubscription", ctx, "uuid-sub-1", recurly.SubscriptionUpdate{
			PONumber:           "PO-9",
			TermsAndConditions: "terms",
		}).Return(wireSubscription("sub-1", "user-1"), nil)
		client.On("CreateSubscriptionChange", ctx, "uuid-sub-1", mock.Anything).
			Return(&recurly.SubscriptionChange{ID: "change-1"}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		req := newSub(t).ChangeRequestForPlanChange("collaborator", 1, false)
		req.PONumber = "PO-9"
		req.TermsAndConditions = "terms"
		require.NoError(t, gateway.ApplyChangeRequest(ctx, req))
		client.AssertExpectations(t)
	})

	t.Run("rejects empty change request", func(t *testing.T) {
		t.Parallel()

		gateway := recurly.NewGateway(new(mockClient), recurly.Config{})
		err := gateway.ApplyChangeRequest(ctx, &payment.ChangeRequest{Subscription: newSub(t), Timeframe: payment.TimeframeNow})
		assert.ErrorIs(t, err, payment.ErrInvalidChangeRequest)
	})

	t.Run("classifies subtotal limit", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("CreateSubscriptionChange", ctx, "uuid-sub-1", mock.Anything).
			Return(nil, &recurly.Error{
				Type:   recurly.ErrorTypeValidation,
				Params: []recurly.ErrorParam{{Param: "subtotal_amount_in_cents"}},
			})

		gateway := recurly.NewGateway(client, recurly.Config{})
		err := gateway.ApplyChangeRequest(ctx, newSub(t).ChangeRequestForPlanChange("collaborator", 1, false))
		var limit *payment.SubtotalLimitExceededError
		require.ErrorAs(t, err, &limit)
		assert.Equal(t, "sub-1", limit.SubscriptionID)
	})

	t.Run("classifies payment action required", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("CreateSubscriptionChange", ctx, "uuid-sub-1", mock.Anything).
			Return(nil, &recurly.Error{
				Type:             recurly.ErrorTypeTransaction,
				TransactionError: &recurly.TransactionError{Code: "three_d_secure_action_required", ThreeDSecureActionTokenID: "tok-1"},
			})

		gateway := recurly.NewGateway(client, recurly.Config{PublicKey: "pk-1"})
		err := gateway.ApplyChangeRequest(ctx, newSub(t).ChangeRequestForPlanChange("collaborator", 1, false))
		var action *payment.PaymentActionRequiredError
		require.ErrorAs(t, err, &action)
		assert.Equal(t, "tok-1", action.ClientSecret)
		assert.Equal(t, "pk-1", action.PublicKey)
	})
}

func TestPreviewChangeRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	sub, err := payment.NewSubscription(payment.Subscription{
		ID:       "sub-1",
		UserID:   "user-1",
		PlanCode: "professional",
		Currency: "USD",
		TaxRate:  0.2,
	})
	require.NoError(t, err)

	t.Run("rounds the aggregated immediate charge once", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("PreviewSubscriptionChange", ctx, "uuid-sub-1", mock.Anything).
			Return(&recurly.SubscriptionChange{
				Plan:       &recurly.PlanMini{Code: "collaborator", Name: "Collaborator"},
				UnitAmount: ptr(15.0),
				InvoiceCollection: &recurly.InvoiceCollection{
					ChargeInvoice: &recurly.InvoicePreview{Subtotal: 100.3, Tax: 20.3, Total: 120.3},
					CreditInvoices: []recurly.InvoicePreview{
						{Subtotal: -20.1, Tax: -4.1, Total: -24.1},
					},
				},
			}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		change, err := gateway.PreviewChangeRequest(ctx, sub.ChangeRequestForPlanChange("collaborator", 1, false))
		require.NoError(t, err)
		assert.Equal(t, 80.2, change.ImmediateCharge.Subtotal)
		assert.Equal(t, 16.2, change.ImmediateCharge.Tax)
		assert.Equal(t, 96.2, change.ImmediateCharge.Total)
		assert.Equal(t, "collaborator", change.NextPlanCode)
	})

	t.Run("collects line items from charge and credit invoices", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("PreviewSubscriptionChange", ctx, "uuid-sub-1", mock.Anything).
			Return(&recurly.SubscriptionChange{
				Plan:       &recurly.PlanMini{Code: "collaborator", Name: "Collaborator"},
				UnitAmount: ptr(15.0),
				InvoiceCollection: &recurly.InvoiceCollection{
					ChargeInvoice: &recurly.InvoicePreview{
						Subtotal:  10,
						LineItems: []recurly.LineItem{{PlanCode: "collaborator", Description: "charge", Subtotal: 10}},
					},
					CreditInvoices: []recurly.InvoicePreview{{
						Subtotal:  -5,
						LineItems: []recurly.LineItem{{Description: "credit", Subtotal: -5}},
					}},
				},
			}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		change, err := gateway.PreviewChangeRequest(ctx, sub.ChangeRequestForPlanChange("collaborator", 1, false))
		require.NoError(t, err)
		require.Len(t, change.ImmediateCharge.LineItems, 2)
		assert.Equal(t, "charge", change.ImmediateCharge.LineItems[0].Description)
		assert.Equal(t, "credit", change.ImmediateCharge.LineItems[1].Description)
	})
}

func TestCancelSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("plain cancel", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("CancelSubscription", ctx, "uuid-sub-1").Return(nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		require.NoError(t, gateway.CancelSubscription(ctx, "sub-1"))
	})

	t.Run("falls back to terminate for paused last cycle", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("CancelSubscription", ctx, "uuid-sub-1").Return(&recurly.Error{
			Type:    recurly.ErrorTypeValidation,
			Message: "Cannot cancel a paused subscription in the last cycle of the term. Terminate instead.",
		})
		client.On("TerminateSubscription", ctx, "uuid-sub-1", recurly.TerminateRequest{Refund: "none"}).Return(nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		require.NoError(t, gateway.CancelSubscription(ctx, "sub-1"))
		client.AssertExpectations(t)
	})

	t.Run("not active error still returned", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("CancelSubscription", ctx, "uuid-sub-1").Return(&recurly.Error{
			Type:    recurly.ErrorTypeValidation,
			Message: "Only active and future subscriptions can be canceled.",
		})

		gateway := recurly.NewGateway(client, recurly.Config{})
		assert.Error(t, gateway.CancelSubscription(ctx, "sub-1"))
	})
}

func TestPaymentMethod(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("credit card", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("GetBillingInfo", ctx, "code-user-1").Return(&recurly.BillingInfo{
			PaymentMethod: &recurly.WirePaymentMethod{CardType: "Visa", LastFour: "4242"},
		}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		method, err := gateway.PaymentMethod(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "Visa **** 4242", method.String())
	})

	t.Run("paypal wins over card fields", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("GetBillingInfo", ctx, "code-user-1").Return(&recurly.BillingInfo{
			PaymentMethod: &recurly.WirePaymentMethod{BillingAgreementID: "ba-1"},
		}, nil)

		gateway := recurly.NewGateway(client, recurly.Config{})
		method, err := gateway.PaymentMethod(ctx, "user-1")
		require.NoError(t, err)
		assert.IsType(t, payment.PaypalMethod{}, method)
	})

	t.Run("missing billing info", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		client.On("GetBillingInfo", ctx, "code-user-1").Return(nil, &recurly.Error{Type: recurly.ErrorTypeNotFound})

		gateway := recurly.NewGateway(client, recurly.Config{})
		_, err := gateway.PaymentMethod(ctx, "user-1")
		var missing *payment.MissingBillingInfoError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "user-1", missing.UserID)
	})
}

func TestPastDueInvoices(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dueAt := time.Now().Add(-2 * time.Hour)

	client := new(mockClient)
	client.On("ListSubscriptionInvoices", ctx, "uuid-sub-1", "past_due").Return([]recurly.Invoice{
		{ID: "inv-1", State: "past_due", CollectionMethod: "automatic", DueAt: &dueAt, Total: 24},
	}, nil)

	gateway := recurly.NewGateway(client, recurly.Config{})
	invoices, err := gateway.PastDueInvoices(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, payment.InvoiceStatePastDue, invoices[0].State)
	assert.Equal(t, payment.CollectionAutomatic, invoices[0].CollectionMethod)
}

func TestCustomerManagementLink(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	client := new(mockClient)
	client.On("GetAccount", ctx, "code-user-1").Return(&recurly.Account{
		Code:             "user-1",
		Email:            "user@example.com",
		HostedLoginToken: "tok",
	}, nil)

	gateway := recurly.NewGateway(client, recurly.Config{Subdomain: "scribehub"})
	link, err := gateway.CustomerManagementLink(ctx, "user-1", "billing-details")
	require.NoError(t, err)
	assert.Equal(t, "https://scribehub.recurly.com/account/billing_info/edit?ht=tok", link)
}
