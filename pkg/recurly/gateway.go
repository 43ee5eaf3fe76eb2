package recurly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/scribehub/subscriptionkit/pkg/payment"
)

// Config holds the Recurly account settings the gateway needs beyond the
// wire client itself.
type Config struct {
	Subdomain string `env:"RECURLY_SUBDOMAIN,required"`
	PublicKey string `env:"RECURLY_PUBLIC_KEY"`
}

// Gateway exposes every provider operation the subscription lifecycle
// needs, in terms of the typed payment entities.
type Gateway struct {
	client Client
	config Config
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for operational debug logging.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway creates a gateway over the given wire client.
func NewGateway(client Client, config Config, opts ...Option) *Gateway {
	if client == nil {
		panic("recurly: client is required")
	}
	g := &Gateway{
		client: client,
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func accountCode(userID string) string  { return "code-" + userID }
func subscriptionUUID(id string) string { return "uuid-" + id }

// AccountForUser returns the provider account for a user, or nil when the
// user has no account.
func (g *Gateway) AccountForUser(ctx context.Context, userID string) (*payment.Account, error) {
	account, err := g.client.GetAccount(ctx, accountCode(userID))
	if err != nil {
		if isNotFound(err) {
			g.logger.DebugContext(ctx, "no billing account found for user", slog.String("user_id", userID))
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return accountFromWire(account)
}

// CreateAccountForUser creates the provider account for a user.
func (g *Gateway) CreateAccountForUser(ctx context.Context, userID, email, firstName, lastName string) (*payment.Account, error) {
	account, err := g.client.CreateAccount(ctx, AccountCreate{
		Code:      userID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	g.logger.DebugContext(ctx, "created billing account", slog.String("user_id", userID))
	return accountFromWire(account)
}

// CouponsForUser returns the active coupon redemptions on the user's
// account. A user without an account has no coupons.
func (g *Gateway) CouponsForUser(ctx context.Context, userID string) ([]payment.Coupon, error) {
	redemptions, err := g.client.ListActiveCouponRedemptions(ctx, accountCode(userID))
	if err != nil {
		if isNotFound(err) {
			return []payment.Coupon{}, nil
		}
		return nil, fmt.Errorf("list coupon redemptions: %w", err)
	}

	coupons := make([]payment.Coupon, 0, len(redemptions))
	for _, redemption := range redemptions {
		coupon, err := couponFromWire(redemption)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, coupon)
	}
	return coupons, nil
}

// CustomerManagementLink returns the hosted account-management URL for a
// user, or empty when the user has no account. pageType selects the landing
// page within the hosted site.
func (g *Gateway) CustomerManagementLink(ctx context.Context, userID, pageType string) (string, error) {
	account, err := g.client.GetAccount(ctx, accountCode(userID))
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("get account: %w", err)
	}
	if account.HostedLoginToken == "" {
		return "", errors.New("billing account has no hosted login token")
	}
	path := ""
	if pageType == "billing-details" {
		path = "billing_info/edit?ht="
	}
	return "https://" + g.config.Subdomain + ".recurly.com/account/" + path + account.HostedLoginToken, nil
}

// Subscription fetches one subscription by its provider id.
func (g *Gateway) Subscription(ctx context.Context, subscriptionID string) (*payment.Subscription, error) {
	sub, err := g.client.GetSubscription(ctx, subscriptionUUID(subscriptionID))
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return subscriptionFromWire(sub)
}

// SubscriptionForUser returns the user's single active subscription, nil
// when the user has no account or no active subscription, and an error when
// more than one active subscription exists.
func (g *Gateway) SubscriptionForUser(ctx context.Context, userID string) (*payment.Subscription, error) {
	subs, err := g.client.ListAccountSubscriptions(ctx, accountCode(userID), "active", 2)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	switch len(subs) {
	case 0:
		return nil, nil
	case 1:
		return subscriptionFromWire(&subs[0])
	default:
		return nil, fmt.Errorf("user %s has more than one active subscription", userID)
	}
}

// ApplyChangeRequest submits a change request to the provider. A PO number
// or terms update attached to the request is submitted first so it lands on
// the invoice raised by the change.
func (g *Gateway) ApplyChangeRequest(ctx context.Context, req *payment.ChangeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if req.PONumber != "" || req.TermsAndConditions != "" {
		update := req.Subscription.UpdateRequestForPaymentTerms(req.PONumber, req.TermsAndConditions)
		if err := g.UpdateSubscriptionDetails(ctx, update); err != nil {
			return err
		}
	}

	change, err := g.client.CreateSubscriptionChange(ctx, subscriptionUUID(req.Subscription.ID), changeRequestToWire(req))
	if err != nil {
		return g.classifyChangeError(err, req.Subscription.ID)
	}
	g.logger.DebugContext(ctx, "created subscription change",
		slog.String("subscription_id", req.Subscription.ID),
		slog.String("change_id", change.ID))
	return nil
}

// PreviewChangeRequest previews a change request without applying it.
func (g *Gateway) PreviewChangeRequest(ctx context.Context, req *payment.ChangeRequest) (*payment.Change, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	change, err := g.client.PreviewSubscriptionChange(ctx, subscriptionUUID(req.Subscription.ID), changeRequestToWire(req))
	if err != nil {
		return nil, g.classifyChangeError(err, req.Subscription.ID)
	}
	return changeFromWire(req.Subscription, change)
}

// RemovePendingChange removes the subscription's pending change.
func (g *Gateway) RemovePendingChange(ctx context.Context, subscriptionID string) error {
	if err := g.client.RemoveSubscriptionChange(ctx, subscriptionUUID(subscriptionID)); err != nil {
		return fmt.Errorf("remove subscription change: %w", err)
	}
	g.logger.DebugContext(ctx, "removed pending subscription change", slog.String("subscription_id", subscriptionID))
	return nil
}

// UpdateSubscriptionDetails updates the PO number and terms shown on future
// invoices.
func (g *Gateway) UpdateSubscriptionDetails(ctx context.Context, req *payment.UpdateRequest) error {
	updated, err := g.client.UpdateSubscription(ctx, subscriptionUUID(req.Subscription.ID), SubscriptionUpdate{
		PONumber:           req.PONumber,
		TermsAndConditions: req.TermsAndConditions,
	})
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	g.logger.DebugContext(ctx, "updated subscription",
		slog.String("subscription_id", req.Subscription.ID),
		slog.String("update_id", updated.UUID))
	return nil
}

// CancelSubscription cancels a subscription at term end. A paused
// subscription in its final cycle cannot be canceled, only terminated, so
// that validation failure falls back to an immediate terminate.
func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	err := g.client.CancelSubscription(ctx, subscriptionUUID(subscriptionID))
	if err == nil {
		return nil
	}

	var wireErr *Error
	if !errors.As(err, &wireErr) || !wireErr.IsValidation() {
		return fmt.Errorf("cancel subscription: %w", err)
	}

	switch {
	case wireErr.Message == "Only active and future subscriptions can be canceled.":
		g.logger.DebugContext(ctx, "subscription cancellation failed, subscription not active",
			slog.String("subscription_id", subscriptionID))
	case strings.Contains(wireErr.Message, "Cannot cancel a paused subscription in the last cycle of the term"):
		g.logger.DebugContext(ctx, "terminating subscription in last cycle of paused term",
			slog.String("subscription_id", subscriptionID))
		return g.TerminateSubscription(ctx, subscriptionID)
	}
	return fmt.Errorf("cancel subscription: %w", err)
}

// ReactivateSubscription undoes a pending cancellation.
func (g *Gateway) ReactivateSubscription(ctx context.Context, subscriptionID string) error {
	if err := g.client.ReactivateSubscription(ctx, subscriptionUUID(subscriptionID)); err != nil {
		return fmt.Errorf("reactivate subscription: %w", err)
	}
	return nil
}

// PauseSubscription pauses a subscription for the given number of billing
// cycles starting at the next renewal.
func (g *Gateway) PauseSubscription(ctx context.Context, subscriptionID string, pauseCycles int) error {
	err := g.client.PauseSubscription(ctx, subscriptionUUID(subscriptionID), PauseRequest{
		RemainingPauseCycles: pauseCycles,
	})
	if err != nil {
		return fmt.Errorf("pause subscription: %w", err)
	}
	return nil
}

// ResumeSubscription resumes a paused subscription immediately.
func (g *Gateway) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	if err := g.client.ResumeSubscription(ctx, subscriptionUUID(subscriptionID)); err != nil {
		return fmt.Errorf("resume subscription: %w", err)
	}
	return nil
}

// TerminateSubscription ends a subscription immediately without a refund.
func (g *Gateway) TerminateSubscription(ctx context.Context, subscriptionID string) error {
	err := g.client.TerminateSubscription(ctx, subscriptionUUID(subscriptionID), TerminateRequest{Refund: "none"})
	if err != nil {
		return fmt.Errorf("terminate subscription: %w", err)
	}
	g.logger.DebugContext(ctx, "subscription terminated", slog.String("subscription_id", subscriptionID))
	return nil
}

// PaymentMethod returns the payment method on the user's account.
func (g *Gateway) PaymentMethod(ctx context.Context, userID string) (payment.Method, error) {
	billingInfo, err := g.client.GetBillingInfo(ctx, accountCode(userID))
	if err != nil {
		if isNotFound(err) {
			return nil, &payment.MissingBillingInfoError{UserID: userID}
		}
		return nil, fmt.Errorf("get billing info: %w", err)
	}
	return paymentMethodFromWire(billingInfo)
}

// PlanConfig returns the provider-side configuration of a plan.
func (g *Gateway) PlanConfig(ctx context.Context, planCode string) (*payment.Plan, error) {
	plan, err := g.client.GetPlan(ctx, "code-"+planCode)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if plan.Code == "" || plan.Name == "" {
		return nil, errors.New("invalid plan configuration")
	}
	return &payment.Plan{Code: plan.Code, Name: plan.Name}, nil
}

// AddOnConfig returns the provider-side configuration of a plan's add-on.
func (g *Gateway) AddOnConfig(ctx context.Context, planCode, addOnCode string) (*payment.ConfiguredAddOn, error) {
	addOn, err := g.client.GetPlanAddOn(ctx, "code-"+planCode, "code-"+addOnCode)
	if err != nil {
		return nil, fmt.Errorf("get plan add-on: %w", err)
	}
	if addOn.Code == "" || addOn.Name == "" {
		return nil, errors.New("invalid add-on configuration")
	}
	return &payment.ConfiguredAddOn{Code: addOn.Code, Name: addOn.Name}, nil
}

// PastDueInvoices returns the subscription's past-due invoices.
func (g *Gateway) PastDueInvoices(ctx context.Context, subscriptionID string) ([]payment.Invoice, error) {
	invoices, err := g.client.ListSubscriptionInvoices(ctx, subscriptionUUID(subscriptionID), "past_due")
	if err != nil {
		return nil, fmt.Errorf("list subscription invoices: %w", err)
	}
	result := make([]payment.Invoice, 0, len(invoices))
	for _, invoice := range invoices {
		result = append(result, invoiceFromWire(invoice))
	}
	return result, nil
}

// FailInvoice marks an invoice as failed.
func (g *Gateway) FailInvoice(ctx context.Context, invoiceID string) error {
	if err := g.client.MarkInvoiceFailed(ctx, invoiceID); err != nil {
		return fmt.Errorf("mark invoice failed: %w", err)
	}
	return nil
}

// classifyChangeError maps the provider errors a change request can raise
// onto typed payment errors. Anything unrecognized passes through wrapped.
func (g *Gateway) classifyChangeError(err error, subscriptionID string) error {
	var wireErr *Error
	if errors.As(err, &wireErr) {
		if wireErr.IsValidation() && wireErr.HasParam("subtotal_amount_in_cents") {
			return &payment.SubtotalLimitExceededError{SubscriptionID: subscriptionID}
		}
		if wireErr.TransactionError != nil && wireErr.TransactionError.ThreeDSecureActionTokenID != "" {
			return &payment.PaymentActionRequiredError{
				ClientSecret: wireErr.TransactionError.ThreeDSecureActionTokenID,
				PublicKey:    g.config.PublicKey,
			}
		}
	}
	return fmt.Errorf("subscription change: %w", err)
}

func isNotFound(err error) bool {
	var wireErr *Error
	return errors.As(err, &wireErr) && wireErr.IsNotFound()
}

func accountFromWire(account *Account) (*payment.Account, error) {
	if account.Code == "" || account.Email == "" {
		return nil, errors.New("invalid account data")
	}
	return &payment.Account{
		Code:              account.Code,
		Email:             account.Email,
		HasPastDueInvoice: account.HasPastDueInvoice,
	}, nil
}

func couponFromWire(redemption CouponRedemption) (payment.Coupon, error) {
	if redemption.Coupon == nil || redemption.Coupon.Code == "" {
		return payment.Coupon{}, errors.New("invalid coupon data")
	}
	coupon := payment.Coupon{
		Code:        redemption.Coupon.Code,
		Name:        redemption.Coupon.Name,
		Description: redemption.Coupon.HostedPageDescription,
		SingleUse:   redemption.Coupon.SingleUse,
	}
	if redemption.Coupon.TemporalUnit == "month" {
		coupon.DiscountMonths = redemption.Coupon.TemporalAmount
	}
	return coupon, nil
}

func subscriptionFromWire(sub *Subscription) (*payment.Subscription, error) {
	switch {
	case sub.UUID == "",
		sub.Account == nil || sub.Account.Code == "",
		sub.Plan == nil || sub.Plan.Code == "" || sub.Plan.Name == "",
		sub.UnitAmount == nil,
		sub.Subtotal == nil,
		sub.Total == nil,
		sub.Currency == "",
		sub.CurrentPeriodStarted == nil,
		sub.CurrentPeriodEnds == nil,
		sub.CollectionMethod == "",
		sub.NetTerms == nil,
		sub.PONumber == nil,
		sub.TermsAndConditions == nil:
		return nil, errors.Join(payment.ErrInvalidSubscription, errors.New("incomplete subscription data"))
	}

	addOns := make([]payment.AddOn, 0, len(sub.AddOns))
	for _, addOn := range sub.AddOns {
		translated, err := subscriptionAddOnFromWire(addOn)
		if err != nil {
			return nil, err
		}
		addOns = append(addOns, translated)
	}

	taxRate := 0.0
	if sub.TaxInfo != nil {
		taxRate = sub.TaxInfo.Rate
	}
	taxAmount := 0.0
	if sub.Tax != nil {
		taxAmount = *sub.Tax
	}
	state := sub.State
	if state == "" {
		state = string(payment.StateActive)
	}

	result, err := payment.NewSubscription(payment.Subscription{
		ID:                   sub.UUID,
		UserID:               sub.Account.Code,
		PlanCode:             sub.Plan.Code,
		PlanName:             sub.Plan.Name,
		PlanPrice:            *sub.UnitAmount,
		AddOns:               addOns,
		Subtotal:             *sub.Subtotal,
		TaxRate:              taxRate,
		TaxAmount:            taxAmount,
		Currency:             sub.Currency,
		Total:                *sub.Total,
		PeriodStart:          *sub.CurrentPeriodStarted,
		PeriodEnd:            *sub.CurrentPeriodEnds,
		CollectionMethod:     payment.CollectionMethod(sub.CollectionMethod),
		NetTerms:             *sub.NetTerms,
		PONumber:             *sub.PONumber,
		TermsAndConditions:   *sub.TermsAndConditions,
		State:                payment.State(state),
		TrialPeriodStart:     sub.TrialStartedAt,
		TrialPeriodEnd:       sub.TrialEndsAt,
		PausePeriodStart:     sub.PausedAt,
		RemainingPauseCycles: sub.RemainingPauseCycles,
	})
	if err != nil {
		return nil, err
	}

	if sub.PendingChange != nil {
		change, err := changeFromWire(result, sub.PendingChange)
		if err != nil {
			return nil, err
		}
		result.PendingChange = change
	}
	return result, nil
}

func subscriptionAddOnFromWire(addOn SubscriptionAddOn) (payment.AddOn, error) {
	if addOn.AddOn == nil || addOn.AddOn.Code == "" || addOn.AddOn.Name == "" || addOn.UnitAmount == nil {
		return payment.AddOn{}, errors.New("invalid subscription add-on data")
	}
	quantity := 1
	if addOn.Quantity != nil {
		quantity = *addOn.Quantity
	}
	return payment.NewAddOn(addOn.AddOn.Code, addOn.AddOn.Name, quantity, *addOn.UnitAmount), nil
}

func changeFromWire(sub *payment.Subscription, change *SubscriptionChange) (*payment.Change, error) {
	if change.Plan == nil || change.Plan.Code == "" || change.Plan.Name == "" || change.UnitAmount == nil {
		return nil, errors.New("invalid subscription change data")
	}
	nextAddOns := make([]payment.AddOn, 0, len(change.AddOns))
	for _, addOn := range change.AddOns {
		translated, err := subscriptionAddOnFromWire(addOn)
		if err != nil {
			return nil, err
		}
		nextAddOns = append(nextAddOns, translated)
	}
	return payment.NewChange(sub, change.Plan.Code, change.Plan.Name, *change.UnitAmount,
		nextAddOns, immediateChargeFromWire(change.InvoiceCollection)), nil
}

// immediateChargeFromWire sums the charge invoice and every credit invoice
// component by component. Credit amounts arrive negative. Each aggregate is
// rounded once at the end so intermediate float error cannot accumulate
// into the displayed amount.
func immediateChargeFromWire(collection *InvoiceCollection) payment.ImmediateCharge {
	var subtotal, tax, total, discount float64
	var lineItems []payment.ChargeLineItem

	appendLineItems := func(items []LineItem) {
		for _, item := range items {
			lineItems = append(lineItems, payment.ChargeLineItem{
				PlanCode:    item.PlanCode,
				Description: item.Description,
				Subtotal:    payment.RoundToCents(item.Subtotal),
				Discount:    payment.RoundToCents(item.Discount),
				Tax:         payment.RoundToCents(item.Tax),
			})
		}
	}

	if collection != nil {
		if charge := collection.ChargeInvoice; charge != nil {
			subtotal += charge.Subtotal
			tax += charge.Tax
			total += charge.Total
			discount += charge.Discount
			appendLineItems(charge.LineItems)
		}
		for _, credit := range collection.CreditInvoices {
			subtotal += credit.Subtotal
			tax += credit.Tax
			total += credit.Total
			discount += credit.Discount
			appendLineItems(credit.LineItems)
		}
	}

	return payment.ImmediateCharge{
		Subtotal:  payment.RoundToCents(subtotal),
		Tax:       payment.RoundToCents(tax),
		Total:     payment.RoundToCents(total),
		Discount:  payment.RoundToCents(discount),
		LineItems: lineItems,
	}
}

func paymentMethodFromWire(billingInfo *BillingInfo) (payment.Method, error) {
	if billingInfo.PaymentMethod == nil {
		return nil, errors.New("invalid billing info data")
	}
	method := billingInfo.PaymentMethod
	if method.BillingAgreementID != "" {
		return payment.PaypalMethod{}, nil
	}
	if method.CardType == "" || method.LastFour == "" {
		return nil, errors.New("invalid billing info data")
	}
	return payment.CreditCardMethod{CardType: method.CardType, LastFour: method.LastFour}, nil
}

func invoiceFromWire(invoice Invoice) payment.Invoice {
	var dueAt time.Time
	if invoice.DueAt != nil {
		dueAt = *invoice.DueAt
	}
	return payment.Invoice{
		ID:               invoice.ID,
		State:            payment.InvoiceState(invoice.State),
		CollectionMethod: payment.CollectionMethod(invoice.CollectionMethod),
		DueAt:            dueAt,
		Total:            invoice.Total,
	}
}

func changeRequestToWire(req *payment.ChangeRequest) SubscriptionChangeCreate {
	body := SubscriptionChangeCreate{
		Timeframe: string(req.Timeframe),
		PlanCode:  req.PlanCode,
	}
	if req.AddOnUpdates != nil {
		body.AddOns = make([]SubscriptionAddOnUpdate, 0, len(req.AddOnUpdates))
		for _, update := range req.AddOnUpdates {
			quantity := update.Quantity
			body.AddOns = append(body.AddOns, SubscriptionAddOnUpdate{
				Code:       update.Code,
				Quantity:   &quantity,
				UnitAmount: update.UnitPrice,
			})
		}
	}
	return body
}
