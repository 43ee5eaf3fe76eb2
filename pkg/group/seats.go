package group

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/scribehub/subscriptionkit/pkg/hook"
	"github.com/scribehub/subscriptionkit/pkg/lifecycle"
	"github.com/scribehub/subscriptionkit/pkg/payment"
	"github.com/scribehub/subscriptionkit/pkg/plan"
	"github.com/scribehub/subscriptionkit/pkg/subscription"
)

// Change preview types returned to callers rendering a confirmation step.
const (
	PreviewTypeAddOnUpdate      = "add-on-update"
	PreviewTypeGroupPlanUpgrade = "group-plan-upgrade"
)

// AddOnPreview describes the members-limit add-on before and after a seat
// change.
type AddOnPreview struct {
	Code         string
	Quantity     int
	PrevQuantity int
}

// ChangePreview is a dry-run result: what the change would do plus the
// provider's price breakdown.
type ChangePreview struct {
	Type          string
	AddOn         *AddOnPreview
	PrevPlanName  string
	Change        *payment.Change
	PaymentMethod payment.Method
}

// SeatManager runs seat and tier changes for group subscriptions against
// the billing provider.
type SeatManager struct {
	store   subscription.Store
	catalog *plan.Catalog
	pricing plan.GroupPricing
	hooks   *lifecycle.Hooks
	logger  *slog.Logger
}

// SeatOption configures the SeatManager.
type SeatOption func(*SeatManager)

// WithSeatLogger sets the logger.
func WithSeatLogger(logger *slog.Logger) SeatOption {
	return func(m *SeatManager) { m.logger = logger }
}

// NewSeatManager creates a SeatManager.
func NewSeatManager(store subscription.Store, catalog *plan.Catalog, pricing plan.GroupPricing, hooks *lifecycle.Hooks, opts ...SeatOption) *SeatManager {
	if store == nil {
		panic("group: store is required")
	}
	if catalog == nil {
		panic("group: catalog is required")
	}
	if hooks == nil {
		panic("group: hooks are required")
	}
	m := &SeatManager{
		store:   store,
		catalog: catalog,
		pricing: pricing,
		hooks:   hooks,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type groupDetails struct {
	record      *subscription.Subscription
	plan        plan.Plan
	providerSub *payment.Subscription
	account     *payment.Account
}

func (m *SeatManager) groupSubscriptionDetails(ctx context.Context, userID string) (*groupDetails, error) {
	record, err := m.store.ByAdmin(ctx, userID)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	if !record.GroupPlan {
		return nil, ErrNotGroupPlan
	}
	localPlan, err := m.catalog.Find(record.PlanCode)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", record.PlanCode, err)
	}
	paymentRecord, err := m.hooks.GetPaymentFromRecord.First(ctx, record)
	if err != nil {
		return nil, err
	}
	return &groupDetails{
		record:      record,
		plan:        localPlan,
		providerSub: paymentRecord.Subscription,
		account:     paymentRecord.Account,
	}, nil
}

// checkBillingInfo verifies a payment method is on file. Manual collection
// is invoiced out of band, so only automatic collection is checked.
func (m *SeatManager) checkBillingInfo(ctx context.Context, providerSub *payment.Subscription, userID string) error {
	if providerSub.IsCollectionMethodManual() {
		return nil
	}
	_, err := m.hooks.GetPaymentMethod.First(ctx, userID)
	return err
}

type seatChange struct {
	request         *payment.ChangeRequest
	currentQuantity int
	providerSub     *payment.Subscription
}

func (m *SeatManager) addSeatsChange(ctx context.Context, userID string, adding int) (*seatChange, error) {
	details, err := m.groupSubscriptionDetails(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := EnsureFlexibleLicensingEnabled(details.plan); err != nil {
		return nil, err
	}
	if err := EnsureSubscriptionIsActive(details.record); err != nil {
		return nil, err
	}
	if err := EnsureNoPendingChange(details.providerSub); err != nil {
		return nil, err
	}
	if err := EnsureAdditionalLicenseWhenManual(details.providerSub); err != nil {
		return nil, err
	}
	if err := m.checkBillingInfo(ctx, details.providerSub, userID); err != nil {
		return nil, err
	}
	if err := EnsureNoPastDueInvoice(details.account); err != nil {
		return nil, err
	}

	providerSub := details.providerSub
	currentQuantity := providerSub.AddOnQuantity(payment.MembersLimitAddOnCode)
	nextQuantity := currentQuantity + adding

	var request *payment.ChangeRequest
	if providerSub.HasAddOn(payment.MembersLimitAddOnCode) {
		// The provider keeps billing an existing add-on at its locked-in
		// unit price, so updates never send one.
		request, err = providerSub.ChangeRequestForAddOnUpdate(payment.MembersLimitAddOnCode, nextQuantity)
		if err != nil {
			return nil, err
		}
	} else {
		unitPrice, err := m.legacyUnitPrice(details.plan.Code, providerSub)
		if err != nil {
			return nil, err
		}
		request, err = providerSub.ChangeRequestForAddOnPurchase(payment.MembersLimitAddOnCode, nextQuantity, unitPrice)
		if err != nil {
			return nil, err
		}
	}

	return &seatChange{
		request:         request,
		currentQuantity: currentQuantity,
		providerSub:     providerSub,
	}, nil
}

// legacyUnitPrice returns a per-seat price override for legacy fixed-size
// plans still billed at their old rate, and nil when current catalog
// pricing applies.
func (m *SeatManager) legacyUnitPrice(planCode string, providerSub *payment.Subscription) (*float64, error) {
	legacy, ok := plan.ParseLegacyGroupPlanCode(planCode)
	if !ok {
		return nil, nil
	}
	price, err := m.pricing.Lookup(legacy.Usage, legacy.Tier, providerSub.Currency, legacy.Size)
	if err != nil {
		return nil, err
	}
	if !plan.UseLegacyPricing(providerSub.PlanPrice, price.Price(), legacy.Usage, legacy.Size) {
		return nil, nil
	}
	unitPrice := price.AdditionalLicenseLegacyPrice()
	return &unitPrice, nil
}

// PreviewAddSeats computes what adding seats would charge without mutating
// anything.
func (m *SeatManager) PreviewAddSeats(ctx context.Context, userID string, adding int) (*ChangePreview, error) {
	change, err := m.addSeatsChange(ctx, userID, adding)
	if err != nil {
		return nil, attachAdding(err, adding)
	}
	preview, err := m.hooks.PreviewChangeRequest.First(ctx, change.request)
	if err != nil {
		return nil, attachAdding(err, adding)
	}

	quantity := change.currentQuantity + adding
	if next := preview.NextAddOn(payment.MembersLimitAddOnCode); next != nil {
		quantity = next.Quantity
	}
	return &ChangePreview{
		Type: PreviewTypeAddOnUpdate,
		AddOn: &AddOnPreview{
			Code:         payment.MembersLimitAddOnCode,
			Quantity:     quantity,
			PrevQuantity: change.currentQuantity,
		},
		Change: preview,
	}, nil
}

// CreateAddSeats applies a seat change. Manually collected subscriptions
// get their PO number and terms updated first so the change's invoice
// carries them.
func (m *SeatManager) CreateAddSeats(ctx context.Context, userID string, adding int, poNumber string) error {
	change, err := m.addSeatsChange(ctx, userID, adding)
	if err != nil {
		return attachAdding(err, adding)
	}
	if change.providerSub.IsCollectionMethodManual() {
		if err := m.updatePaymentTerms(ctx, change.providerSub, poNumber); err != nil {
			return err
		}
	}
	if _, err := m.hooks.ApplyChangeAndSync.First(ctx, change.request); err != nil {
		return attachAdding(err, adding)
	}
	m.logger.InfoContext(ctx, "applied group seat change",
		slog.String("user_id", userID),
		slog.Int("adding", adding),
		slog.Int("quantity", change.currentQuantity+adding))
	return nil
}

func (m *SeatManager) updatePaymentTerms(ctx context.Context, providerSub *payment.Subscription, poNumber string) error {
	terms, err := m.hooks.GenerateTermsAndConditions.First(ctx, lifecycle.TermsInput{
		Currency: providerSub.Currency,
		PONumber: poNumber,
	})
	if err != nil {
		if !errors.Is(err, hook.ErrNoHandlers) {
			return err
		}
		terms = ""
	}
	request := providerSub.UpdateRequestForPaymentTerms(poNumber, terms)
	_, err = m.hooks.UpdateSubscriptionDetails.First(ctx, request)
	return err
}

// attachAdding carries the requested seat delta on subtotal-limit
// rejections so callers can build a meaningful message.
func attachAdding(err error, adding int) error {
	var limitErr *payment.SubtotalLimitExceededError
	if errors.As(err, &limitErr) {
		limitErr.Adding = adding
	}
	return err
}

func (m *SeatManager) upgradeChange(ctx context.Context, userID string) (*payment.ChangeRequest, error) {
	details, err := m.groupSubscriptionDetails(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := EnsureSubscriptionIsActive(details.record); err != nil {
		return nil, err
	}
	if err := EnsureNoPendingChange(details.providerSub); err != nil {
		return nil, err
	}
	if err := EnsureCollectionMethodIsNotManual(details.providerSub); err != nil {
		return nil, err
	}
	if err := m.checkBillingInfo(ctx, details.providerSub, userID); err != nil {
		return nil, err
	}
	nextPlanCode, err := plan.NextTierPlanCode(details.record.PlanCode)
	if err != nil {
		return nil, err
	}
	return details.providerSub.ChangeRequestForGroupPlanUpgrade(nextPlanCode), nil
}

// PreviewGroupPlanUpgrade computes the price of moving to the next plan
// tier.
func (m *SeatManager) PreviewGroupPlanUpgrade(ctx context.Context, userID string) (*ChangePreview, error) {
	request, err := m.upgradeChange(ctx, userID)
	if err != nil {
		return nil, err
	}
	preview, err := m.hooks.PreviewChangeRequest.First(ctx, request)
	if err != nil {
		return nil, err
	}
	method, err := m.hooks.GetPaymentMethod.First(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ChangePreview{
		Type:          PreviewTypeGroupPlanUpgrade,
		PrevPlanName:  request.Subscription.PlanName,
		Change:        preview,
		PaymentMethod: method,
	}, nil
}

// UpgradeGroupPlan moves the subscription to the next plan tier, carrying
// its add-ons over.
func (m *SeatManager) UpgradeGroupPlan(ctx context.Context, userID string) error {
	request, err := m.upgradeChange(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := m.hooks.ApplyChangeAndSync.First(ctx, request); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "upgraded group plan",
		slog.String("user_id", userID),
		slog.String("plan_code", request.PlanCode))
	return nil
}
