package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Subscription mirrors one provider-side subscription. Instances come from
// the gateway's wire translation and are never persisted locally.
type Subscription struct {
	ID                   string
	UserID               string
	PlanCode             string
	PlanName             string
	PlanPrice            float64
	AddOns               []AddOn
	Subtotal             float64
	TaxRate              float64
	TaxAmount            float64
	Currency             string
	Total                float64
	PeriodStart          time.Time
	PeriodEnd            time.Time
	CollectionMethod     CollectionMethod
	NetTerms             int
	PONumber             string
	TermsAndConditions   string
	PendingChange        *Change
	Service              string
	State                State
	TrialPeriodStart     *time.Time
	TrialPeriodEnd       *time.Time
	PausePeriodStart     *time.Time
	RemainingPauseCycles *int
}

// NewSubscription validates required fields and normalizes the entity.
// Currency codes are always stored uppercase; some providers report them
// lowercase.
func NewSubscription(sub Subscription) (*Subscription, error) {
	switch {
	case sub.ID == "":
		return nil, errors.Join(ErrInvalidSubscription, errors.New("missing id"))
	case sub.UserID == "":
		return nil, errors.Join(ErrInvalidSubscription, errors.New("missing user id"))
	case sub.PlanCode == "":
		return nil, errors.Join(ErrInvalidSubscription, errors.New("missing plan code"))
	case sub.Currency == "":
		return nil, errors.Join(ErrInvalidSubscription, errors.New("missing currency"))
	}

	sub.Currency = strings.ToUpper(sub.Currency)
	if sub.Service == "" {
		sub.Service = "recurly"
	}
	if sub.State == "" {
		sub.State = StateActive
	}
	return &sub, nil
}

// AddOn is an add-on attached to a subscription.
type AddOn struct {
	Code        string
	Name        string
	Quantity    int
	UnitPrice   float64
	PreTaxTotal float64
}

// NewAddOn builds an add-on with its derived pre-tax total.
func NewAddOn(code, name string, quantity int, unitPrice float64) AddOn {
	return AddOn{
		Code:        code,
		Name:        name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		PreTaxTotal: float64(quantity) * unitPrice,
	}
}

// ToUpdate returns an add-on update that preserves the add-on as-is.
func (a AddOn) ToUpdate() AddOnUpdate {
	unitPrice := a.UnitPrice
	return AddOnUpdate{Code: a.Code, Quantity: a.Quantity, UnitPrice: &unitPrice}
}

// HasAddOn reports whether the subscription currently carries the add-on.
func (s *Subscription) HasAddOn(code string) bool {
	for _, addOn := range s.AddOns {
		if addOn.Code == code {
			return true
		}
	}
	return false
}

// AddOnQuantity returns the current quantity of the add-on, or zero when the
// subscription does not carry it.
func (s *Subscription) AddOnQuantity(code string) int {
	for _, addOn := range s.AddOns {
		if addOn.Code == code {
			return addOn.Quantity
		}
	}
	return 0
}

// HasAddOnNextPeriod reports whether the subscription will carry the add-on
// next billing period. When a pending change exists, the change's add-on
// list is authoritative.
func (s *Subscription) HasAddOnNextPeriod(code string) bool {
	if s.PendingChange != nil {
		for _, addOn := range s.PendingChange.NextAddOns {
			if addOn.Code == code {
				return true
			}
		}
		return false
	}
	return s.HasAddOn(code)
}

// IsCollectionMethodManual reports whether the subscription is invoiced
// manually rather than charged automatically.
func (s *Subscription) IsCollectionMethodManual() bool {
	return s.CollectionMethod == CollectionManual
}

// IsInTrial reports whether the subscription's trial period covers the given
// instant.
func (s *Subscription) IsInTrial(at time.Time) bool {
	return s.TrialPeriodEnd != nil && s.TrialPeriodEnd.After(at)
}

// ChangeRequestForPlanChange builds a request switching this subscription to
// another plan. quantity above one carries the seat count as a members-limit
// add-on so per-seat plans stay compatible with the base-plan-plus-add-on
// model.
func (s *Subscription) ChangeRequestForPlanChange(planCode string, quantity int, atTermEnd bool) *ChangeRequest {
	timeframe := TimeframeNow
	if atTermEnd {
		timeframe = TimeframeTermEnd
	}
	req := &ChangeRequest{
		Subscription: s,
		Timeframe:    timeframe,
		PlanCode:     planCode,
	}
	if quantity != 1 {
		req.AddOnUpdates = []AddOnUpdate{{Code: MembersLimitAddOnCode, Quantity: quantity}}
	}
	return req
}

// ChangeRequestForAddOnPurchase builds a request adding a new add-on at the
// given quantity. unitPrice overrides the catalog price when non-nil.
func (s *Subscription) ChangeRequestForAddOnPurchase(code string, quantity int, unitPrice *float64) (*ChangeRequest, error) {
	if s.HasAddOn(code) {
		return nil, &DuplicateAddOnError{SubscriptionID: s.ID, AddOnCode: code}
	}

	updates := make([]AddOnUpdate, 0, len(s.AddOns)+1)
	for _, addOn := range s.AddOns {
		updates = append(updates, addOn.ToUpdate())
	}
	updates = append(updates, AddOnUpdate{Code: code, Quantity: quantity, UnitPrice: unitPrice})

	return &ChangeRequest{
		Subscription: s,
		Timeframe:    TimeframeNow,
		AddOnUpdates: updates,
	}, nil
}

// ChangeRequestForAddOnUpdate builds a request setting an existing add-on to
// a new quantity. Updating to the current quantity is a valid no-op update.
func (s *Subscription) ChangeRequestForAddOnUpdate(code string, quantity int) (*ChangeRequest, error) {
	if !s.HasAddOn(code) {
		return nil, &AddOnNotPresentError{SubscriptionID: s.ID, AddOnCode: code}
	}

	updates := make([]AddOnUpdate, 0, len(s.AddOns))
	for _, addOn := range s.AddOns {
		update := addOn.ToUpdate()
		if update.Code == code {
			update.Quantity = quantity
		}
		updates = append(updates, update)
	}

	return &ChangeRequest{
		Subscription: s,
		Timeframe:    TimeframeNow,
		AddOnUpdates: updates,
	}, nil
}

// ChangeRequestForAddOnRemoval builds a request dropping an add-on. Removal
// takes effect at term end so the user keeps what they paid for, except
// during a trial where it applies immediately.
func (s *Subscription) ChangeRequestForAddOnRemoval(code string, at time.Time) (*ChangeRequest, error) {
	if !s.HasAddOn(code) {
		return nil, &AddOnNotPresentError{SubscriptionID: s.ID, AddOnCode: code}
	}

	updates := make([]AddOnUpdate, 0, len(s.AddOns))
	for _, addOn := range s.AddOns {
		if addOn.Code != code {
			updates = append(updates, addOn.ToUpdate())
		}
	}

	timeframe := TimeframeTermEnd
	if s.IsInTrial(at) {
		timeframe = TimeframeNow
	}
	return &ChangeRequest{
		Subscription: s,
		Timeframe:    timeframe,
		AddOnUpdates: updates,
	}, nil
}

// ChangeRequestForAddOnReactivation cancels a pending add-on removal by
// restoring the current add-on into the next period's add-on list.
func (s *Subscription) ChangeRequestForAddOnReactivation(code string) (*ChangeRequest, error) {
	var reactivated *AddOn
	for i := range s.AddOns {
		if s.AddOns[i].Code == code {
			reactivated = &s.AddOns[i]
			break
		}
	}
	if reactivated == nil || s.PendingChange == nil {
		return nil, &AddOnNotPresentError{SubscriptionID: s.ID, AddOnCode: code}
	}

	updates := make([]AddOnUpdate, 0, len(s.PendingChange.NextAddOns)+1)
	for _, addOn := range s.PendingChange.NextAddOns {
		if addOn.Code != code {
			updates = append(updates, addOn.ToUpdate())
		}
	}
	updates = append(updates, reactivated.ToUpdate())

	return &ChangeRequest{
		Subscription: s,
		Timeframe:    TimeframeTermEnd,
		AddOnUpdates: updates,
	}, nil
}

// ChangeRequestForPlanRevert builds the request that restores the
// subscription to a previously paid configuration. An empty add-on snapshot
// deliberately produces an empty update list: that wipes any add-ons added
// by the failed change.
func (s *Subscription) ChangeRequestForPlanRevert(planCode string, addOns []RevertAddOn) *ChangeRequest {
	updates := make([]AddOnUpdate, 0, len(addOns))
	for _, addOn := range addOns {
		unitPrice := addOn.UnitPrice
		updates = append(updates, AddOnUpdate{
			Code:      addOn.Code,
			Quantity:  addOn.Quantity,
			UnitPrice: &unitPrice,
		})
	}
	return &ChangeRequest{
		Subscription: s,
		Timeframe:    TimeframeNow,
		PlanCode:     planCode,
		AddOnUpdates: updates,
	}
}

// ChangeRequestForGroupPlanUpgrade builds a request moving the subscription
// to the next plan tier, carrying every existing add-on over.
func (s *Subscription) ChangeRequestForGroupPlanUpgrade(newPlanCode string) *ChangeRequest {
	updates := make([]AddOnUpdate, 0, len(s.AddOns))
	for _, addOn := range s.AddOns {
		updates = append(updates, AddOnUpdate{Code: addOn.Code, Quantity: addOn.Quantity})
	}
	return &ChangeRequest{
		Subscription: s,
		Timeframe:    TimeframeNow,
		PlanCode:     newPlanCode,
		AddOnUpdates: updates,
	}
}

// UpdateRequestForPaymentTerms builds the request updating the PO number and
// terms and conditions shown on future invoices. An empty poNumber leaves
// the PO number untouched.
func (s *Subscription) UpdateRequestForPaymentTerms(poNumber, termsAndConditions string) *UpdateRequest {
	return &UpdateRequest{
		Subscription:       s,
		PONumber:           poNumber,
		TermsAndConditions: termsAndConditions,
	}
}

// RevertAddOn is one line of a restore point's add-on snapshot.
type RevertAddOn struct {
	Code      string
	Quantity  int
	UnitPrice float64
}

// ChangeRequest describes a subscription change to submit to the provider.
// It is a pure value object: nothing runs until a gateway applies it.
type ChangeRequest struct {
	Subscription *Subscription
	Timeframe    Timeframe
	PlanCode     string        // empty keeps the current plan
	AddOnUpdates []AddOnUpdate // nil keeps the current add-ons

	// Optional payment-terms payload submitted alongside the change.
	PONumber           string
	TermsAndConditions string
}

// Validate rejects requests that would change nothing at the provider.
func (r *ChangeRequest) Validate() error {
	if r.PlanCode == "" && r.AddOnUpdates == nil {
		return ErrInvalidChangeRequest
	}
	return nil
}

// AddOnUpdate is one add-on line of a change request. A nil UnitPrice defers
// to the provider's catalog price.
type AddOnUpdate struct {
	Code      string
	Quantity  int
	UnitPrice *float64
}

// UpdateRequest updates subscription details that are not a plan or add-on
// change.
type UpdateRequest struct {
	Subscription       *Subscription
	PONumber           string
	TermsAndConditions string
}

// Change is a subscription change as reported (or previewed) by the
// provider: the next period's plan and add-ons plus the immediate charge
// collected if the change applies now.
type Change struct {
	Subscription    *Subscription
	NextPlanCode    string
	NextPlanName    string
	NextPlanPrice   float64
	NextAddOns      []AddOn
	ImmediateCharge ImmediateCharge

	// Derived next-invoice amounts.
	Subtotal float64
	Tax      float64
	Total    float64
}

// NewChange derives the next-invoice amounts from the next plan and add-ons
// using the subscription's current tax rate.
func NewChange(sub *Subscription, planCode, planName string, planPrice float64, nextAddOns []AddOn, charge ImmediateCharge) *Change {
	subtotal := planPrice
	for _, addOn := range nextAddOns {
		subtotal += addOn.PreTaxTotal
	}
	tax := RoundToCents(subtotal * sub.TaxRate)
	return &Change{
		Subscription:    sub,
		NextPlanCode:    planCode,
		NextPlanName:    planName,
		NextPlanPrice:   planPrice,
		NextAddOns:      nextAddOns,
		ImmediateCharge: charge,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           subtotal + tax,
	}
}

// NextAddOn returns the next-period add-on with the given code, or nil.
func (c *Change) NextAddOn(code string) *AddOn {
	for i := range c.NextAddOns {
		if c.NextAddOns[i].Code == code {
			return &c.NextAddOns[i]
		}
	}
	return nil
}

// ImmediateCharge is the amount collected right away when a change applies
// in the current term, net of credits for unused time.
type ImmediateCharge struct {
	Subtotal  float64
	Tax       float64
	Total     float64
	Discount  float64
	LineItems []ChargeLineItem
}

// ChargeLineItem is one display line of an immediate charge.
type ChargeLineItem struct {
	PlanCode    string
	Description string
	Subtotal    float64
	Discount    float64
	Tax         float64
}

func (c ImmediateCharge) String() string {
	return fmt.Sprintf("subtotal=%.2f tax=%.2f total=%.2f", c.Subtotal, c.Tax, c.Total)
}
