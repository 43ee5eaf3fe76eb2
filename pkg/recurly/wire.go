package recurly

import (
	"context"
	"time"
)

// Client is the wire-level Recurly API surface the gateway depends on.
// Implementations return *Error for API failures so the gateway can
// classify them.
type Client interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateAccount(ctx context.Context, body AccountCreate) (*Account, error)
	ListActiveCouponRedemptions(ctx context.Context, accountID string) ([]CouponRedemption, error)
	ListAccountSubscriptions(ctx context.Context, accountID, state string, limit int) ([]Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CreateSubscriptionChange(ctx context.Context, subscriptionID string, body SubscriptionChangeCreate) (*SubscriptionChange, error)
	PreviewSubscriptionChange(ctx context.Context, subscriptionID string, body SubscriptionChangeCreate) (*SubscriptionChange, error)
	RemoveSubscriptionChange(ctx context.Context, subscriptionID string) error
	UpdateSubscription(ctx context.Context, subscriptionID string, body SubscriptionUpdate) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	ReactivateSubscription(ctx context.Context, subscriptionID string) error
	PauseSubscription(ctx context.Context, subscriptionID string, body PauseRequest) error
	ResumeSubscription(ctx context.Context, subscriptionID string) error
	TerminateSubscription(ctx context.Context, subscriptionID string, body TerminateRequest) error
	GetBillingInfo(ctx context.Context, accountID string) (*BillingInfo, error)
	GetPlan(ctx context.Context, planID string) (*Plan, error)
	GetPlanAddOn(ctx context.Context, planID, addOnID string) (*AddOn, error)
	ListSubscriptionInvoices(ctx context.Context, subscriptionID, state string) ([]Invoice, error)
	MarkInvoiceFailed(ctx context.Context, invoiceID string) error
}

// Error types as reported by the API.
const (
	ErrorTypeNotFound    = "not_found"
	ErrorTypeValidation  = "validation"
	ErrorTypeTransaction = "transaction"
)

// Error is a classified API failure.
type Error struct {
	Type             string            `json:"type"`
	Message          string            `json:"message"`
	Params           []ErrorParam      `json:"params,omitempty"`
	TransactionError *TransactionError `json:"transaction_error,omitempty"`
}

// ErrorParam names one request parameter rejected by a validation error.
type ErrorParam struct {
	Param string `json:"param"`
}

// TransactionError carries the payment-step failure details attached to a
// transaction error, including the token for a 3-D Secure challenge.
type TransactionError struct {
	Code                      string `json:"code"`
	ThreeDSecureActionTokenID string `json:"three_d_secure_action_token_id,omitempty"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return "recurly: " + e.Message
	}
	return "recurly: " + e.Type
}

// IsNotFound reports whether the error is the API's not-found error.
func (e *Error) IsNotFound() bool { return e.Type == ErrorTypeNotFound }

// IsValidation reports whether the error is a request validation error.
func (e *Error) IsValidation() bool { return e.Type == ErrorTypeValidation }

// HasParam reports whether a validation error rejected the named parameter.
func (e *Error) HasParam(name string) bool {
	for _, p := range e.Params {
		if p.Param == name {
			return true
		}
	}
	return false
}

// Account is a wire-level account.
type Account struct {
	Code              string `json:"code"`
	Email             string `json:"email"`
	HostedLoginToken  string `json:"hosted_login_token,omitempty"`
	HasPastDueInvoice bool   `json:"has_past_due_invoice"`
}

// AccountCreate is the request body for account creation.
type AccountCreate struct {
	Code      string `json:"code"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CouponRedemption is an active coupon redemption on an account.
type CouponRedemption struct {
	Coupon *Coupon `json:"coupon"`
}

// Coupon is the coupon attached to a redemption.
type Coupon struct {
	Code                  string `json:"code"`
	Name                  string `json:"name"`
	HostedPageDescription string `json:"hosted_page_description,omitempty"`
	SingleUse             bool   `json:"single_use,omitempty"`
	TemporalUnit          string `json:"temporal_unit,omitempty"`
	TemporalAmount        *int   `json:"temporal_amount,omitempty"`
}

// Subscription is a wire-level subscription. Fields that the API may omit
// are pointers so translation can tell absent from zero.
type Subscription struct {
	UUID                 string               `json:"uuid"`
	Account              *AccountMini         `json:"account"`
	Plan                 *PlanMini            `json:"plan"`
	UnitAmount           *float64             `json:"unit_amount"`
	AddOns               []SubscriptionAddOn  `json:"add_ons,omitempty"`
	Subtotal             *float64             `json:"subtotal"`
	TaxInfo              *TaxInfo             `json:"tax_info,omitempty"`
	Tax                  *float64             `json:"tax,omitempty"`
	Total                *float64             `json:"total"`
	Currency             string               `json:"currency"`
	CurrentPeriodStarted *time.Time           `json:"current_period_started_at"`
	CurrentPeriodEnds    *time.Time           `json:"current_period_ends_at"`
	CollectionMethod     string               `json:"collection_method"`
	NetTerms             *int                 `json:"net_terms"`
	PONumber             *string              `json:"po_number"`
	TermsAndConditions   *string              `json:"terms_and_conditions"`
	State                string               `json:"state"`
	TrialStartedAt       *time.Time           `json:"trial_started_at,omitempty"`
	TrialEndsAt          *time.Time           `json:"trial_ends_at,omitempty"`
	PausedAt             *time.Time           `json:"paused_at,omitempty"`
	RemainingPauseCycles *int                 `json:"remaining_pause_cycles,omitempty"`
	PendingChange        *SubscriptionChange  `json:"pending_change,omitempty"`
}

// AccountMini is the embedded account reference on a subscription.
type AccountMini struct {
	Code string `json:"code"`
}

// PlanMini is the embedded plan reference on a subscription.
type PlanMini struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// TaxInfo carries the tax rate applied to a subscription.
type TaxInfo struct {
	Rate float64 `json:"rate"`
}

// SubscriptionAddOn is a wire-level add-on attached to a subscription.
type SubscriptionAddOn struct {
	AddOn      *AddOnMini `json:"add_on"`
	Quantity   *int       `json:"quantity"`
	UnitAmount *float64   `json:"unit_amount"`
}

// AddOnMini is the embedded add-on reference on a subscription add-on.
type AddOnMini struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SubscriptionChange is a wire-level subscription change, pending or
// previewed.
type SubscriptionChange struct {
	ID                string              `json:"id,omitempty"`
	Plan              *PlanMini           `json:"plan"`
	UnitAmount        *float64            `json:"unit_amount"`
	AddOns            []SubscriptionAddOn `json:"add_ons,omitempty"`
	InvoiceCollection *InvoiceCollection  `json:"invoice_collection,omitempty"`
}

// InvoiceCollection is the invoice preview attached to a subscription
// change.
type InvoiceCollection struct {
	ChargeInvoice  *InvoicePreview  `json:"charge_invoice,omitempty"`
	CreditInvoices []InvoicePreview `json:"credit_invoices,omitempty"`
}

// InvoicePreview is one previewed invoice. Credit invoice amounts are
// already negative on the wire.
type InvoicePreview struct {
	Subtotal  float64    `json:"subtotal"`
	Tax       float64    `json:"tax"`
	Total     float64    `json:"total"`
	Discount  float64    `json:"discount"`
	LineItems []LineItem `json:"line_items,omitempty"`
}

// LineItem is one line of a previewed invoice.
type LineItem struct {
	PlanCode    string  `json:"plan_code,omitempty"`
	AddOnCode   string  `json:"add_on_code,omitempty"`
	Description string  `json:"description,omitempty"`
	Subtotal    float64 `json:"subtotal"`
	Discount    float64 `json:"discount"`
	Tax         float64 `json:"tax"`
}

// SubscriptionChangeCreate is the request body for creating or previewing a
// subscription change.
// An empty non-nil AddOns slice is meaningful: it clears every add-on. A
// nil slice leaves the current add-ons untouched, so the field must not be
// dropped when empty.
type SubscriptionChangeCreate struct {
	Timeframe string                    `json:"timeframe"`
	PlanCode  string                    `json:"plan_code,omitempty"`
	AddOns    []SubscriptionAddOnUpdate `json:"add_ons"`
}

// SubscriptionAddOnUpdate is one add-on line of a change request body.
type SubscriptionAddOnUpdate struct {
	Code       string   `json:"code"`
	Quantity   *int     `json:"quantity,omitempty"`
	UnitAmount *float64 `json:"unit_amount,omitempty"`
}

// SubscriptionUpdate is the request body for updating subscription details.
type SubscriptionUpdate struct {
	PONumber           string `json:"po_number,omitempty"`
	TermsAndConditions string `json:"terms_and_conditions,omitempty"`
}

// PauseRequest is the request body for pausing a subscription.
type PauseRequest struct {
	RemainingPauseCycles int `json:"remaining_pause_cycles"`
}

// TerminateRequest is the request body for terminating a subscription.
type TerminateRequest struct {
	Refund string `json:"refund"`
}

// BillingInfo is the wire-level billing information on an account.
type BillingInfo struct {
	PaymentMethod *WirePaymentMethod `json:"payment_method"`
}

// WirePaymentMethod is the payment method embedded in billing info.
type WirePaymentMethod struct {
	CardType           string `json:"card_type,omitempty"`
	LastFour           string `json:"last_four,omitempty"`
	BillingAgreementID string `json:"billing_agreement_id,omitempty"`
}

// Plan is a wire-level plan configuration.
type Plan struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// AddOn is a wire-level add-on configuration.
type AddOn struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Invoice is a wire-level invoice.
type Invoice struct {
	ID               string     `json:"id"`
	State            string     `json:"state"`
	CollectionMethod string     `json:"collection_method"`
	DueAt            *time.Time `json:"due_at,omitempty"`
	Total            float64    `json:"total"`
}
