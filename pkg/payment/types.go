package payment

import (
	"math"
	"time"
)

// MembersLimitAddOnCode is the add-on that raises the seat limit on group
// subscriptions beyond the plan's base allowance.
const MembersLimitAddOnCode = "additional-license"

// Timeframe controls when a subscription change takes effect.
type Timeframe string

const (
	TimeframeNow     Timeframe = "now"
	TimeframeTermEnd Timeframe = "term_end"
)

// CollectionMethod is how the provider collects payment for a subscription.
type CollectionMethod string

const (
	CollectionAutomatic CollectionMethod = "automatic"
	CollectionManual    CollectionMethod = "manual"
)

// State represents the provider-side subscription state.
type State string

const (
	StateActive   State = "active"
	StateCanceled State = "canceled"
	StateExpired  State = "expired"
	StatePaused   State = "paused"
	StateFuture   State = "future"
)

// InvoiceState represents the provider-side invoice state.
type InvoiceState string

const (
	InvoiceStatePastDue InvoiceState = "past_due"
	InvoiceStatePaid    InvoiceState = "paid"
	InvoiceStateOpen    InvoiceState = "open"
	InvoiceStateFailed  InvoiceState = "failed"
)

// Account is a customer account in the payment provider. Code equals the
// local user id.
type Account struct {
	Code              string
	Email             string
	HasPastDueInvoice bool
}

// Coupon is an active coupon redemption in the payment provider.
type Coupon struct {
	Code           string
	Name           string
	Description    string
	SingleUse      bool
	DiscountMonths *int
}

// Invoice is a provider invoice attached to a subscription.
type Invoice struct {
	ID               string
	State            InvoiceState
	CollectionMethod CollectionMethod
	DueAt            time.Time
	Total            float64
}

// Plan is a plan configuration as the provider knows it.
type Plan struct {
	Code string
	Name string
}

// ConfiguredAddOn is an add-on configuration independent of any subscription.
type ConfiguredAddOn struct {
	Code string
	Name string
}

// Method is a stored payment method.
type Method interface {
	String() string
}

// CreditCardMethod is a card on file.
type CreditCardMethod struct {
	CardType string
	LastFour string
}

func (m CreditCardMethod) String() string {
	return m.CardType + " **** " + m.LastFour
}

// PaypalMethod is a PayPal billing agreement on file.
type PaypalMethod struct{}

func (m PaypalMethod) String() string { return "Paypal" }

// RoundToCents rounds a monetary amount to two decimal places. Call it once
// on an aggregate, not on each component being summed.
func RoundToCents(v float64) float64 {
	return math.Round(v*100) / 100
}
