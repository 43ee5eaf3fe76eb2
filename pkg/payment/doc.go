// Package payment defines the typed value objects that mirror billing
// provider concepts: subscriptions, add-ons, accounts, coupons and change
// requests.
//
// The types here are decoupled from any provider wire format. The gateway
// package translates wire payloads into these entities at the boundary, so
// the rest of the module never depends on structural coincidence with a
// provider's API. Constructors validate required fields instead of trusting
// the shape of incoming data.
//
// A ChangeRequest is a pure value: building one never talks to the provider.
// Request builders on Subscription (ChangeRequestForAddOnPurchase and
// friends) enforce the idempotency guards (DuplicateAddOnError,
// AddOnNotPresentError) before a request ever leaves the process.
//
// Money values are rounded to two decimals at computation boundaries, never
// accumulated from already-rounded intermediate sums. Use RoundToCents for
// the final aggregate only.
package payment
