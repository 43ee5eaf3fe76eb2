// Package subscription holds the locally persisted subscription record and
// keeps it synchronized with the payment provider's view.
//
// The local record is derived state: the provider is the source of truth
// for plan, add-ons and subscription status, while membership, invites and
// the revert bookkeeping live only here. The Syncer is the single writer
// that folds provider data into the local record.
package subscription
