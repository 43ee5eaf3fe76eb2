// Package group manages group subscriptions: seat count changes against
// the billing provider, plan tier upgrades, and bulk reconciliation of the
// member list against a target email list.
//
// SeatManager owns the provider-facing operations. Every mutating path
// runs the guard predicates first (flexible licensing, active state,
// pending changes, billing info, past-due invoices) so a rejected
// operation never leaves a partial change behind. MemberManager owns the
// local membership bookkeeping; its bulk update is all-or-nothing on the
// members limit when committing and fully side-effect free when
// previewing.
package group
