// Package subscriptionkit manages the lifecycle of recurring
// subscriptions bought through an external payment provider: plan
// changes with preview, add-ons, pause and cancellation, group seat
// management, bulk member reconciliation, and automatic revert of plan
// changes whose first payment fails.
//
// The module is a set of composable packages rather than a framework.
// A host application wires them together:
//
//   - pkg/payment defines the provider-neutral entities (subscriptions,
//     accounts, add-ons, change requests) and pkg/recurly implements the
//     provider gateway over them.
//   - pkg/plan is the immutable plan catalog and group pricing tables.
//   - pkg/subscription persists the local subscription records in
//     MongoDB and synchronizes them from provider state.
//   - pkg/lifecycle exposes the user-facing operations (change plan,
//     pause, cancel, reactivate, add-ons) and the webhook notification
//     dispatcher; pkg/revert restores the pre-change plan when the
//     payment collecting a change fails.
//   - pkg/group manages seats and reconciles group membership against a
//     target email list.
//   - pkg/hook, pkg/audit, pkg/deferred, pkg/email, pkg/config,
//     pkg/mongo, and pkg/redis are the supporting infrastructure.
//
// Packages communicate through narrow interfaces and typed hooks, so a
// different provider, store, or mailer can be substituted without
// touching the lifecycle logic.
package subscriptionkit
