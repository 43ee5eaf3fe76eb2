// Package lifecycle exposes the user-facing subscription operations: plan
// changes with preview, add-on purchases and removals, cancel, pause,
// resume and reactivate, plus the dispatcher for provider callback events.
//
// The package coordinates the provider gateway, the local store and the
// syncer. It is also the only writer of plan-change restore points; the
// revert flow in pkg/revert consumes them.
package lifecycle
