// Package deferred runs one-shot delayed side effects, such as the
// notification emails that follow a cancellation or a member removal.
//
// An Enqueuer serializes a payload and stores it with a run-at timestamp;
// a Worker polls the storage for due tasks and dispatches them to typed
// handlers. Delivery is best effort: a failed handler is logged and the
// task dropped, because nothing in the subscription state depends on these
// side effects completing.
package deferred
