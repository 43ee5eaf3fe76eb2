package email

import (
	"context"
	"fmt"
	"time"

	"github.com/scribehub/subscriptionkit/pkg/deferred"
)

// RecipientResolver maps a user id to their primary email address.
// Implemented by the host application's user storage.
type RecipientResolver interface {
	EmailForUser(ctx context.Context, userID string) (string, error)
}

type cancellationPayload struct {
	UserID string `json:"user_id"`
}

type memberRemovedPayload struct {
	UserID    string `json:"user_id"`
	GroupName string `json:"group_name,omitempty"`
}

// Scheduler enqueues lifecycle notification emails for deferred delivery.
// It satisfies the email scheduling dependency of the lifecycle manager.
type Scheduler struct {
	enqueuer *deferred.Enqueuer
	delay    time.Duration
}

// SchedulerOption configures the Scheduler.
type SchedulerOption func(*Scheduler)

// WithSendDelay overrides how long delivery is deferred.
func WithSendDelay(delay time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.delay = delay }
}

// NewScheduler creates a Scheduler. The default delay gives a user who
// canceled by mistake time to reactivate before the email lands.
func NewScheduler(enqueuer *deferred.Enqueuer, opts ...SchedulerOption) *Scheduler {
	if enqueuer == nil {
		panic("email: enqueuer is required")
	}
	s := &Scheduler{
		enqueuer: enqueuer,
		delay:    time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleCancellationEmail queues the cancellation notification.
func (s *Scheduler) ScheduleCancellationEmail(ctx context.Context, userID string) error {
	return s.enqueuer.Enqueue(ctx, TagSubscriptionCanceled, cancellationPayload{UserID: userID}, s.delay)
}

// ScheduleMemberRemovedEmail queues the removed-from-group notification.
func (s *Scheduler) ScheduleMemberRemovedEmail(ctx context.Context, userID, groupName string) error {
	return s.enqueuer.Enqueue(ctx, TagGroupMemberRemoved, memberRemovedPayload{UserID: userID, GroupName: groupName}, s.delay)
}

// RegisterHandlers wires the delivery side: deferred tasks resolve the
// recipient and send through the given sender.
func RegisterHandlers(worker *deferred.Worker, sender Sender, recipients RecipientResolver) error {
	if err := worker.RegisterHandler(deferred.NewTaskHandler(TagSubscriptionCanceled,
		func(ctx context.Context, payload cancellationPayload) error {
			to, err := recipients.EmailForUser(ctx, payload.UserID)
			if err != nil {
				return fmt.Errorf("resolve recipient: %w", err)
			}
			params, err := CancellationEmail(to)
			if err != nil {
				return err
			}
			return sender.SendEmail(ctx, params)
		})); err != nil {
		return err
	}
	return worker.RegisterHandler(deferred.NewTaskHandler(TagGroupMemberRemoved,
		func(ctx context.Context, payload memberRemovedPayload) error {
			to, err := recipients.EmailForUser(ctx, payload.UserID)
			if err != nil {
				return fmt.Errorf("resolve recipient: %w", err)
			}
			params, err := MemberRemovedEmail(to, payload.GroupName)
			if err != nil {
				return err
			}
			return sender.SendEmail(ctx, params)
		}))
}
