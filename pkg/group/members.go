package group

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/scribehub/subscriptionkit/pkg/audit"
	"github.com/scribehub/subscriptionkit/pkg/subscription"
	"github.com/scribehub/subscriptionkit/pkg/validator"
)

// User is the directory view of a group member: the id plus every
// registered email alias.
type User struct {
	ID     string
	Emails []string
}

// Directory resolves member ids to users. Implemented by the host
// application's user storage.
type Directory interface {
	UsersByIDs(ctx context.Context, ids []string) ([]User, error)
}

// TeamInviter creates and revokes pending group invitations, including
// their notification emails.
type TeamInviter interface {
	CreateInvite(ctx context.Context, inviterID string, sub *subscription.Subscription, email string) error
	RevokeInvite(ctx context.Context, inviterID string, sub *subscription.Subscription, email string) error
}

// MemberManager reconciles a group's member list.
type MemberManager struct {
	store     subscription.Store
	directory Directory
	invites   TeamInviter
	auditor   audit.Logger
	refresher subscription.EntitlementsRefresher
	logger    *slog.Logger
}

// MemberOption configures the MemberManager.
type MemberOption func(*MemberManager)

// WithEntitlementsRefresher schedules feature refreshes for removed
// members.
func WithEntitlementsRefresher(refresher subscription.EntitlementsRefresher) MemberOption {
	return func(m *MemberManager) { m.refresher = refresher }
}

// WithMemberLogger sets the logger.
func WithMemberLogger(logger *slog.Logger) MemberOption {
	return func(m *MemberManager) { m.logger = logger }
}

// NewMemberManager creates a MemberManager. Every membership mutation is
// appended to the audit log.
func NewMemberManager(store subscription.Store, directory Directory, invites TeamInviter, auditor audit.Logger, opts ...MemberOption) *MemberManager {
	if store == nil {
		panic("group: store is required")
	}
	if directory == nil {
		panic("group: directory is required")
	}
	if invites == nil {
		panic("group: team inviter is required")
	}
	if auditor == nil {
		panic("group: audit logger is required")
	}
	m := &MemberManager{
		store:     store,
		directory: directory,
		invites:   invites,
		auditor:   auditor,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsMember reports whether the user belongs to the group.
func (m *MemberManager) IsMember(ctx context.Context, userID, subscriptionID string) (bool, error) {
	_, err := m.store.ByMemberAndID(ctx, userID, subscriptionID)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ConfirmedMemberCount returns the number of joined members.
func (m *MemberManager) ConfirmedMemberCount(ctx context.Context, subscriptionID string) (int, error) {
	sub, err := m.store.ByID(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}
	return len(sub.MemberIDs), nil
}

// RemoveMember takes a user out of the group: the membership row, an audit
// entry, and a fire-and-forget entitlement refresh.
func (m *MemberManager) RemoveMember(ctx context.Context, subscriptionID, userID, initiatorID string) error {
	if err := m.store.RemoveMember(ctx, subscriptionID, userID); err != nil {
		return fmt.Errorf("remove member %s: %w", userID, err)
	}
	if err := m.auditor.Record(ctx, userID, "group-member-removed",
		audit.WithActor(initiatorID),
		audit.WithMetadata(map[string]any{"subscription_id": subscriptionID})); err != nil {
		return fmt.Errorf("audit member removal: %w", err)
	}
	m.scheduleRefresh(ctx, userID)
	return nil
}

func (m *MemberManager) scheduleRefresh(ctx context.Context, userID string) {
	if m.refresher == nil {
		return
	}
	if err := m.refresher.ScheduleRefresh(ctx, []string{userID}, "group-membership-change"); err != nil {
		m.logger.WarnContext(ctx, "failed to schedule entitlement refresh",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}

// BulkUpdateOptions controls a bulk member update. Commit false previews
// the outcome without side effects; RemoveMembersNotIncluded extends the
// reconciliation to drop members and invites absent from the target list.
type BulkUpdateOptions struct {
	Commit                   bool
	RemoveMembersNotIncluded bool
}

// BulkUpdateResult is the computed (and, when committed, applied)
// reconciliation outcome.
type BulkUpdateResult struct {
	EmailsToSendInvite   []string
	EmailsToRevokeInvite []string
	MembersToRemove      []string
	CurrentMemberCount   int
	NewTotalCount        int
	MembersLimit         int
}

// UpdateMembersBulk reconciles the group's membership against a target
// email list. Matching considers every registered alias of each member, so
// a target email hitting a member's secondary address counts as already a
// member. Committed updates are gated on the members limit before any
// mutation happens.
func (m *MemberManager) UpdateMembersBulk(ctx context.Context, inviterID, subscriptionID string, emails []string, opts BulkUpdateOptions) (*BulkUpdateResult, error) {
	emails = dedupe(emails)
	var invalid []string
	for _, email := range emails {
		if err := validator.Apply(validator.ValidEmail("email", email)); err != nil {
			invalid = append(invalid, email)
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidEmailError{Emails: invalid}
	}

	sub, err := m.store.ByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	members, err := m.directory.UsersByIDs(ctx, sub.MemberIDs)
	if err != nil {
		return nil, err
	}

	memberEmails := make(map[string]bool)
	for _, member := range members {
		for _, email := range member.Emails {
			memberEmails[email] = true
		}
	}

	currentInvites := make([]string, 0, len(sub.TeamInvites)+len(sub.InvitedEmails))
	for _, invite := range sub.TeamInvites {
		currentInvites = append(currentInvites, invite.Email)
	}
	currentInvites = append(currentInvites, sub.InvitedEmails...)
	currentInvites = dedupe(currentInvites)
	invitedEmails := make(map[string]bool, len(currentInvites))
	for _, email := range currentInvites {
		invitedEmails[email] = true
	}

	targetEmails := make(map[string]bool, len(emails))
	for _, email := range emails {
		targetEmails[email] = true
	}

	var invitesToSend []string
	for _, email := range emails {
		if !memberEmails[email] && !invitedEmails[email] {
			invitesToSend = append(invitesToSend, email)
		}
	}

	var membersToRemove []string
	var invitesToRevoke []string
	if opts.RemoveMembersNotIncluded {
		for _, member := range members {
			keep := false
			for _, email := range member.Emails {
				if targetEmails[email] {
					keep = true
					break
				}
			}
			if !keep {
				membersToRemove = append(membersToRemove, member.ID)
			}
		}
		for _, email := range currentInvites {
			if !targetEmails[email] {
				invitesToRevoke = append(invitesToRevoke, email)
			}
		}
	}

	result := &BulkUpdateResult{
		EmailsToSendInvite:   invitesToSend,
		EmailsToRevokeInvite: invitesToRevoke,
		MembersToRemove:      membersToRemove,
		CurrentMemberCount:   len(members),
		NewTotalCount:        len(members) - len(membersToRemove) + len(invitesToSend),
		MembersLimit:         sub.MembersLimit,
	}

	if !opts.Commit {
		return result, nil
	}
	if result.NewTotalCount > sub.MembersLimit {
		return nil, &MembersLimitReachedError{
			CurrentMemberCount: result.CurrentMemberCount,
			NewTotalCount:      result.NewTotalCount,
			MembersLimit:       result.MembersLimit,
		}
	}

	for _, userID := range membersToRemove {
		if err := m.RemoveMember(ctx, subscriptionID, userID, inviterID); err != nil {
			return nil, err
		}
	}
	for _, email := range invitesToSend {
		if err := m.invites.CreateInvite(ctx, inviterID, sub, email); err != nil {
			return nil, fmt.Errorf("invite %s: %w", email, err)
		}
	}
	for _, email := range invitesToRevoke {
		if err := m.invites.RevokeInvite(ctx, inviterID, sub, email); err != nil {
			return nil, fmt.Errorf("revoke invite %s: %w", email, err)
		}
	}
	return result, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
