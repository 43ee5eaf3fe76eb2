package subscription

import (
	"math"
	"time"

	"github.com/scribehub/subscriptionkit/pkg/payment"
)

// Subscription is the locally persisted subscription record.
type Subscription struct {
	ID            string       `bson:"_id"`
	AdminID       string       `bson:"admin_id"`
	ManagerIDs    []string     `bson:"manager_ids"`
	MemberIDs     []string     `bson:"member_ids"`
	PlanCode      string       `bson:"plan_code"`
	GroupPlan     bool         `bson:"group_plan"`
	MembersLimit  int          `bson:"members_limit"`
	TeamInvites   []TeamInvite `bson:"team_invites"`
	InvitedEmails []string     `bson:"invited_emails"`

	AddOns          []AddOnSnapshot `bson:"add_ons"`
	PaymentProvider *ProviderRecord `bson:"payment_provider,omitempty"`

	LastSuccessfulSubscription      *RestorePoint `bson:"last_successful_subscription,omitempty"`
	TimesRevertedDueToFailedPayment int           `bson:"times_reverted_due_to_failed_payment"`

	ManagedUsersEnabled bool `bson:"managed_users_enabled"`
	GroupSSOEnabled     bool `bson:"group_sso_enabled"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ProviderRecord links the local record to its provider-side subscription.
type ProviderRecord struct {
	Service        string     `bson:"service"`
	SubscriptionID string     `bson:"subscription_id"`
	State          string     `bson:"state"`
	TrialStartedAt *time.Time `bson:"trial_started_at,omitempty"`
	TrialEndsAt    *time.Time `bson:"trial_ends_at,omitempty"`
}

// TeamInvite is a pending invitation to join a group subscription.
type TeamInvite struct {
	Email       string    `bson:"email"`
	Token       string    `bson:"token"`
	InviterName string    `bson:"inviter_name"`
	SentAt      time.Time `bson:"sent_at"`
}

// AddOnSnapshot is one add-on line as last seen from the provider. The unit
// amount is stored in cents so the snapshot round-trips without float
// drift.
type AddOnSnapshot struct {
	AddOnCode         string `bson:"add_on_code"`
	Quantity          int    `bson:"quantity"`
	UnitAmountInCents int    `bson:"unit_amount_in_cents"`
}

// RestorePoint is the last paid configuration, kept so a failed plan change
// can be rolled back.
type RestorePoint struct {
	PlanCode string          `bson:"plan_code"`
	AddOns   []AddOnSnapshot `bson:"add_ons"`
}

// SnapshotAddOns converts provider add-ons into stored snapshot lines.
func SnapshotAddOns(addOns []payment.AddOn) []AddOnSnapshot {
	snapshots := make([]AddOnSnapshot, 0, len(addOns))
	for _, addOn := range addOns {
		snapshots = append(snapshots, AddOnSnapshot{
			AddOnCode:         addOn.Code,
			Quantity:          addOn.Quantity,
			UnitAmountInCents: int(math.Round(addOn.UnitPrice * 100)),
		})
	}
	return snapshots
}

// RevertAddOns converts a restore point's snapshot back into the add-on
// lines of a plan-revert change request.
func (r *RestorePoint) RevertAddOns() []payment.RevertAddOn {
	addOns := make([]payment.RevertAddOn, 0, len(r.AddOns))
	for _, snapshot := range r.AddOns {
		addOns = append(addOns, payment.RevertAddOn{
			Code:      snapshot.AddOnCode,
			Quantity:  snapshot.Quantity,
			UnitPrice: float64(snapshot.UnitAmountInCents) / 100,
		})
	}
	return addOns
}

// HasMember reports whether the user is a member of the group.
func (s *Subscription) HasMember(userID string) bool {
	for _, id := range s.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// InviteForEmail returns the pending invite for an email, or nil.
func (s *Subscription) InviteForEmail(email string) *TeamInvite {
	for i := range s.TeamInvites {
		if s.TeamInvites[i].Email == email {
			return &s.TeamInvites[i]
		}
	}
	return nil
}

// AllUserIDs returns the admin plus every member, for entitlement refresh.
func (s *Subscription) AllUserIDs() []string {
	ids := make([]string, 0, len(s.MemberIDs)+1)
	ids = append(ids, s.AdminID)
	for _, id := range s.MemberIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ProviderService returns the linked provider's service name, or empty when
// the record has no provider linkage.
func (s *Subscription) ProviderService() string {
	if s.PaymentProvider == nil {
		return ""
	}
	return s.PaymentProvider.Service
}

// ProviderSubscriptionID returns the linked provider subscription id, or
// empty.
func (s *Subscription) ProviderSubscriptionID() string {
	if s.PaymentProvider == nil {
		return ""
	}
	return s.PaymentProvider.SubscriptionID
}
