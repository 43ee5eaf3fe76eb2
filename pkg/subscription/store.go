package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Store is the persistence boundary for subscription records.
type Store interface {
	ByID(ctx context.Context, id string) (*Subscription, error)
	ByAdmin(ctx context.Context, adminID string) (*Subscription, error)
	ByMemberAndID(ctx context.Context, memberID, id string) (*Subscription, error)
	ByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)

	Create(ctx context.Context, adminID string) (*Subscription, error)
	Save(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error

	AddMember(ctx context.Context, id, userID string) error
	RemoveMember(ctx context.Context, id, userID string) error

	AddInvite(ctx context.Context, id string, invite TeamInvite) error
	RemoveInvite(ctx context.Context, id, email string) error

	SetRestorePoint(ctx context.Context, id, planCode string, addOns []AddOnSnapshot) error
	VoidRestorePoint(ctx context.Context, id string) error
	ConsumeRestorePoint(ctx context.Context, id string) error
}

// MongoStore is the Mongo-backed Store.
type MongoStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoStore creates a store over the given database, using the
// "subscriptions" collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	if db == nil {
		panic("subscription: database is required")
	}
	return &MongoStore{
		collection: db.Collection("subscriptions"),
		now:        time.Now,
	}
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*Subscription, error) {
	var sub Subscription
	if err := s.collection.FindOne(ctx, filter).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return &sub, nil
}

func (s *MongoStore) ByID(ctx context.Context, id string) (*Subscription, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) ByAdmin(ctx context.Context, adminID string) (*Subscription, error) {
	return s.findOne(ctx, bson.M{"admin_id": adminID})
}

func (s *MongoStore) ByMemberAndID(ctx context.Context, memberID, id string) (*Subscription, error) {
	return s.findOne(ctx, bson.M{"_id": id, "member_ids": memberID})
}

func (s *MongoStore) ByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*Subscription, error) {
	return s.findOne(ctx, bson.M{"payment_provider.subscription_id": providerSubscriptionID})
}

func (s *MongoStore) Create(ctx context.Context, adminID string) (*Subscription, error) {
	now := s.now()
	sub := &Subscription{
		ID:            uuid.NewString(),
		AdminID:       adminID,
		ManagerIDs:    []string{adminID},
		MemberIDs:     []string{},
		TeamInvites:   []TeamInvite{},
		InvitedEmails: []string{},
		AddOns:        []AddOnSnapshot{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.collection.InsertOne(ctx, sub); err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return sub, nil
}

func (s *MongoStore) Save(ctx context.Context, sub *Subscription) error {
	sub.UpdatedAt = s.now()
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": sub.ID}, sub, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func (s *MongoStore) AddMember(ctx context.Context, id, userID string) error {
	return s.updateOne(ctx, id, bson.M{
		"$addToSet": bson.M{"member_ids": userID},
		"$set":      bson.M{"updated_at": s.now()},
	})
}

func (s *MongoStore) RemoveMember(ctx context.Context, id, userID string) error {
	return s.updateOne(ctx, id, bson.M{
		"$pull": bson.M{"member_ids": userID},
		"$set":  bson.M{"updated_at": s.now()},
	})
}

func (s *MongoStore) AddInvite(ctx context.Context, id string, invite TeamInvite) error {
	return s.updateOne(ctx, id, bson.M{
		"$push":     bson.M{"team_invites": invite},
		"$addToSet": bson.M{"invited_emails": invite.Email},
		"$set":      bson.M{"updated_at": s.now()},
	})
}

func (s *MongoStore) RemoveInvite(ctx context.Context, id, email string) error {
	return s.updateOne(ctx, id, bson.M{
		"$pull": bson.M{
			"team_invites":   bson.M{"email": email},
			"invited_emails": email,
		},
		"$set": bson.M{"updated_at": s.now()},
	})
}

func (s *MongoStore) SetRestorePoint(ctx context.Context, id, planCode string, addOns []AddOnSnapshot) error {
	return s.updateOne(ctx, id, bson.M{
		"$set": bson.M{
			"last_successful_subscription": RestorePoint{PlanCode: planCode, AddOns: addOns},
			"updated_at":                   s.now(),
		},
	})
}

func (s *MongoStore) VoidRestorePoint(ctx context.Context, id string) error {
	return s.updateOne(ctx, id, bson.M{
		"$unset": bson.M{"last_successful_subscription": 1},
		"$set":   bson.M{"updated_at": s.now()},
	})
}

// ConsumeRestorePoint clears the restore point and records that the
// subscription was reverted because of a failed payment.
func (s *MongoStore) ConsumeRestorePoint(ctx context.Context, id string) error {
	return s.updateOne(ctx, id, bson.M{
		"$unset": bson.M{"last_successful_subscription": 1},
		"$inc":   bson.M{"times_reverted_due_to_failed_payment": 1},
		"$set":   bson.M{"updated_at": s.now()},
	})
}

func (s *MongoStore) updateOne(ctx context.Context, id string, update bson.M) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
