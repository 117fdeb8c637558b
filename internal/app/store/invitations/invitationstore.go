// internal/app/store/invitations/invitationstore.go
package invitationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultTTL is how long an invitation link stays valid.
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrNotFound = errors.New("invitation not found")
	ErrExpired  = errors.New("invitation is no longer valid")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invitations")}
}

// Create stores a new invitation with a random token.
func (s *Store) Create(ctx context.Context, orgID primitive.ObjectID, email string, role models.Role, invitedBy string) (models.Invitation, error) {
	now := time.Now().UTC()
	inv := models.Invitation{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		Email:          email,
		EmailCI:        text.Fold(email),
		Role:           role,
		Token:          uuid.NewString(),
		InvitedBy:      invitedBy,
		ExpiresAt:      now.Add(DefaultTTL),
		CreatedAt:      now,
	}
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		return models.Invitation{}, err
	}
	return inv, nil
}

// GetPending returns the invitation for token if it can still be accepted.
func (s *Store) GetPending(ctx context.Context, token string) (models.Invitation, error) {
	var inv models.Invitation
	err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&inv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Invitation{}, ErrNotFound
	}
	if err != nil {
		return models.Invitation{}, err
	}
	if !inv.Pending(time.Now().UTC()) {
		return models.Invitation{}, ErrExpired
	}
	return inv, nil
}

// MarkAccepted records acceptance. It only succeeds once per invitation.
func (s *Store) MarkAccepted(ctx context.Context, id primitive.ObjectID, userID string) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "accepted_at": nil},
		bson.M{"$set": bson.M{"accepted_at": now, "accepted_by": userID}})
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return ErrExpired
	}
	return nil
}

// Reopen undoes MarkAccepted for an invitation whose membership could not be
// written, so the invitee can try again.
func (s *Store) Reopen(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "accepted_at": bson.M{"$ne": nil}},
		bson.M{"$unset": bson.M{"accepted_at": "", "accepted_by": ""}})
	return err
}

// ListPending returns the organization's unexpired, unaccepted invitations.
func (s *Store) ListPending(ctx context.Context, orgID primitive.ObjectID) ([]models.Invitation, error) {
	filter := bson.M{
		"organization_id": orgID,
		"accepted_at":     nil,
		"expires_at":      bson.M{"$gt": time.Now().UTC()},
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Invitation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteExpired removes unaccepted invitations that expired before cutoff.
// Accepted invitations are kept as the record of who joined through them.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"accepted_at": nil,
		"expires_at":  bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
