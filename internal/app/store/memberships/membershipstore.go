// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c    *mongo.Collection
	orgs *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:    db.Collection("memberships"),
		orgs: db.Collection("organizations"),
	}
}

var (
	ErrBadRole             = errors.New(`role must be "owner", "admin" or "member"`)
	ErrDuplicateMembership = errors.New("user is already a member of this organization")
	ErrNotMember           = errors.New("user is not a member of this organization")
	ErrLastOwner           = errors.New("an organization must keep at least one owner")
)

// Active adds the soft-delete predicate to filter. Every read in this store
// goes through it; removed memberships never grant access or show up in lists.
func Active(filter bson.M) bson.M {
	if filter == nil {
		filter = bson.M{}
	}
	filter["deleted_at"] = nil
	return filter
}

// oldestFirst is the server order the tenant resolver falls back on.
var oldestFirst = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

// Add creates a membership. A previously removed membership for the same
// user and organization is revived with the new role.
func (s *Store) Add(ctx context.Context, orgID primitive.ObjectID, userID string, role models.Role) (models.Membership, error) {
	if !role.Valid() {
		return models.Membership{}, ErrBadRole
	}
	now := time.Now().UTC()

	var existing models.Membership
	err := s.c.FindOne(ctx, bson.M{"organization_id": orgID, "user_id": userID}).Decode(&existing)
	switch {
	case err == nil && existing.DeletedAt == nil:
		return models.Membership{}, ErrDuplicateMembership
	case err == nil:
		_, err = s.c.UpdateByID(ctx, existing.ID, bson.M{"$set": bson.M{
			"role":       role,
			"deleted_at": nil,
			"updated_at": now,
		}})
		if err != nil {
			return models.Membership{}, err
		}
		existing.Role, existing.DeletedAt, existing.UpdatedAt = role, nil, now
		return existing, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return models.Membership{}, err
	}

	m := models.Membership{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Membership{}, ErrDuplicateMembership
		}
		return models.Membership{}, err
	}
	return m, nil
}

// Get returns the active membership of userID in orgID.
func (s *Store) Get(ctx context.Context, orgID primitive.ObjectID, userID string) (models.Membership, error) {
	var m models.Membership
	err := s.c.FindOne(ctx, Active(bson.M{"organization_id": orgID, "user_id": userID})).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Membership{}, ErrNotMember
	}
	return m, err
}

// ListActiveForUser returns the user's active memberships joined with their
// organizations, oldest membership first. Memberships whose organization no
// longer exists are skipped.
func (s *Store) ListActiveForUser(ctx context.Context, userID string) ([]models.MembershipView, error) {
	cur, err := s.c.Find(ctx, Active(bson.M{"user_id": userID}), options.Find().SetSort(oldestFirst))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var ms []models.Membership
	if err := cur.All(ctx, &ms); err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, len(ms))
	for i, m := range ms {
		ids[i] = m.OrganizationID
	}
	ocur, err := s.orgs.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer ocur.Close(ctx)
	var orgs []models.Organization
	if err := ocur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Organization, len(orgs))
	for _, o := range orgs {
		byID[o.ID] = o
	}

	views := make([]models.MembershipView, 0, len(ms))
	for _, m := range ms {
		o, ok := byID[m.OrganizationID]
		if !ok {
			continue
		}
		views = append(views, models.MembershipView{
			OrganizationID:   o.ID,
			OrganizationName: o.Name,
			OrganizationSlug: o.Slug,
			Role:             m.Role,
		})
	}
	return views, nil
}

// ListActiveForOrg returns the organization's active memberships, oldest first.
func (s *Store) ListActiveForOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.Membership, error) {
	cur, err := s.c.Find(ctx, Active(bson.M{"organization_id": orgID}), options.Find().SetSort(oldestFirst))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var ms []models.Membership
	if err := cur.All(ctx, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

// CountActiveOwners returns how many active owners orgID has.
func (s *Store) CountActiveOwners(ctx context.Context, orgID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, Active(bson.M{"organization_id": orgID, "role": models.RoleOwner}))
}

// guardLastOwner refuses to take the owner role away from the only owner.
func (s *Store) guardLastOwner(ctx context.Context, m models.Membership) error {
	if m.Role != models.RoleOwner {
		return nil
	}
	n, err := s.CountActiveOwners(ctx, m.OrganizationID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return ErrLastOwner
	}
	return nil
}

// ChangeRole sets the role of an active membership.
func (s *Store) ChangeRole(ctx context.Context, orgID primitive.ObjectID, userID string, role models.Role) error {
	if !role.Valid() {
		return ErrBadRole
	}
	m, err := s.Get(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if m.Role == role {
		return nil
	}
	if err := s.guardLastOwner(ctx, m); err != nil {
		return err
	}
	_, err = s.c.UpdateByID(ctx, m.ID, bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}})
	return err
}

// SoftDelete marks an active membership removed.
func (s *Store) SoftDelete(ctx context.Context, orgID primitive.ObjectID, userID string) error {
	m, err := s.Get(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if err := s.guardLastOwner(ctx, m); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.c.UpdateByID(ctx, m.ID, bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}})
	return err
}
