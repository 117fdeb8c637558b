// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateSlug = errors.New("an organization with this slug already exists")

// TrialLength is how long a new organization's trial runs.
const TrialLength = 14 * 24 * time.Hour

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from an organization name.
func Slugify(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	if s == "" {
		s = "org"
	}
	return s
}

// Create inserts a new organization on the free plan with a trial. If the
// slug is taken, a short suffix is appended and the insert retried.
func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	now := time.Now().UTC()
	org.NameCI = text.Fold(org.Name)
	if org.Slug == "" {
		org.Slug = Slugify(org.Name)
	}
	if org.Plan == "" {
		org.Plan = models.PlanFree
	}
	if org.SubscriptionStatus == "" {
		org.SubscriptionStatus = models.SubscriptionTrialing
		trialEnd := now.Add(TrialLength)
		org.TrialEndsAt = &trialEnd
	}
	org.CreatedAt = now
	org.UpdatedAt = now

	// Taken slugs are skipped by lookup first: inside a transaction a
	// duplicate-key error aborts the transaction and cannot be retried.
	base := org.Slug
	for attempt := 0; attempt < 5; attempt++ {
		org.ID = primitive.NewObjectID()
		if attempt > 0 {
			org.Slug = base + "-" + org.ID.Hex()[18:]
		}
		taken, err := s.c.CountDocuments(ctx, bson.M{"slug": org.Slug}, options.Count().SetLimit(1))
		if err != nil {
			return models.Organization{}, err
		}
		if taken > 0 {
			continue
		}
		_, err = s.c.InsertOne(ctx, org)
		if err == nil {
			return org, nil
		}
		if !wafflemongo.IsDup(err) {
			return models.Organization{}, err
		}
	}
	return models.Organization{}, ErrDuplicateSlug
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"slug": slug}).Decode(&org)
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// GetByIDs loads multiple organizations by their ObjectIDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Organization, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var orgs []models.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Recent returns the newest organizations, for the ops console.
func (s *Store) Recent(ctx context.Context, limit int64) ([]models.Organization, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var orgs []models.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Count returns the number of organizations.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

// Delete removes an organization by ID. Only used to undo a failed onboarding.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
