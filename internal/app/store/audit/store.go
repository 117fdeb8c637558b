// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth     = "auth"
	CategoryTenant   = "tenant"
	CategorySecurity = "security"
)

// Auth event types
const (
	EventLoginSuccess      = "login_success"
	EventLoginFailed       = "login_failed"
	EventLogout            = "logout"
	EventSignUp            = "sign_up"
	EventPasswordResetSent = "password_reset_requested"
	EventOAuthCallback     = "oauth_callback"
)

// Tenant event types
const (
	EventOrgCreated         = "org_created"
	EventOrgSwitched        = "org_switched"
	EventInvitationCreated  = "invitation_created"
	EventInvitationAccepted = "invitation_accepted"
	EventMemberRoleChanged  = "member_role_changed"
	EventMemberRemoved      = "member_removed"
)

// Security event types
const (
	EventRateLimited    = "rate_limited"
	EventRateLimitReset = "rate_limit_reset"
)

// Event represents an audit event. User ids are the identity provider's ids.
type Event struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty"`
	Timestamp      time.Time           `bson:"timestamp"`
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	UserID  string `bson:"user_id,omitempty"`  // affected user
	ActorID string `bson:"actor_id,omitempty"` // who performed the action

	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter narrows an audit listing. Zero fields do not filter.
type QueryFilter struct {
	OrganizationID *primitive.ObjectID
	Category       string
	EventType      string
	Since          *time.Time
	Limit          int64
	Offset         int64
}

func (f QueryFilter) query() bson.M {
	q := bson.M{}
	if f.OrganizationID != nil {
		q["organization_id"] = f.OrganizationID
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.EventType != "" {
		q["event_type"] = f.EventType
	}
	if f.Since != nil {
		q["timestamp"] = bson.M{"$gte": f.Since}
	}
	return q
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Recent returns the newest events, optionally narrowed to one category.
func (s *Store) Recent(ctx context.Context, category string, limit int64) ([]Event, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Query returns events matching filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}
	cur, err := s.c.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns how many events match filter. Limit and Offset are ignored.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.query())
}
