// internal/app/store/users/store.go

// Package users persists user accounts and their provider identities. A
// user may have several identities (one per external provider) plus an
// email address used by the email sign-in flow.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ciaranj/piglet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// Store manages users and identities.
type Store struct {
	users      *mongo.Collection
	identities *mongo.Collection
}

// New creates a new users Store.
func New(db *mongo.Database) *Store {
	return &Store{
		users:      db.Collection("users"),
		identities: db.Collection("identities"),
	}
}

// EnsureIndexes creates the uniqueness indexes. The email index is sparse
// because identity-only users may not carry an email address.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_users_email"),
		},
	})
	if err != nil {
		return err
	}
	_, err = s.identities.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "provider_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_identities_provider_id"),
		},
	})
	return err
}

// GetByID retrieves a user by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return models.User{}, ErrNotFound
	}
	return u, err
}

// GetByEmail retrieves a user by normalized email address.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return models.User{}, ErrNotFound
	}
	return u, err
}

// List returns all users sorted by email.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "email", Value: 1}})
	cur, err := s.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureByEmail returns the user with the given email, creating one when
// absent. Used by the email sign-in flow and admin bootstrap.
func (s *Store) EnsureByEmail(ctx context.Context, email string) (models.User, error) {
	email = normalizeEmail(email)

	u, err := s.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if err != ErrNotFound {
		return models.User{}, err
	}

	u = models.User{
		ID:        primitive.NewObjectID(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		// Lost a race with a concurrent insert of the same email.
		if mongo.IsDuplicateKeyError(err) {
			return s.GetByEmail(ctx, email)
		}
		return models.User{}, err
	}
	return u, nil
}

// MarkEmailVerified records that the user's email has been confirmed.
func (s *Store) MarkEmailVerified(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"email_verified": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindOrCreateByIdentity resolves an external provider identity to a user.
// A known identity returns its user. An unknown identity is linked to the
// user owning the same email when one exists, otherwise a new user is
// created.
func (s *Store) FindOrCreateByIdentity(ctx context.Context, provider, providerID, email, displayName string) (models.User, error) {
	email = normalizeEmail(email)

	var ident models.Identity
	err := s.identities.FindOne(ctx, bson.M{"provider": provider, "provider_id": providerID}).Decode(&ident)
	if err == nil {
		return s.GetByID(ctx, ident.UserID)
	}
	if err != mongo.ErrNoDocuments {
		return models.User{}, err
	}

	u, err := s.GetByEmail(ctx, email)
	if err == ErrNotFound {
		u = models.User{
			ID:            primitive.NewObjectID(),
			Email:         email,
			EmailVerified: true,
			DisplayName:   displayName,
			CreatedAt:     time.Now().UTC(),
		}
		if _, err := s.users.InsertOne(ctx, u); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				if u, err = s.GetByEmail(ctx, email); err != nil {
					return models.User{}, err
				}
			} else {
				return models.User{}, err
			}
		}
	} else if err != nil {
		return models.User{}, err
	}

	ident = models.Identity{
		ID:         primitive.NewObjectID(),
		UserID:     u.ID,
		Provider:   provider,
		ProviderID: providerID,
		Email:      email,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.identities.InsertOne(ctx, ident); err != nil && !mongo.IsDuplicateKeyError(err) {
		return models.User{}, err
	}
	return u, nil
}

// ListIdentities returns the identities linked to a user.
func (s *Store) ListIdentities(ctx context.Context, userID primitive.ObjectID) ([]models.Identity, error) {
	cur, err := s.identities.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Identity
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
