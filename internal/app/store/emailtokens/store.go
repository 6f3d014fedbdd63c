// internal/app/store/emailtokens/store.go

// Package emailtokens manages the single-use codes and magic link tokens
// sent by the email sign-in flow. Each pending verification is scoped to a
// user and the site they are signing in to.
package emailtokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the length of the verification code (6 digits).
	CodeLength = 6
	// TokenLength is the length of the magic link token in bytes (32 bytes = 64 hex chars).
	TokenLength = 32
	// DefaultExpiry is how long a verification is valid.
	DefaultExpiry = 15 * time.Minute
	// BcryptCost for hashing codes.
	BcryptCost = 10
	// MaxVerifyAttempts is the maximum number of code checks per verification.
	MaxVerifyAttempts = 5
	// MaxResends is the maximum number of resends within ResendWindow.
	MaxResends = 3
	// ResendWindow is the rate limit window for resends.
	ResendWindow = 10 * time.Minute
)

// Purposes distinguish what a successful verification unlocks.
const (
	PurposeLogin    = "login"
	PurposeRegister = "register"
)

var (
	// ErrNotFound is returned when a verification is missing or expired.
	ErrNotFound = errors.New("verification not found or expired")
	// ErrInvalidCode is returned when the code doesn't match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrTooManyAttempts is returned after too many failed code checks.
	ErrTooManyAttempts = errors.New("too many verification attempts")
	// ErrTooManyResends is returned when the resend rate limit is hit.
	ErrTooManyResends = errors.New("too many resend requests")
)

// Verification is a pending email verification.
type Verification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      primitive.ObjectID `bson:"user_id"`
	SiteID      primitive.ObjectID `bson:"site_id"`
	Email       string             `bson:"email"`
	Purpose     string             `bson:"purpose"`
	CodeHash    string             `bson:"code_hash"`
	Token       string             `bson:"token"`
	ReturnTo    string             `bson:"return_to,omitempty"`
	ExpiresAt   time.Time          `bson:"expires_at"`
	CreatedAt   time.Time          `bson:"created_at"`
	Attempts    int                `bson:"attempts"`
	ResendCount int                `bson:"resend_count"`
	WindowStart time.Time          `bson:"window_start"`
}

// Store manages email verification records.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a new Store. A non-positive expiry falls back to
// DefaultExpiry.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{c: db.Collection("email_tokens"), expiry: expiry}
}

// Expiry returns the configured verification lifetime.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}

// EnsureIndexes creates the lookup indexes plus a TTL index for cleanup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("ttl_email_tokens_expires").SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetName("idx_email_tokens_token"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "site_id", Value: 1}},
			Options: options.Index().SetName("idx_email_tokens_user_site"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// CreateResult carries the secrets to send by email.
type CreateResult struct {
	Code  string // plain text code to show in the email
	Token string // token for the magic link URL
}

// Create starts a verification for a user on a site, replacing any pending
// one. isResend counts against the resend rate limit.
func (s *Store) Create(ctx context.Context, userID, siteID primitive.ObjectID, email, purpose, returnTo string, isResend bool) (*CreateResult, error) {
	now := time.Now()
	key := bson.M{"user_id": userID, "site_id": siteID}

	var existing Verification
	err := s.c.FindOne(ctx, key).Decode(&existing)
	existingFound := err == nil
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, err
	}

	if isResend && existingFound && now.Before(existing.WindowStart.Add(ResendWindow)) {
		if existing.ResendCount >= MaxResends {
			return nil, ErrTooManyResends
		}
	}

	code := generateCode()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}
	token := generateToken()

	resendCount := 0
	windowStart := now
	if existingFound && now.Before(existing.WindowStart.Add(ResendWindow)) {
		windowStart = existing.WindowStart
		resendCount = existing.ResendCount
		if isResend {
			resendCount++
		}
	}

	// One pending verification per user per site.
	if _, err := s.c.DeleteMany(ctx, key); err != nil {
		return nil, err
	}

	v := Verification{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		SiteID:      siteID,
		Email:       email,
		Purpose:     purpose,
		CodeHash:    string(hash),
		Token:       token,
		ReturnTo:    returnTo,
		ExpiresAt:   now.Add(s.expiry),
		CreatedAt:   now,
		ResendCount: resendCount,
		WindowStart: windowStart,
	}
	if _, err := s.c.InsertOne(ctx, v); err != nil {
		return nil, fmt.Errorf("insert verification: %w", err)
	}

	return &CreateResult{Code: code, Token: token}, nil
}

// VerifyCode checks a code for a user on a site. The record is deleted on
// success (single use). Every check counts toward MaxVerifyAttempts.
func (s *Store) VerifyCode(ctx context.Context, userID, siteID primitive.ObjectID, code string) (*Verification, error) {
	var v Verification
	err := s.c.FindOne(ctx, bson.M{
		"user_id":    userID,
		"site_id":    siteID,
		"expires_at": bson.M{"$gt": time.Now()},
	}).Decode(&v)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if v.Attempts >= MaxVerifyAttempts {
		return nil, ErrTooManyAttempts
	}
	_, _ = s.c.UpdateOne(ctx, bson.M{"_id": v.ID}, bson.M{"$inc": bson.M{"attempts": 1}})

	if err := bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(code)); err != nil {
		return nil, ErrInvalidCode
	}

	_, _ = s.c.DeleteOne(ctx, bson.M{"_id": v.ID})
	return &v, nil
}

// VerifyToken consumes a magic link token. The record is deleted on
// success (single use).
func (s *Store) VerifyToken(ctx context.Context, token string) (*Verification, error) {
	var v Verification
	err := s.c.FindOneAndDelete(ctx, bson.M{
		"token":      token,
		"expires_at": bson.M{"$gt": time.Now()},
	}).Decode(&v)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// DeleteBySite removes all pending verifications for a site. Part of the
// site deletion cascade; a token must not outlive the site it signs into.
func (s *Store) DeleteBySite(ctx context.Context, siteID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"site_id": siteID})
	return err
}

// DeleteExpired removes expired verifications and returns the count. The
// TTL index does this eventually; the cleanup job keeps it prompt.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// generateCode generates a random 6-digit numeric code. Panics if the
// system's cryptographic random number generator fails.
func generateCode() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	n := int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	if n < 0 {
		n = -n
	}
	code := (n % 900000) + 100000
	return fmt.Sprintf("%06d", code)
}

// generateToken generates a random token for magic links. Panics if the
// system's cryptographic random number generator fails.
func generateToken() string {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
