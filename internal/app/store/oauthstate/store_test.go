package oauthstate_test

import (
	"testing"
	"time"

	"github.com/ciaranj/piglet/internal/app/store/oauthstate"
	"github.com/ciaranj/piglet/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_SaveAndValidate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	siteID := primitive.NewObjectID()
	if err := store.Save(ctx, "state-1", "google", &siteID, "/docs", "/docs/guide"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	st, err := store.Validate(ctx, "state-1", "google")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if st.SiteID == nil || *st.SiteID != siteID {
		t.Errorf("site id = %v", st.SiteID)
	}
	if st.SitePath != "/docs" || st.ReturnTo != "/docs/guide" {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestStore_Validate_SingleUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Save(ctx, "state-1", "google", nil, "", ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Validate(ctx, "state-1", "google"); err != nil {
		t.Fatalf("first Validate failed: %v", err)
	}
	if _, err := store.Validate(ctx, "state-1", "google"); err != oauthstate.ErrInvalidState {
		t.Errorf("expected ErrInvalidState on reuse, got %v", err)
	}
}

func TestStore_Validate_WrongProvider(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Save(ctx, "state-1", "google", nil, "", ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Validate(ctx, "state-1", "microsoft"); err != oauthstate.ErrInvalidState {
		t.Errorf("expected ErrInvalidState for wrong provider, got %v", err)
	}
}

func TestStore_Validate_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db, time.Millisecond)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Save(ctx, "state-1", "google", nil, "", ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := store.Validate(ctx, "state-1", "google"); err != oauthstate.ErrInvalidState {
		t.Errorf("expected ErrInvalidState for expired state, got %v", err)
	}
}

func TestStore_DeleteExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	short := oauthstate.New(db, time.Millisecond)
	long := oauthstate.New(db, time.Minute)

	if err := short.Save(ctx, "stale", "google", nil, "", ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := long.Save(ctx, "fresh", "google", nil, "", ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	n, err := long.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if _, err := long.Validate(ctx, "fresh", "google"); err != nil {
		t.Errorf("fresh state should survive cleanup, got %v", err)
	}
}
