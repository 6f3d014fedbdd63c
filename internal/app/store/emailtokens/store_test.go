package emailtokens_test

import (
	"testing"
	"time"

	"github.com/ciaranj/piglet/internal/app/store/emailtokens"
	"github.com/ciaranj/piglet/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateAndVerifyCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailtokens.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	siteID := primitive.NewObjectID()

	res, err := store.Create(ctx, userID, siteID, "alice@example.com", emailtokens.PurposeLogin, "/docs/page", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(res.Code) != emailtokens.CodeLength {
		t.Errorf("code length = %d", len(res.Code))
	}
	if len(res.Token) != emailtokens.TokenLength*2 {
		t.Errorf("token length = %d", len(res.Token))
	}

	v, err := store.VerifyCode(ctx, userID, siteID, res.Code)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if v.Email != "alice@example.com" || v.Purpose != emailtokens.PurposeLogin {
		t.Errorf("unexpected verification %+v", v)
	}
	if v.ReturnTo != "/docs/page" {
		t.Errorf("return_to = %q", v.ReturnTo)
	}

	// Single use.
	if _, err := store.VerifyCode(ctx, userID, siteID, res.Code); err != emailtokens.ErrNotFound {
		t.Errorf("expected ErrNotFound on reuse, got %v", err)
	}
}

func TestStore_VerifyCode_WrongCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailtokens.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	siteID := primitive.NewObjectID()

	res, err := store.Create(ctx, userID, siteID, "a@b.c", emailtokens.PurposeLogin, "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.VerifyCode(ctx, userID, siteID, "000000"); err != emailtokens.ErrInvalidCode {
		t.Errorf("expected ErrInvalidCode, got %v", err)
	}

	// Still valid with the right code after one failure.
	if _, err := store.VerifyCode(ctx, userID, siteID, res.Code); err != nil {
		t.Errorf("VerifyCode after one failure errored: %v", err)
	}
}

func TestStore_VerifyCode_TooManyAttempts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailtokens.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	siteID := primitive.NewObjectID()

	res, err := store.Create(ctx, userID, siteID, "a@b.c", emailtokens.PurposeLogin, "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < emailtokens.MaxVerifyAttempts; i++ {
		if _, err := store.VerifyCode(ctx, userID, siteID, "000000"); err != emailtokens.ErrInvalidCode {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i, err)
		}
	}

	// Even the correct code is refused once the limit is hit.
	if _, err := store.VerifyCode(ctx, userID, siteID, res.Code); err != emailtokens.ErrTooManyAttempts {
		t.Errorf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestStore_VerifyToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailtokens.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	siteID := primitive.NewObjectID()

	res, err := store.Create(ctx, userID, siteID, "a@b.c", emailtokens.PurposeRegister, "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	v, err := store.VerifyToken(ctx, res.Token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if v.UserID != userID || v.SiteID != siteID || v.Purpose != emailtokens.PurposeRegister {
		t.Errorf("unexpected verification %+v", v)
	}

	if _, err := store.VerifyToken(ctx, res.Token); err != emailtokens.ErrNotFound {
		t.Errorf("expected ErrNotFound on reuse, got %v", err)
	}
}

func TestStore_VerifyToken_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailtokens.New(db, time.Millisecond)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	res, err := store.Create(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "a@b.c", emailtokens.PurposeLogin, "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := store.VerifyToken(ctx, res.Token); err != emailtokens.ErrNotFound {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestStore_Create_ReplacesPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailtokens.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	siteID := primitive.NewObjectID()

	first, err := store.Create(ctx, userID, siteID, "a@b.c", emailtokens.PurposeLogin, "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := store.Create(ctx, userID, siteID, "a@b.c", emailtokens.PurposeLogin, "", true)
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}

	if _, err := store.VerifyToken(ctx, first.Token); err != emailtokens.ErrNotFound {
		t.Errorf("old token should be invalid after replacement, got %v", err)
	}
	if _, err := store.VerifyToken(ctx, second.Token); err != nil {
		t.Errorf("new token should verify, got %v", err)
	}
}

func TestStore_Create_ResendRateLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailtokens.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	siteID := primitive.NewObjectID()

	if _, err := store.Create(ctx, userID, siteID, "a@b.c", emailtokens.PurposeLogin, "", false); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for i := 0; i < emailtokens.MaxResends; i++ {
		if _, err := store.Create(ctx, userID, siteID, "a@b.c", emailtokens.PurposeLogin, "", true); err != nil {
			t.Fatalf("resend %d failed: %v", i, err)
		}
	}
	if _, err := store.Create(ctx, userID, siteID, "a@b.c", emailtokens.PurposeLogin, "", true); err != emailtokens.ErrTooManyResends {
		t.Errorf("expected ErrTooManyResends, got %v", err)
	}
}

func TestStore_DeleteBySite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailtokens.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	siteID := primitive.NewObjectID()
	otherSiteID := primitive.NewObjectID()

	doomed, err := store.Create(ctx, primitive.NewObjectID(), siteID, "a@b.c", emailtokens.PurposeLogin, "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	kept, err := store.Create(ctx, primitive.NewObjectID(), otherSiteID, "b@c.d", emailtokens.PurposeLogin, "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.DeleteBySite(ctx, siteID); err != nil {
		t.Fatalf("DeleteBySite failed: %v", err)
	}

	if _, err := store.VerifyToken(ctx, doomed.Token); err != emailtokens.ErrNotFound {
		t.Errorf("token for deleted site should be gone, got %v", err)
	}
	if _, err := store.VerifyToken(ctx, kept.Token); err != nil {
		t.Errorf("other site's token should survive, got %v", err)
	}
}

func TestStore_DeleteExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	short := emailtokens.New(db, time.Millisecond)
	long := emailtokens.New(db, time.Minute)

	if _, err := short.Create(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "a@b.c", emailtokens.PurposeLogin, "", false); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	live, err := long.Create(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "b@c.d", emailtokens.PurposeLogin, "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	n, err := long.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if _, err := long.VerifyToken(ctx, live.Token); err != nil {
		t.Errorf("live verification should survive cleanup, got %v", err)
	}
}
