// internal/app/bootstrap/startup_test.go
package bootstrap

import (
	"reflect"
	"testing"

	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/ciaranj/piglet/internal/testutil"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestEnsureBootstrapAdmin_CreatesNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}

	if err := ensureBootstrapAdmin(ctx, deps, "root@test.example", testLogger()); err != nil {
		t.Fatalf("ensureBootstrapAdmin failed: %v", err)
	}

	user, err := users.New(db).GetByEmail(ctx, "root@test.example")
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	isAdmin, err := admins.New(db).IsGlobalAdmin(ctx, user.ID)
	if err != nil {
		t.Fatalf("IsGlobalAdmin: %v", err)
	}
	if !isAdmin {
		t.Error("user is not a global admin")
	}
}

func TestEnsureBootstrapAdmin_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	existing, err := users.New(db).EnsureByEmail(ctx, "existing@test.example")
	if err != nil {
		t.Fatalf("EnsureByEmail: %v", err)
	}

	deps := DBDeps{MongoDatabase: db}
	if err := ensureBootstrapAdmin(ctx, deps, "existing@test.example", testLogger()); err != nil {
		t.Fatalf("ensureBootstrapAdmin failed: %v", err)
	}

	isAdmin, err := admins.New(db).IsGlobalAdmin(ctx, existing.ID)
	if err != nil {
		t.Fatalf("IsGlobalAdmin: %v", err)
	}
	if !isAdmin {
		t.Error("existing user was not promoted")
	}

	// Running again must not fail or duplicate the grant.
	if err := ensureBootstrapAdmin(ctx, deps, "existing@test.example", testLogger()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	grants, err := admins.New(db).ListGlobalAdmins(ctx)
	if err != nil {
		t.Fatalf("ListGlobalAdmins: %v", err)
	}
	if len(grants) != 1 {
		t.Errorf("%d grants, want 1", len(grants))
	}
}

func TestSplitOrigins(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"https://admin.example.com", []string{"https://admin.example.com"}},
		{"https://a.example, https://b.example ,", []string{"https://a.example", "https://b.example"}},
	}
	for _, c := range cases {
		if got := splitOrigins(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("splitOrigins(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
