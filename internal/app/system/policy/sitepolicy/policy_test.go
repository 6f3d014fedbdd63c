package sitepolicy_test

import (
	"reflect"
	"testing"

	"github.com/ciaranj/piglet/internal/app/system/policy/sitepolicy"
	"github.com/ciaranj/piglet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func site() models.Site {
	return models.Site{ID: primitive.NewObjectID(), Path: "/docs", Name: "Docs"}
}

func configs(s models.Site, enabledTypes ...string) []models.AuthConfig {
	var out []models.AuthConfig
	for _, t := range enabledTypes {
		out = append(out, models.AuthConfig{SiteID: s.ID, AuthType: t, Enabled: true})
	}
	return out
}

func sessionFor(s models.Site, authType string) (*models.Session, *models.User) {
	uid := primitive.NewObjectID()
	sid := s.ID
	return &models.Session{ID: "sess", UserID: uid, AuthType: authType, SiteID: &sid},
		&models.User{ID: uid, Email: "alice@example.com"}
}

func TestDecide_AnonymousAllowsEveryone(t *testing.T) {
	s := site()
	d := sitepolicy.Decide(sitepolicy.Input{Site: s, Configs: configs(s, models.AuthAnonymous)})
	if d.Kind != sitepolicy.Allow {
		t.Errorf("expected Allow, got %v", d.Kind)
	}
}

func TestDecide_AnonymousWinsOverOtherMethods(t *testing.T) {
	s := site()
	d := sitepolicy.Decide(sitepolicy.Input{Site: s, Configs: configs(s, models.AuthGoogle, models.AuthAnonymous)})
	if d.Kind != sitepolicy.Allow {
		t.Errorf("expected Allow, got %v", d.Kind)
	}
}

func TestDecide_NothingEnabledDenies(t *testing.T) {
	s := site()
	d := sitepolicy.Decide(sitepolicy.Input{Site: s})
	if d.Kind != sitepolicy.Deny {
		t.Errorf("expected Deny, got %v", d.Kind)
	}

	// A disabled config counts as nothing enabled.
	d = sitepolicy.Decide(sitepolicy.Input{
		Site:    s,
		Configs: []models.AuthConfig{{SiteID: s.ID, AuthType: models.AuthGoogle, Enabled: false}},
	})
	if d.Kind != sitepolicy.Deny {
		t.Errorf("expected Deny for disabled-only configs, got %v", d.Kind)
	}
}

func TestDecide_NoSessionRedirectsToLogin(t *testing.T) {
	s := site()
	d := sitepolicy.Decide(sitepolicy.Input{Site: s, Configs: configs(s, models.AuthGoogle, models.AuthEmail)})
	if d.Kind != sitepolicy.RedirectLogin {
		t.Fatalf("expected RedirectLogin, got %v", d.Kind)
	}
	if !reflect.DeepEqual(d.AuthTypes, []string{models.AuthGoogle, models.AuthEmail}) {
		t.Errorf("auth types = %v", d.AuthTypes)
	}
}

func TestDecide_SingleProviderChoice(t *testing.T) {
	s := site()
	d := sitepolicy.Decide(sitepolicy.Input{Site: s, Configs: configs(s, models.AuthGoogle)})
	if d.Kind != sitepolicy.RedirectLogin {
		t.Fatalf("expected RedirectLogin, got %v", d.Kind)
	}
	if !reflect.DeepEqual(d.AuthTypes, []string{"google"}) {
		t.Errorf("auth types = %v, want [google]", d.AuthTypes)
	}
}

func TestDecide_GlobalAdminBypassesMethodChecks(t *testing.T) {
	s := site()
	// Admin portal session: entra auth type, no site scope, not enabled on
	// the site. Global admins get in anyway.
	uid := primitive.NewObjectID()
	d := sitepolicy.Decide(sitepolicy.Input{
		Site:        s,
		Configs:     configs(s, models.AuthGoogle),
		Session:     &models.Session{ID: "sess", UserID: uid, AuthType: models.AuthEntra},
		User:        &models.User{ID: uid, Email: "admin@ops.example"},
		GlobalAdmin: true,
	})
	if d.Kind != sitepolicy.Allow {
		t.Errorf("expected Allow for global admin, got %v", d.Kind)
	}
}

func TestDecide_SessionForOtherSiteTreatedAsSignedOut(t *testing.T) {
	s := site()
	sess, user := sessionFor(site(), models.AuthGoogle) // scoped to a different site
	d := sitepolicy.Decide(sitepolicy.Input{
		Site:    s,
		Configs: configs(s, models.AuthGoogle),
		Session: sess,
		User:    user,
	})
	if d.Kind != sitepolicy.RedirectLogin {
		t.Errorf("expected RedirectLogin, got %v", d.Kind)
	}
}

func TestDecide_MethodMismatchDenies(t *testing.T) {
	s := site()
	sess, user := sessionFor(s, models.AuthMicrosoft)
	d := sitepolicy.Decide(sitepolicy.Input{
		Site:    s,
		Configs: configs(s, models.AuthGoogle),
		Session: sess,
		User:    user,
	})
	if d.Kind != sitepolicy.Deny {
		t.Errorf("expected Deny for method mismatch, got %v", d.Kind)
	}
}

func TestDecide_MatchingMethodAllows(t *testing.T) {
	s := site()
	sess, user := sessionFor(s, models.AuthGoogle)
	d := sitepolicy.Decide(sitepolicy.Input{
		Site:    s,
		Configs: configs(s, models.AuthGoogle),
		Session: sess,
		User:    user,
	})
	if d.Kind != sitepolicy.Allow {
		t.Errorf("expected Allow, got %v", d.Kind)
	}
}

func TestDecide_EmailDomainRestriction(t *testing.T) {
	s := site()
	sess, user := sessionFor(s, models.AuthEmail)
	in := sitepolicy.Input{
		Site:    s,
		Configs: configs(s, models.AuthEmail),
		Email: &models.EmailSettings{
			SiteID:         s.ID,
			FlowType:       models.FlowMagicLink,
			AllowedDomains: []string{"corp.example"},
		},
		Session: sess,
		User:    user, // alice@example.com
	}
	if d := sitepolicy.Decide(in); d.Kind != sitepolicy.Deny {
		t.Errorf("expected Deny for disallowed domain, got %v", d.Kind)
	}

	in.User = &models.User{ID: user.ID, Email: "bob@CORP.example"}
	if d := sitepolicy.Decide(in); d.Kind != sitepolicy.Allow {
		t.Errorf("expected Allow for allowed domain (case-insensitive), got %v", d.Kind)
	}
}

func TestDecide_RegisterFlowRedirectsUnregistered(t *testing.T) {
	s := site()
	sess, user := sessionFor(s, models.AuthEmail)
	in := sitepolicy.Input{
		Site:    s,
		Configs: configs(s, models.AuthEmail),
		Email:   &models.EmailSettings{SiteID: s.ID, FlowType: models.FlowRegister},
		Session: sess,
		User:    user,
	}

	if d := sitepolicy.Decide(in); d.Kind != sitepolicy.RedirectRegister {
		t.Errorf("expected RedirectRegister, got %v", d.Kind)
	}

	in.Registered = true
	if d := sitepolicy.Decide(in); d.Kind != sitepolicy.Allow {
		t.Errorf("expected Allow for registered user, got %v", d.Kind)
	}
}

func TestDecide_EmailWithoutSettingsDefaultsToMagicLink(t *testing.T) {
	s := site()
	sess, user := sessionFor(s, models.AuthEmail)
	d := sitepolicy.Decide(sitepolicy.Input{
		Site:    s,
		Configs: configs(s, models.AuthEmail),
		Session: sess,
		User:    user,
	})
	if d.Kind != sitepolicy.Allow {
		t.Errorf("expected Allow without settings row, got %v", d.Kind)
	}
}
