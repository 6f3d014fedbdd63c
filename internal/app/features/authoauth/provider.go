// internal/app/features/authoauth/provider.go
package authoauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// Provider describes one OAuth identity provider.
type Provider struct {
	// Name is the auth type recorded on sessions and identities:
	// "google", "microsoft", or "entra".
	Name string

	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	Scopes       []string

	// AdminPortal providers issue sessions with no site scope.
	AdminPortal bool

	// FetchUserInfo retrieves the signed-in user from the provider.
	FetchUserInfo func(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}

// UserInfo is the provider-reported user.
type UserInfo struct {
	ID    string
	Email string
	Name  string
}

// IsConfigured reports whether the provider has credentials.
func (p *Provider) IsConfigured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// Google builds the Google visitor sign-in provider.
func Google(clientID, clientSecret string) *Provider {
	return &Provider{
		Name:         "google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		FetchUserInfo: fetchGoogleUserInfo,
	}
}

// Microsoft builds the Microsoft visitor sign-in provider. The "common"
// tenant accepts both personal and organizational accounts.
func Microsoft(clientID, clientSecret string) *Provider {
	return &Provider{
		Name:          "microsoft",
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		Endpoint:      microsoft.AzureADEndpoint("common"),
		Scopes:        []string{"openid", "email", "profile", "User.Read"},
		FetchUserInfo: fetchGraphUserInfo,
	}
}

// Entra builds the admin sign-in provider, restricted to one tenant.
func Entra(clientID, clientSecret, tenant string) *Provider {
	return &Provider{
		Name:          "entra",
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		Endpoint:      microsoft.AzureADEndpoint(tenant),
		Scopes:        []string{"openid", "email", "profile", "User.Read"},
		AdminPortal:   true,
		FetchUserInfo: fetchGraphUserInfo,
	}
}

// googleUserInfo is Google's userinfo response.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	var info googleUserInfo
	if err := fetchJSON(ctx, token, "https://www.googleapis.com/oauth2/v2/userinfo", &info); err != nil {
		return nil, err
	}
	return &UserInfo{ID: info.ID, Email: info.Email, Name: info.Name}, nil
}

// graphUserInfo is the Microsoft Graph /me response.
type graphUserInfo struct {
	ID                string `json:"id"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
}

func fetchGraphUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	var info graphUserInfo
	if err := fetchJSON(ctx, token, "https://graph.microsoft.com/v1.0/me", &info); err != nil {
		return nil, err
	}
	email := info.Mail
	if email == "" {
		// Personal and guest accounts often carry the address here.
		email = info.UserPrincipalName
	}
	return &UserInfo{ID: info.ID, Email: email, Name: info.DisplayName}, nil
}

func fetchJSON(ctx context.Context, token *oauth2.Token, url string, out any) error {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode user info: %w", err)
	}
	return nil
}
