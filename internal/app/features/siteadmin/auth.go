// internal/app/features/siteadmin/auth.go
package siteadmin

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/domain/models"
)

type authConfigPayload struct {
	AuthType string         `json:"auth_type"`
	Enabled  bool           `json:"enabled"`
	Config   map[string]any `json:"config,omitempty"`
}

type emailSettingsPayload struct {
	FlowType       string   `json:"flow_type"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
}

type siteAuthPayload struct {
	AuthTypes     []authConfigPayload   `json:"auth_types"`
	EmailSettings *emailSettingsPayload `json:"email_settings,omitempty"`
}

// GetSiteAuth handles GET /sites/{siteID}/auth.
func (h *Handler) GetSiteAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}

	configs, err := h.SiteAuth.ListConfigs(ctx, site.ID)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}

	out := siteAuthPayload{AuthTypes: make([]authConfigPayload, 0, len(configs))}
	for _, c := range configs {
		out.AuthTypes = append(out.AuthTypes, authConfigPayload{
			AuthType: c.AuthType,
			Enabled:  c.Enabled,
			Config:   c.Config,
		})
	}

	settings, err := h.SiteAuth.GetEmailSettings(ctx, site.ID)
	if err == nil {
		out.EmailSettings = &emailSettingsPayload{
			FlowType:       settings.FlowType,
			AllowedDomains: settings.AllowedDomains,
		}
	} else if err != siteauth.ErrNotFound {
		storeError(w, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// PutSiteAuth handles PUT /sites/{siteID}/auth: replaces the auth
// configuration wholesale.
func (h *Handler) PutSiteAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}

	var in siteAuthPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, c := range in.AuthTypes {
		if !models.IsSiteAuthType(c.AuthType) {
			writeError(w, http.StatusBadRequest, "unknown auth type: "+c.AuthType)
			return
		}
	}
	if in.EmailSettings != nil {
		ft := in.EmailSettings.FlowType
		if ft != models.FlowMagicLink && ft != models.FlowRegister {
			writeError(w, http.StatusBadRequest, "unknown flow type: "+ft)
			return
		}
		for _, d := range in.EmailSettings.AllowedDomains {
			if d == "" || strings.ContainsAny(d, "@/ ") {
				writeError(w, http.StatusBadRequest, "invalid allowed domain: "+d)
				return
			}
		}
	}

	for _, c := range in.AuthTypes {
		if err := h.SiteAuth.UpsertConfig(ctx, site.ID, c.AuthType, c.Enabled, c.Config); err != nil {
			storeError(w, h.Log, err)
			return
		}
	}
	if in.EmailSettings != nil {
		if err := h.SiteAuth.SetEmailSettings(ctx, site.ID, in.EmailSettings.FlowType, in.EmailSettings.AllowedDomains); err != nil {
			storeError(w, h.Log, err)
			return
		}
	}

	h.GetSiteAuth(w, r)
}
