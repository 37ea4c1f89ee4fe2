package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/apidocs"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/application"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/i18n"
)

type renderFunc func(h *Handler, r *http.Request, params map[string]string, v *View) error

type option struct {
	Value    string
	Key      string
	Selected bool
}

type campaignCard struct {
	ID          string
	Name        string
	Description string
	Type        string
	Status      string
	CreatedAt   string
	ScheduledAt string
}

type cardView struct {
	View *View
	Card campaignCard
}

type statCount struct {
	Key   string
	Count int
}

type dashboardData struct {
	Total    int
	ByStatus []statCount
	ByType   []statCount
	Recent   []campaignCard
}

type listData struct {
	Cards    []campaignCard
	Statuses []option
	Types    []option
}

type formData struct {
	Form      CampaignForm
	Edit      bool
	Action    string
	CancelURL string
	Types     []option
	Statuses  []option
	Platforms []option
}

type docsData struct {
	Groups    []docsGroup
	Languages []string
	Example   string
}

type docsGroup struct {
	Name      string
	Endpoints []apidocs.Endpoint
}

type plan struct {
	Key      string
	PriceKey string
	Popular  bool
}

type settingsData struct {
	Email   string
	UserID  string
	PlanKey string
}

type loginData struct {
	Redirect string
}

// formStatuses are the statuses a user may pick by hand; completed and
// cancelled are reached through the status endpoint.
var formStatuses = []domain.CampaignStatus{
	domain.CampaignStatusDraft,
	domain.CampaignStatusScheduled,
	domain.CampaignStatusRunning,
	domain.CampaignStatusPaused,
}

func renderHome(_ *Handler, _ *http.Request, _ map[string]string, _ *View) error {
	return nil
}

func renderDashboard(h *Handler, r *http.Request, _ map[string]string, v *View) error {
	stats, err := h.service.CampaignStats(r.Context(), v.User.UserID)
	if err != nil {
		return err
	}
	recent, err := h.service.ListCampaigns(r.Context(), v.User.UserID, domain.Filter{})
	if err != nil {
		return err
	}
	if len(recent) > 5 {
		recent = recent[:5]
	}
	data := dashboardData{Total: stats.Total, Recent: toCards(recent)}
	for _, s := range domain.CampaignStatuses {
		data.ByStatus = append(data.ByStatus, statCount{Key: "campaigns.status." + string(s), Count: stats.ByStatus[string(s)]})
	}
	for _, t := range domain.CampaignTypes {
		data.ByType = append(data.ByType, statCount{Key: "campaigns.type." + string(t), Count: stats.ByType[string(t)]})
	}
	v.Data = data
	return nil
}

func renderCampaignList(h *Handler, r *http.Request, _ map[string]string, v *View) error {
	status := r.URL.Query().Get("status")
	campaignType := r.URL.Query().Get("type")
	campaigns, err := h.service.ListCampaigns(r.Context(), v.User.UserID, domain.Filter{
		Status: domain.CampaignStatus(status),
		Type:   domain.CampaignType(campaignType),
	})
	if err != nil {
		return err
	}
	data := listData{Cards: toCards(campaigns)}
	for _, s := range domain.CampaignStatuses {
		data.Statuses = append(data.Statuses, option{Value: string(s), Key: "campaigns.status." + string(s), Selected: string(s) == status})
	}
	for _, t := range domain.CampaignTypes {
		data.Types = append(data.Types, option{Value: string(t), Key: "campaigns.type." + string(t), Selected: string(t) == campaignType})
	}
	v.Data = data
	return nil
}

func renderNewCampaign(_ *Handler, _ *http.Request, _ map[string]string, v *View) error {
	v.Data = newFormData(CampaignForm{Type: string(domain.CampaignTypeEmail), Status: string(domain.CampaignStatusDraft)}, "")
	return nil
}

func renderEditCampaign(h *Handler, r *http.Request, params map[string]string, v *View) error {
	id, err := uuid.Parse(params["id"])
	if err != nil {
		return domain.ErrNotFound
	}
	campaign, err := h.service.GetCampaign(r.Context(), v.User.UserID, id)
	if err != nil {
		return err
	}
	v.Data = newFormData(FormFromCampaign(campaign), campaign.ID)
	return nil
}

func newFormData(form CampaignForm, id string) formData {
	data := formData{Form: form, Action: "/campaigns/new", CancelURL: "/campaigns"}
	if id != "" {
		data.Edit = true
		data.Action = "/campaigns/" + id + "/edit"
	}
	for _, t := range domain.CampaignTypes {
		data.Types = append(data.Types, option{Value: string(t), Key: "campaigns.type." + string(t), Selected: string(t) == form.Type})
	}
	for _, s := range formStatuses {
		data.Statuses = append(data.Statuses, option{Value: string(s), Key: "campaigns.status." + string(s), Selected: string(s) == form.Status})
	}
	for _, p := range domain.SocialPlatforms {
		data.Platforms = append(data.Platforms, option{Value: p, Key: p, Selected: p == form.SocialPlatform})
	}
	return data
}

func renderDocs(h *Handler, r *http.Request, _ map[string]string, v *View) error {
	data := docsData{Languages: h.docs.Languages(), Example: "curl"}
	if ex := r.URL.Query().Get("example"); ex != "" {
		for _, lang := range data.Languages {
			if lang == ex {
				data.Example = ex
			}
		}
	}
	for _, g := range h.docs.Groups() {
		group := docsGroup{Name: g}
		for _, e := range h.docs.Endpoints() {
			if e.Group == g {
				group.Endpoints = append(group.Endpoints, e)
			}
		}
		data.Groups = append(data.Groups, group)
	}
	v.Data = data
	return nil
}

func renderPricing(_ *Handler, _ *http.Request, _ map[string]string, v *View) error {
	v.Data = []plan{
		{Key: "pages.pricing.monthly", PriceKey: "pages.pricing.monthly_price"},
		{Key: "pages.pricing.yearly", PriceKey: "pages.pricing.yearly_price", Popular: true},
	}
	return nil
}

func renderSettings(_ *Handler, _ *http.Request, _ map[string]string, v *View) error {
	planKey := "pages.settings.plan_monthly"
	// The subscription tier rides in the role claim.
	if v.User.Role == "yearly" {
		planKey = "pages.settings.plan_yearly"
	}
	v.Data = settingsData{Email: v.User.Email, UserID: v.User.UserID.String(), PlanKey: planKey}
	return nil
}

func renderLogin(_ *Handler, r *http.Request, _ map[string]string, v *View) error {
	v.Data = loginData{Redirect: safeRedirect(r.URL.Query().Get("redirect"), "/dashboard")}
	return nil
}

func toCards(campaigns []application.CampaignResponse) []campaignCard {
	out := make([]campaignCard, 0, len(campaigns))
	for _, c := range campaigns {
		card := campaignCard{
			ID:        c.ID,
			Name:      c.Name,
			Type:      c.Type,
			Status:    c.Status,
			CreatedAt: formatDate(c.CreatedAt),
		}
		if c.Description != nil {
			card.Description = *c.Description
		}
		if c.ScheduledAt != nil {
			card.ScheduledAt = formatDate(*c.ScheduledAt)
		}
		out = append(out, card)
	}
	return out
}

func (h *Handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	h.saveCampaign(w, r, "")
}

func (h *Handler) updateCampaign(w http.ResponseWriter, r *http.Request) {
	h.saveCampaign(w, r, chi.URLParam(r, "id"))
}

// saveCampaign handles both form submissions. Rejected input re-renders the
// form with the submitted values and the error shown above it.
func (h *Handler) saveCampaign(w http.ResponseWriter, r *http.Request, rawID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var id uuid.UUID
	if rawID != "" {
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			h.notFound(w, r)
			return
		}
		id = parsed
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	form := ParseCampaignForm(r.PostForm)
	v := h.view(w, r, "campaign-form", user)
	titleKey := "campaigns.form.create_title"
	if rawID != "" {
		titleKey = "campaigns.form.edit_title"
	}
	v.Title = v.T(titleKey)
	v.Data = newFormData(form, rawID)

	if form.Name == "" {
		v.Error = v.T("campaigns.form.name_required")
		h.write(w, r, http.StatusBadRequest, "campaign-form", v)
		return
	}
	req, err := form.Request()
	if err != nil {
		h.failPage(w, r, v, err)
		return
	}
	flash := "created"
	if rawID == "" {
		_, err = h.service.CreateCampaign(r.Context(), user.UserID, req, "")
	} else {
		flash = "updated"
		_, err = h.service.UpdateCampaign(r.Context(), user.UserID, id, req, "")
	}
	switch {
	case err == nil:
		http.Redirect(w, r, "/campaigns?flash="+flash, http.StatusSeeOther)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrRateLimitExceeded):
		v.Error = publicMessage(err)
		h.write(w, r, http.StatusBadRequest, "campaign-form", v)
	case errors.Is(err, domain.ErrNotFound):
		h.notFound(w, r)
	default:
		h.failPage(w, r, v, err)
	}
}

func (h *Handler) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.notFound(w, r)
		return
	}
	if err := h.service.DeleteCampaign(r.Context(), user.UserID, id); err != nil {
		h.failPage(w, r, h.view(w, r, "campaigns", user), err)
		return
	}
	http.Redirect(w, r, "/campaigns?flash=deleted", http.StatusSeeOther)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	token := strings.TrimSpace(r.PostForm.Get("token"))
	redirect := safeRedirect(r.PostForm.Get("redirect"), "/dashboard")
	if _, err := h.service.Identity(r.Context(), token); err != nil {
		v := h.view(w, r, "login", nil)
		v.Title = v.T("pages.login.title")
		v.Error = v.T("pages.login.invalid")
		v.Data = loginData{Redirect: redirect}
		h.write(w, r, http.StatusUnauthorized, "login", v)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	if tag, ok := i18n.ParseTag(r.PostForm.Get("language")); ok {
		i18n.SetLanguageCookie(w, tag)
	}
	http.Redirect(w, r, "/settings?flash=saved", http.StatusSeeOther)
}

func (h *Handler) docsMarkdown(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="api-docs.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.docs.Markdown()))
}

// publicMessage strips the sentinel prefix from a service error.
func publicMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{domain.ErrInvalidInput, domain.ErrRateLimitExceeded} {
		if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != msg {
			return trimmed
		}
	}
	return msg
}
