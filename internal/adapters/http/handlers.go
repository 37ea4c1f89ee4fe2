package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/application"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
)

const maxBodyBytes = 4 << 20

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if failing := h.readiness.Probe(r.Context()); len(failing) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":   "Service unavailable",
				"failing": failing,
			})
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	filter := domain.Filter{
		Status: domain.CampaignStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Type:   domain.CampaignType(strings.TrimSpace(r.URL.Query().Get("type"))),
	}
	campaigns, err := h.service.ListCampaigns(r.Context(), identityFromContext(r.Context()).UserID, filter)
	if err != nil {
		h.fail(w, r, "list_campaigns", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": campaigns})
}

func (h *Handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	campaign, err := h.service.GetCampaign(r.Context(), identityFromContext(r.Context()).UserID, id)
	if err != nil {
		h.fail(w, r, "get_campaign", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign": campaign})
}

func (h *Handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req application.CampaignRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	campaign, err := h.service.CreateCampaign(r.Context(), identityFromContext(r.Context()).UserID, req, idempotencyKey(r))
	if err != nil {
		h.fail(w, r, "create_campaign", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"campaign": campaign})
}

func (h *Handler) updateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var req application.CampaignRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	campaign, err := h.service.UpdateCampaign(r.Context(), identityFromContext(r.Context()).UserID, id, req, idempotencyKey(r))
	if err != nil {
		h.fail(w, r, "update_campaign", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign": campaign})
}

func (h *Handler) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCampaign(r.Context(), identityFromContext(r.Context()).UserID, id); err != nil {
		h.fail(w, r, "delete_campaign", err)
		return
	}
	writeMessage(w, http.StatusOK, "Campaign deleted successfully")
}

func (h *Handler) updateCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var req application.UpdateStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	campaign, err := h.service.UpdateCampaignStatus(r.Context(), identityFromContext(r.Context()).UserID, id, req)
	if err != nil {
		h.fail(w, r, "update_campaign_status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign": campaign})
}

func (h *Handler) campaignStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.CampaignStats(r.Context(), identityFromContext(r.Context()).UserID)
	if err != nil {
		h.fail(w, r, "campaign_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) htmlToMarkdown(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many requests")
		return
	}
	var req application.HTMLToMarkdownRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := h.service.ConvertHTMLToMarkdown(r.Context(), identityFromContext(r.Context()).UserID, req)
	if err != nil {
		h.fail(w, r, "html_to_markdown", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	if res.DocumentID != "" {
		w.Header().Set("X-Storage-Path", "documents/"+res.DocumentID)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.Markdown)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = n
	}
	docs, err := h.service.ListDocuments(r.Context(), identityFromContext(r.Context()).UserID, limit)
	if err != nil {
		h.fail(w, r, "list_documents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, msg := mapDomainError(err)
	logHTTPOperationError(r.Context(), operation, status, msg, err)
	writeError(w, status, msg)
}

// campaignID parses the {id} path value. Ids that are not uuids cannot match
// any row and are reported as not found.
func campaignID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Campaign not found")
		return uuid.Nil, false
	}
	return id, true
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

// decodeBody reads exactly one JSON value. Unknown fields are ignored so
// clients may send back whole campaign objects.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}
