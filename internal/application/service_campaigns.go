package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
)

const campaignListVersionTTL = 24 * time.Hour

var scheduleLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

func (s *Service) ListCampaigns(ctx context.Context, userID uuid.UUID, filter domain.Filter) ([]CampaignResponse, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}
	all, err := s.cachedCampaigns(ctx, userID)
	if err != nil {
		return nil, err
	}
	if filter.IsZero() {
		return all, nil
	}
	out := make([]CampaignResponse, 0, len(all))
	for _, c := range all {
		if filter.Matches(domain.Campaign{Status: domain.CampaignStatus(c.Status), Type: domain.CampaignType(c.Type)}) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) GetCampaign(ctx context.Context, userID, campaignID uuid.UUID) (CampaignResponse, error) {
	if userID == uuid.Nil {
		return CampaignResponse{}, domain.ErrUnauthorized
	}
	c, err := s.campaigns.Get(ctx, userID, campaignID)
	if err != nil {
		return CampaignResponse{}, err
	}
	return toCampaignResponse(c), nil
}

func (s *Service) CreateCampaign(ctx context.Context, userID uuid.UUID, req CampaignRequest, idempotencyKey string) (CampaignResponse, error) {
	if userID == uuid.Nil {
		return CampaignResponse{}, domain.ErrUnauthorized
	}
	fields, err := parseCampaignRequest(req, true)
	if err != nil {
		return CampaignResponse{}, err
	}
	if err := s.enforceWriteLimit(ctx, userID); err != nil {
		return CampaignResponse{}, err
	}
	var replay CampaignResponse
	if ok, err := s.reserveIdempotency(ctx, idempotencyKey, userID, req, &replay); err != nil || ok {
		return replay, err
	}

	created, err := s.campaigns.Create(ctx, ports.CreateCampaignParams{
		UserID:         userID,
		Name:           fields.name,
		Description:    fields.description,
		Type:           fields.campaignType,
		Status:         fields.status,
		ScheduledAt:    fields.scheduledAt,
		TargetAudience: fields.targetAudience,
		Settings:       fields.settings,
		CreatedAt:      s.nowFn(),
	})
	if err != nil {
		s.releaseIdempotency(ctx, idempotencyKey, userID)
		return CampaignResponse{}, err
	}
	resp := toCampaignResponse(created)
	s.afterWrite(ctx, userID, eventCampaignCreated, newCampaignEventData(resp, ""))
	s.completeIdempotency(ctx, idempotencyKey, userID, http.StatusCreated, resp)
	return resp, nil
}

func (s *Service) UpdateCampaign(ctx context.Context, userID, campaignID uuid.UUID, req CampaignRequest, idempotencyKey string) (CampaignResponse, error) {
	if userID == uuid.Nil {
		return CampaignResponse{}, domain.ErrUnauthorized
	}
	fields, err := parseCampaignRequest(req, false)
	if err != nil {
		return CampaignResponse{}, err
	}
	if err := s.enforceWriteLimit(ctx, userID); err != nil {
		return CampaignResponse{}, err
	}
	var replay CampaignResponse
	scoped := map[string]any{"campaign_id": campaignID.String(), "request": req}
	if ok, err := s.reserveIdempotency(ctx, idempotencyKey, userID, scoped, &replay); err != nil || ok {
		return replay, err
	}

	updated, err := s.campaigns.Update(ctx, ports.UpdateCampaignParams{
		ID:             campaignID,
		UserID:         userID,
		Name:           fields.name,
		Description:    fields.description,
		Type:           fields.campaignType,
		Status:         fields.status,
		ScheduledAt:    fields.scheduledAt,
		TargetAudience: fields.targetAudience,
		Settings:       fields.settings,
		UpdatedAt:      s.nowFn(),
	})
	if err != nil {
		s.releaseIdempotency(ctx, idempotencyKey, userID)
		return CampaignResponse{}, err
	}
	resp := toCampaignResponse(updated)
	s.afterWrite(ctx, userID, eventCampaignUpdated, newCampaignEventData(resp, ""))
	s.completeIdempotency(ctx, idempotencyKey, userID, http.StatusOK, resp)
	return resp, nil
}

// DeleteCampaign succeeds whether or not a matching row existed.
func (s *Service) DeleteCampaign(ctx context.Context, userID, campaignID uuid.UUID) error {
	if userID == uuid.Nil {
		return domain.ErrUnauthorized
	}
	if err := s.enforceWriteLimit(ctx, userID); err != nil {
		return err
	}
	deleted, err := s.campaigns.Delete(ctx, userID, campaignID)
	if err != nil {
		return err
	}
	if !deleted {
		s.invalidateCampaignCache(ctx, userID)
		return nil
	}
	s.afterWrite(ctx, userID, eventCampaignDeleted, newCampaignEventData(CampaignResponse{
		ID:     campaignID.String(),
		UserID: userID.String(),
	}, ""))
	return nil
}

func (s *Service) UpdateCampaignStatus(ctx context.Context, userID, campaignID uuid.UUID, req UpdateStatusRequest) (CampaignResponse, error) {
	if userID == uuid.Nil {
		return CampaignResponse{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(req.Status) == "" {
		return CampaignResponse{}, fmt.Errorf("%w: Invalid campaign status", domain.ErrInvalidInput)
	}
	status, err := domain.ParseCampaignStatus(req.Status)
	if err != nil {
		return CampaignResponse{}, err
	}
	if err := s.enforceWriteLimit(ctx, userID); err != nil {
		return CampaignResponse{}, err
	}
	now := s.nowFn()
	startedAt, completedAt := domain.StatusTimestamps(status, now)
	updated, err := s.campaigns.UpdateStatus(ctx, ports.UpdateCampaignStatusParams{
		ID:          campaignID,
		UserID:      userID,
		Status:      status,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		UpdatedAt:   now,
	})
	if err != nil {
		return CampaignResponse{}, err
	}
	resp := toCampaignResponse(updated)
	s.afterWrite(ctx, userID, eventCampaignStatusChanged, newCampaignEventData(resp, string(status)))
	return resp, nil
}

func (s *Service) CampaignStats(ctx context.Context, userID uuid.UUID) (CampaignStatsResponse, error) {
	if userID == uuid.Nil {
		return CampaignStatsResponse{}, domain.ErrUnauthorized
	}
	all, err := s.cachedCampaigns(ctx, userID)
	if err != nil {
		return CampaignStatsResponse{}, err
	}
	campaigns := make([]domain.Campaign, 0, len(all))
	for _, c := range all {
		campaigns = append(campaigns, domain.Campaign{Status: domain.CampaignStatus(c.Status), Type: domain.CampaignType(c.Type)})
	}
	return toStatsResponse(domain.ComputeStats(campaigns)), nil
}

type campaignFields struct {
	name           string
	description    *string
	campaignType   domain.CampaignType
	status         domain.CampaignStatus
	scheduledAt    *time.Time
	targetAudience map[string]any
	settings       map[string]any
}

// parseCampaignRequest validates a create or full-update body. On update the
// JSON documents stay nil when the client did not send them.
func parseCampaignRequest(req CampaignRequest, create bool) (campaignFields, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Type) == "" {
		return campaignFields{}, fmt.Errorf("%w: Name and type are required", domain.ErrInvalidInput)
	}
	campaignType, err := domain.ParseCampaignType(req.Type)
	if err != nil {
		return campaignFields{}, err
	}
	status, err := domain.ParseCampaignStatus(req.Status)
	if err != nil {
		return campaignFields{}, err
	}
	name, err := domain.ValidateName(req.Name)
	if err != nil {
		return campaignFields{}, err
	}
	fields := campaignFields{
		name:         name,
		description:  domain.NormalizeDescription(req.Description),
		campaignType: campaignType,
		status:       status,
	}
	if create || isPresent(req.TargetAudience) {
		if fields.targetAudience, err = domain.ParseJSONObject(req.TargetAudience); err != nil {
			return campaignFields{}, err
		}
		if err := domain.ValidateTargetAudience(fields.targetAudience); err != nil {
			return campaignFields{}, err
		}
	}
	if create || isPresent(req.Settings) {
		if fields.settings, err = domain.ParseJSONObject(req.Settings); err != nil {
			return campaignFields{}, err
		}
		if err := domain.ValidateTypeSettings(campaignType, fields.settings); err != nil {
			return campaignFields{}, err
		}
	}
	if fields.scheduledAt, err = parseScheduledAt(req.ScheduledAt); err != nil {
		return campaignFields{}, err
	}
	return fields, nil
}

func isPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", `""`, "false", "0":
		return false
	}
	return true
}

func parseScheduledAt(v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(*v)
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("%w: Invalid scheduled_at", domain.ErrInvalidInput)
}

func (s *Service) cachedCampaigns(ctx context.Context, userID uuid.UUID) ([]CampaignResponse, error) {
	var key string
	if s.cache != nil {
		key = s.campaignListKey(ctx, userID)
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
			var cached []CampaignResponse
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}
	items, err := s.campaigns.List(ctx, userID, domain.Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]CampaignResponse, 0, len(items))
	for _, c := range items {
		out = append(out, toCampaignResponse(c))
	}
	if s.cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.cfg.ListCacheTTL); err != nil {
				slog.Default().WarnContext(ctx, "campaign list cache write failed",
					"module", "application",
					"layer", "application",
					"operation", "list_campaigns",
					"outcome", "warning",
					"error", err,
				)
			}
		}
	}
	return out, nil
}

// campaignListKey names the cached list under the user's current version. A
// list read before a write lands under the old version and is never served
// again.
func (s *Service) campaignListKey(ctx context.Context, userID uuid.UUID) string {
	version := "0"
	if raw, err := s.cache.Get(ctx, cacheKeyCampaignsVersion(userID)); err == nil && raw != "" {
		version = raw
	}
	return cacheKeyCampaigns(userID) + ":v" + version
}

// invalidateCampaignCache bumps the list version. The entry under the new
// version is dropped in case the counter expired and restarted.
func (s *Service) invalidateCampaignCache(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	version, err := s.cache.IncrWithTTL(ctx, cacheKeyCampaignsVersion(userID), campaignListVersionTTL)
	if err != nil {
		slog.Default().WarnContext(ctx, "campaign list cache invalidation failed",
			"module", "application",
			"layer", "application",
			"operation", "invalidate_campaigns",
			"outcome", "warning",
			"error", err,
		)
		return
	}
	_ = s.cache.Delete(ctx, cacheKeyCampaigns(userID)+":v"+strconv.FormatInt(version, 10))
}

// enforceWriteLimit counts mutations per user in a fixed window. The limiter
// fails open when the cache is unreachable.
func (s *Service) enforceWriteLimit(ctx context.Context, userID uuid.UUID) error {
	if s.cfg.WriteRateLimit <= 0 || s.cache == nil {
		return nil
	}
	count, err := s.cache.IncrWithTTL(ctx, cacheKeyWrites(userID), s.cfg.WriteRateWindow)
	if err != nil {
		slog.Default().WarnContext(ctx, "write rate-limit state unavailable",
			"module", "application",
			"layer", "application",
			"operation", "rate_limit",
			"outcome", "warning",
			"error", err,
		)
		return nil
	}
	if count > int64(s.cfg.WriteRateLimit) {
		return fmt.Errorf("%w: too many campaign changes, retry later", domain.ErrRateLimitExceeded)
	}
	return nil
}

func cacheKeyCampaigns(userID uuid.UUID) string {
	return "campaigns:user:" + userID.String()
}

func cacheKeyCampaignsVersion(userID uuid.UUID) string {
	return "campaigns:version:" + userID.String()
}

func cacheKeyWrites(userID uuid.UUID) string {
	return "campaigns:writes:" + userID.String()
}
