package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/telemetry"
)

const (
	eventCampaignCreated       = "campaign.created"
	eventCampaignUpdated       = "campaign.updated"
	eventCampaignDeleted       = "campaign.deleted"
	eventCampaignStatusChanged = "campaign.status_changed"

	idempotencyStatusCompleted = "completed"
)

type campaignEventData struct {
	CampaignID string `json:"campaign_id"`
	UserID     string `json:"user_id"`
	Name       string `json:"name,omitempty"`
	Type       string `json:"type,omitempty"`
	Status     string `json:"status,omitempty"`
	NewStatus  string `json:"new_status,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

func newCampaignEventData(c CampaignResponse, newStatus string) campaignEventData {
	data := campaignEventData{
		CampaignID: c.ID,
		UserID:     c.UserID,
		Name:       c.Name,
		Type:       c.Type,
		Status:     c.Status,
		NewStatus:  newStatus,
	}
	if !c.UpdatedAt.IsZero() {
		data.UpdatedAt = c.UpdatedAt.Format(time.RFC3339)
	}
	return data
}

// afterWrite drops the cached list for the user and queues the change event.
// Outbox failures are logged; the write itself already succeeded.
func (s *Service) afterWrite(ctx context.Context, userID uuid.UUID, eventType string, data campaignEventData) {
	s.invalidateCampaignCache(ctx, userID)
	if err := s.enqueueCampaignEvent(ctx, eventType, data); err != nil {
		slog.Default().WarnContext(ctx, "failed to enqueue campaign event",
			"module", "application",
			"layer", "application",
			"operation", eventType,
			"outcome", "failure",
			"campaign_id", data.CampaignID,
			"error", err,
		)
	}
}

func (s *Service) enqueueCampaignEvent(ctx context.Context, eventType string, data campaignEventData) error {
	if s.outbox == nil {
		return nil
	}
	occurredAt := s.nowFn()
	eventID := uuid.New()
	envelope := map[string]any{
		"event_id":           eventID.String(),
		"event_type":         eventType,
		"occurred_at":        occurredAt.Format(time.RFC3339),
		"source_service":     s.cfg.ServiceName,
		"trace_id":           telemetry.TraceID(ctx),
		"schema_version":     "1.0",
		"partition_key_path": "data.user_id",
		"partition_key":      data.UserID,
		"data":               data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:          eventID,
		EventType:        eventType,
		PartitionKey:     data.UserID,
		PartitionKeyPath: "data.user_id",
		Payload:          payload,
		OccurredAt:       occurredAt,
		SchemaVersion:    "1.0",
	})
}

func hashRequest(v any) string {
	raw, _ := json.Marshal(v)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func idempotencyScope(userID uuid.UUID, key string) string {
	return userID.String() + ":" + key
}

// reserveIdempotency claims key for this request. When the same request was
// already completed under key, its stored response is decoded into replay and
// true is returned.
func (s *Service) reserveIdempotency(ctx context.Context, key string, userID uuid.UUID, request any, replay any) (bool, error) {
	if key == "" || s.idempotency == nil {
		return false, nil
	}
	scoped := idempotencyScope(userID, key)
	hash := hashRequest(request)
	existing, err := s.idempotency.Get(ctx, scoped)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if existing != nil && existing.ExpiresAt.After(s.nowFn()) {
		if existing.RequestHash != hash {
			return false, fmt.Errorf("%w: key reused with a different request", domain.ErrIdempotencyConflict)
		}
		if existing.Status == idempotencyStatusCompleted && len(existing.ResponseBody) > 0 {
			if err := json.Unmarshal(existing.ResponseBody, replay); err != nil {
				return false, fmt.Errorf("%w: stored response unreadable", domain.ErrIdempotencyConflict)
			}
			return true, nil
		}
		return false, fmt.Errorf("%w: request already in progress", domain.ErrIdempotencyConflict)
	}
	if err := s.idempotency.Reserve(ctx, scoped, hash, s.nowFn().Add(s.cfg.IdempotencyTTL)); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrIdempotencyConflict, err)
	}
	return false, nil
}

// releaseIdempotency frees key after the guarded write failed, so a retry
// with the same key runs again instead of hitting the pending reservation.
func (s *Service) releaseIdempotency(ctx context.Context, key string, userID uuid.UUID) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, idempotencyScope(userID, key)); err != nil {
		slog.Default().WarnContext(ctx, "failed to release idempotency record",
			"module", "application",
			"layer", "application",
			"operation", "idempotency_release",
			"outcome", "failure",
			"error", err,
		)
	}
}

func (s *Service) completeIdempotency(ctx context.Context, key string, userID uuid.UUID, code int, response any) {
	if key == "" || s.idempotency == nil {
		return
	}
	body, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.idempotency.Complete(ctx, idempotencyScope(userID, key), code, body, s.nowFn()); err != nil {
		slog.Default().WarnContext(ctx, "failed to complete idempotency record",
			"module", "application",
			"layer", "application",
			"operation", "idempotency_complete",
			"outcome", "failure",
			"error", err,
		)
	}
}
