package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
)

type userDeletedEvent struct {
	EventID string `json:"event_id"`
	Data    struct {
		UserID string `json:"user_id"`
	} `json:"data"`
}

// HandleUserDeleted purges every campaign of a deleted account.
func (s *Service) HandleUserDeleted(ctx context.Context, payload []byte) error {
	var evt userDeletedEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("%w: invalid user.deleted payload", domain.ErrInvalidInput)
	}
	if evt.EventID == "" {
		return fmt.Errorf("%w: event_id is required", domain.ErrInvalidInput)
	}
	if s.eventDedup != nil {
		dup, err := s.eventDedup.IsDuplicate(ctx, evt.EventID, s.nowFn())
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
	}
	userID, err := uuid.Parse(evt.Data.UserID)
	if err != nil {
		return fmt.Errorf("%w: invalid user_id", domain.ErrInvalidInput)
	}
	removed, err := s.campaigns.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	s.invalidateCampaignCache(ctx, userID)
	slog.Default().InfoContext(ctx, "purged campaigns of deleted user",
		"module", "application",
		"layer", "application",
		"operation", "handle_user_deleted",
		"outcome", "success",
		"removed", removed,
	)
	if s.eventDedup != nil {
		_ = s.eventDedup.MarkProcessed(ctx, evt.EventID, "user.deleted", s.nowFn().Add(s.cfg.EventDedupTTL))
	}
	return nil
}
