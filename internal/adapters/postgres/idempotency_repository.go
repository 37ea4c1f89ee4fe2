package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type idempotencyRepository struct {
	db *gorm.DB
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	var rec campaignIdempotencyModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err)
	}
	out := &ports.IdempotencyRecord{
		Key: rec.IdempotencyKey, RequestHash: rec.RequestHash, Status: rec.Status,
		ResponseCode: rec.ResponseCode, ExpiresAt: rec.ExpiresAt,
	}
	if rec.ResponseBody != nil {
		out.ResponseBody = []byte(*rec.ResponseBody)
	}
	return out, nil
}

// Reserve inserts the key or takes over an expired reservation.
func (r *idempotencyRepository) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	now := time.Now().UTC()
	rec := campaignIdempotencyModel{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Status:         "reserved",
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "idempotency_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"request_hash":  requestHash,
			"status":        "reserved",
			"response_code": 0,
			"response_body": nil,
			"expires_at":    expiresAt,
			"updated_at":    now,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: clause.Column{Table: "campaign_idempotency", Name: "expires_at"}, Value: now},
		}},
	}).Create(&rec)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return domain.ErrIdempotencyConflict
		}
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrIdempotencyConflict
	}
	return nil
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ? AND status <> ?", key, "completed").
		Delete(&campaignIdempotencyModel{}).Error
	return translateError(err)
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	payload := string(responseBody)
	return r.db.WithContext(ctx).Model(&campaignIdempotencyModel{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]any{
			"status":        "completed",
			"response_code": responseCode,
			"response_body": payload,
			"updated_at":    at,
		}).Error
}
