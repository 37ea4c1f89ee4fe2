package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
	"gorm.io/gorm"
)

type campaignRepository struct {
	db *gorm.DB
}

func (r *campaignRepository) List(ctx context.Context, userID uuid.UUID, filter domain.Filter) ([]domain.Campaign, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	var rows []campaignModel
	if err := q.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]domain.Campaign, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainCampaign(row))
	}
	return out, nil
}

func (r *campaignRepository) Get(ctx context.Context, userID, id uuid.UUID) (domain.Campaign, error) {
	var rec campaignModel
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&rec).Error; err != nil {
		return domain.Campaign{}, translateError(err)
	}
	return toDomainCampaign(rec), nil
}

func (r *campaignRepository) Create(ctx context.Context, params ports.CreateCampaignParams) (domain.Campaign, error) {
	rec := campaignModel{
		UserID:         params.UserID,
		Name:           params.Name,
		Description:    params.Description,
		Type:           string(params.Type),
		Status:         string(params.Status),
		TargetAudience: jsonObject(params.TargetAudience),
		Settings:       jsonObject(params.Settings),
		ScheduledAt:    params.ScheduledAt,
		CreatedAt:      params.CreatedAt,
		UpdatedAt:      params.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Campaign{}, translateError(err)
	}
	return toDomainCampaign(rec), nil
}

func (r *campaignRepository) Update(ctx context.Context, params ports.UpdateCampaignParams) (domain.Campaign, error) {
	updates := map[string]any{
		"name":         params.Name,
		"description":  params.Description,
		"type":         string(params.Type),
		"status":       string(params.Status),
		"scheduled_at": params.ScheduledAt,
		"updated_at":   params.UpdatedAt,
	}
	if params.TargetAudience != nil {
		updates["target_audience"] = jsonObject(params.TargetAudience)
	}
	if params.Settings != nil {
		updates["settings"] = jsonObject(params.Settings)
	}
	return r.updateScoped(ctx, params.ID, params.UserID, updates)
}

// UpdateStatus only touches the lifecycle timestamps it was given so an
// earlier started_at survives a later completion.
func (r *campaignRepository) UpdateStatus(ctx context.Context, params ports.UpdateCampaignStatusParams) (domain.Campaign, error) {
	updates := map[string]any{
		"status":     string(params.Status),
		"updated_at": params.UpdatedAt,
	}
	if params.StartedAt != nil {
		updates["started_at"] = *params.StartedAt
	}
	if params.CompletedAt != nil {
		updates["completed_at"] = *params.CompletedAt
	}
	return r.updateScoped(ctx, params.ID, params.UserID, updates)
}

func (r *campaignRepository) updateScoped(ctx context.Context, id, userID uuid.UUID, updates map[string]any) (domain.Campaign, error) {
	var rec campaignModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&campaignModel{}).Where("id = ? AND user_id = ?", id, userID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", id).Take(&rec).Error
	})
	if err != nil {
		return domain.Campaign{}, translateError(err)
	}
	return toDomainCampaign(rec), nil
}

func (r *campaignRepository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&campaignModel{})
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *campaignRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&campaignModel{})
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return res.RowsAffected, nil
}
