package postgres

import "github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"

func toDomainCampaign(m campaignModel) domain.Campaign {
	audience := map[string]any(m.TargetAudience)
	if audience == nil {
		audience = map[string]any{}
	}
	settings := map[string]any(m.Settings)
	if settings == nil {
		settings = map[string]any{}
	}
	return domain.Campaign{
		ID:             m.ID,
		UserID:         m.UserID,
		Name:           m.Name,
		Description:    m.Description,
		Type:           domain.CampaignType(m.Type),
		Status:         domain.CampaignStatus(m.Status),
		TargetAudience: audience,
		Settings:       settings,
		ScheduledAt:    m.ScheduledAt,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toDomainDocument(m documentModel) domain.Document {
	return domain.Document{
		ID:        m.ID,
		UserID:    m.UserID,
		Filename:  m.Filename,
		Markdown:  m.Markdown,
		SourceLen: m.SourceLen,
		CreatedAt: m.CreatedAt,
	}
}
