package application

import (
	"encoding/json"
	"time"

	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
)

type Config struct {
	ServiceName     string
	ListCacheTTL    time.Duration
	IdempotencyTTL  time.Duration
	EventDedupTTL   time.Duration
	WriteRateLimit  int
	WriteRateWindow time.Duration
	MaxHTMLBytes    int
	DefaultFilename string
}

// CampaignRequest is the body of create and full-update calls.
// TargetAudience and Settings may be sent as objects or as JSON encoded strings.
type CampaignRequest struct {
	Name           string          `json:"name"`
	Description    *string         `json:"description,omitempty"`
	Type           string          `json:"type"`
	Status         string          `json:"status,omitempty"`
	ScheduledAt    *string         `json:"scheduled_at,omitempty"`
	TargetAudience json.RawMessage `json:"target_audience,omitempty"`
	Settings       json.RawMessage `json:"settings,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CampaignResponse struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Name           string         `json:"name"`
	Description    *string        `json:"description"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	TargetAudience map[string]any `json:"target_audience"`
	Settings       map[string]any `json:"settings"`
	ScheduledAt    *time.Time     `json:"scheduled_at"`
	StartedAt      *time.Time     `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type CampaignStatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	ByType   map[string]int `json:"by_type"`
}

type HTMLToMarkdownRequest struct {
	HTML     string `json:"html"`
	Filename string `json:"filename,omitempty"`
	Store    bool   `json:"store,omitempty"`
}

type HTMLToMarkdownResponse struct {
	Filename   string `json:"filename"`
	Markdown   string `json:"markdown"`
	DocumentID string `json:"document_id,omitempty"`
}

type DocumentView struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	SourceLen int       `json:"source_length"`
	CreatedAt time.Time `json:"created_at"`
}

func toCampaignResponse(c domain.Campaign) CampaignResponse {
	audience := c.TargetAudience
	if audience == nil {
		audience = map[string]any{}
	}
	settings := c.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	return CampaignResponse{
		ID:             c.ID.String(),
		UserID:         c.UserID.String(),
		Name:           c.Name,
		Description:    c.Description,
		Type:           string(c.Type),
		Status:         string(c.Status),
		TargetAudience: audience,
		Settings:       settings,
		ScheduledAt:    c.ScheduledAt,
		StartedAt:      c.StartedAt,
		CompletedAt:    c.CompletedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toStatsResponse(stats domain.CampaignStats) CampaignStatsResponse {
	resp := CampaignStatsResponse{
		Total:    stats.Total,
		ByStatus: make(map[string]int, len(stats.ByStatus)),
		ByType:   make(map[string]int, len(stats.ByType)),
	}
	for k, v := range stats.ByStatus {
		resp.ByStatus[string(k)] = v
	}
	for k, v := range stats.ByType {
		resp.ByType[string(k)] = v
	}
	return resp
}
