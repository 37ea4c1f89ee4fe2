package domain

import (
	"time"

	"github.com/google/uuid"
)

type CampaignType string

const (
	CampaignTypeEmail  CampaignType = "email"
	CampaignTypeSMS    CampaignType = "sms"
	CampaignTypePhone  CampaignType = "phone"
	CampaignTypeSocial CampaignType = "social"
	CampaignTypeMixed  CampaignType = "mixed"
)

var CampaignTypes = []CampaignType{
	CampaignTypeEmail,
	CampaignTypeSMS,
	CampaignTypePhone,
	CampaignTypeSocial,
	CampaignTypeMixed,
}

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

var CampaignStatuses = []CampaignStatus{
	CampaignStatusDraft,
	CampaignStatusScheduled,
	CampaignStatusRunning,
	CampaignStatusPaused,
	CampaignStatusCompleted,
	CampaignStatusCancelled,
}

var SocialPlatforms = []string{"linkedin", "twitter", "facebook", "instagram"}

// Campaign is one marketing outreach record owned by a single user.
// TargetAudience and Settings are free-form JSON objects; the well known
// keys are listed in validation.go.
type Campaign struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Name           string
	Description    *string
	Type           CampaignType
	Status         CampaignStatus
	TargetAudience map[string]any
	Settings       map[string]any
	ScheduledAt    *time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Filter struct {
	Status CampaignStatus
	Type   CampaignType
}

func (f Filter) Matches(c Campaign) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	return true
}

func (f Filter) IsZero() bool {
	return f.Status == "" && f.Type == ""
}

type CampaignStats struct {
	Total    int
	ByStatus map[CampaignStatus]int
	ByType   map[CampaignType]int
}

func ComputeStats(campaigns []Campaign) CampaignStats {
	stats := CampaignStats{
		ByStatus: make(map[CampaignStatus]int, len(CampaignStatuses)),
		ByType:   make(map[CampaignType]int, len(CampaignTypes)),
	}
	for _, s := range CampaignStatuses {
		stats.ByStatus[s] = 0
	}
	for _, t := range CampaignTypes {
		stats.ByType[t] = 0
	}
	for _, c := range campaigns {
		stats.Total++
		stats.ByStatus[c.Status]++
		stats.ByType[c.Type]++
	}
	return stats
}

// Document is a converted markdown export kept on request of the owner.
type Document struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Filename  string
	Markdown  string
	SourceLen int
	CreatedAt time.Time
}

type UserIdentity struct {
	UserID uuid.UUID
	Email  string
	Role   string
}
