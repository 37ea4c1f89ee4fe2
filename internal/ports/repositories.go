package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
)

type CreateCampaignParams struct {
	UserID         uuid.UUID
	Name           string
	Description    *string
	Type           domain.CampaignType
	Status         domain.CampaignStatus
	ScheduledAt    *time.Time
	TargetAudience map[string]any
	Settings       map[string]any
	CreatedAt      time.Time
}

// UpdateCampaignParams replaces the scalar columns. A nil TargetAudience or
// Settings leaves the stored document untouched.
type UpdateCampaignParams struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Name           string
	Description    *string
	Type           domain.CampaignType
	Status         domain.CampaignStatus
	ScheduledAt    *time.Time
	TargetAudience map[string]any
	Settings       map[string]any
	UpdatedAt      time.Time
}

type UpdateCampaignStatusParams struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Status      domain.CampaignStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

type CampaignRepository interface {
	List(ctx context.Context, userID uuid.UUID, filter domain.Filter) ([]domain.Campaign, error)
	Get(ctx context.Context, userID, id uuid.UUID) (domain.Campaign, error)
	Create(ctx context.Context, params CreateCampaignParams) (domain.Campaign, error)
	Update(ctx context.Context, params UpdateCampaignParams) (domain.Campaign, error)
	UpdateStatus(ctx context.Context, params UpdateCampaignStatusParams) (domain.Campaign, error)
	Delete(ctx context.Context, userID, id uuid.UUID) (bool, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type CreateDocumentParams struct {
	UserID    uuid.UUID
	Filename  string
	Markdown  string
	SourceLen int
	CreatedAt time.Time
}

type DocumentRepository interface {
	Create(ctx context.Context, params CreateDocumentParams) (domain.Document, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Document, error)
}

type OutboxEvent struct {
	EventID          uuid.UUID
	EventType        string
	PartitionKey     string
	PartitionKeyPath string
	Payload          []byte
	OccurredAt       time.Time
	SchemaVersion    string
	TraceID          string
}

type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	PublishedAt  *time.Time
	LastError    *string
	LastErrorAt  *time.Time
	FirstSeenAt  time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
	// Release drops a reservation that never completed so the key can be
	// retried. Completed records are kept.
	Release(ctx context.Context, key string) error
}
