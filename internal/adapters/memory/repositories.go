package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
)

// Repositories backs every storage port with process memory. It serves the
// "memory" storage driver used for local runs and tests.
type Repositories struct {
	Campaigns   *CampaignRepository
	Documents   *DocumentRepository
	Outbox      *OutboxRepository
	Idempotency *IdempotencyRepository
	EventDedup  *EventDedupRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Campaigns:   &CampaignRepository{rows: map[uuid.UUID]domain.Campaign{}},
		Documents:   &DocumentRepository{},
		Outbox:      &OutboxRepository{rows: map[uuid.UUID]ports.OutboxRecord{}},
		Idempotency: &IdempotencyRepository{rows: map[string]ports.IdempotencyRecord{}},
		EventDedup:  &EventDedupRepository{rows: map[string]time.Time{}},
	}
}

func (r *Repositories) Ping(context.Context) error { return nil }

type CampaignRepository struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.Campaign
}

func (r *CampaignRepository) List(_ context.Context, userID uuid.UUID, filter domain.Filter) ([]domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Campaign, 0)
	for _, row := range r.rows {
		if row.UserID == userID && filter.Matches(row) {
			out = append(out, cloneCampaign(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *CampaignRepository) Get(_ context.Context, userID, id uuid.UUID) (domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return cloneCampaign(row), nil
}

func (r *CampaignRepository) Create(_ context.Context, params ports.CreateCampaignParams) (domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := domain.Campaign{
		ID:             uuid.New(),
		UserID:         params.UserID,
		Name:           params.Name,
		Description:    params.Description,
		Type:           params.Type,
		Status:         params.Status,
		TargetAudience: maps.Clone(params.TargetAudience),
		Settings:       maps.Clone(params.Settings),
		ScheduledAt:    params.ScheduledAt,
		CreatedAt:      params.CreatedAt,
		UpdatedAt:      params.CreatedAt,
	}
	if row.TargetAudience == nil {
		row.TargetAudience = map[string]any{}
	}
	if row.Settings == nil {
		row.Settings = map[string]any{}
	}
	r.rows[row.ID] = row
	return cloneCampaign(row), nil
}

func (r *CampaignRepository) Update(_ context.Context, params ports.UpdateCampaignParams) (domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[params.ID]
	if !ok || row.UserID != params.UserID {
		return domain.Campaign{}, domain.ErrNotFound
	}
	row.Name = params.Name
	row.Description = params.Description
	row.Type = params.Type
	row.Status = params.Status
	row.ScheduledAt = params.ScheduledAt
	if params.TargetAudience != nil {
		row.TargetAudience = maps.Clone(params.TargetAudience)
	}
	if params.Settings != nil {
		row.Settings = maps.Clone(params.Settings)
	}
	row.UpdatedAt = params.UpdatedAt
	r.rows[row.ID] = row
	return cloneCampaign(row), nil
}

func (r *CampaignRepository) UpdateStatus(_ context.Context, params ports.UpdateCampaignStatusParams) (domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[params.ID]
	if !ok || row.UserID != params.UserID {
		return domain.Campaign{}, domain.ErrNotFound
	}
	row.Status = params.Status
	if params.StartedAt != nil {
		row.StartedAt = params.StartedAt
	}
	if params.CompletedAt != nil {
		row.CompletedAt = params.CompletedAt
	}
	row.UpdatedAt = params.UpdatedAt
	r.rows[row.ID] = row
	return cloneCampaign(row), nil
}

func (r *CampaignRepository) Delete(_ context.Context, userID, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

func (r *CampaignRepository) DeleteByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, row := range r.rows {
		if row.UserID == userID {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func cloneCampaign(c domain.Campaign) domain.Campaign {
	c.TargetAudience = maps.Clone(c.TargetAudience)
	c.Settings = maps.Clone(c.Settings)
	return c
}

type DocumentRepository struct {
	mu   sync.Mutex
	rows []domain.Document
}

func (r *DocumentRepository) Create(_ context.Context, params ports.CreateDocumentParams) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := domain.Document{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Filename:  params.Filename,
		Markdown:  params.Markdown,
		SourceLen: params.SourceLen,
		CreatedAt: params.CreatedAt,
	}
	r.rows = append(r.rows, doc)
	return doc, nil
}

func (r *DocumentRepository) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Document, 0)
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].UserID != userID {
			continue
		}
		out = append(out, r.rows[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type OutboxRepository struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]ports.OutboxRecord
	order []uuid.UUID
}

func (r *OutboxRepository) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[event.EventID]; exists {
		return domain.ErrConflict
	}
	r.rows[event.EventID] = ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), event.Payload...),
		FirstSeenAt:  event.OccurredAt,
	}
	r.order = append(r.order, event.EventID)
	return nil
}

func (r *OutboxRepository) FetchUnpublished(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.order {
		row := r.rows[id]
		if row.PublishedAt != nil {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, outboxID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[outboxID]
	if !ok {
		return domain.ErrNotFound
	}
	row.PublishedAt = &at
	r.rows[outboxID] = row
	return nil
}

func (r *OutboxRepository) MarkFailed(_ context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[outboxID]
	if !ok {
		return domain.ErrNotFound
	}
	row.RetryCount++
	row.LastError = &errMsg
	row.LastErrorAt = &at
	r.rows[outboxID] = row
	return nil
}

// Pending reports the event types still waiting for the relay, oldest first.
func (r *OutboxRepository) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0)
	for _, id := range r.order {
		if r.rows[id].PublishedAt == nil {
			out = append(out, r.rows[id].EventType)
		}
	}
	return out
}

type IdempotencyRepository struct {
	mu   sync.Mutex
	rows map[string]ports.IdempotencyRecord
}

func (r *IdempotencyRepository) Get(_ context.Context, key string) (*ports.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := row
	return &out, nil
}

func (r *IdempotencyRepository) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[key]; ok && row.ExpiresAt.After(time.Now()) {
		return domain.ErrIdempotencyConflict
	}
	r.rows[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      "pending",
		ExpiresAt:   expiresAt,
	}
	return nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key]
	if !ok {
		return domain.ErrNotFound
	}
	row.Status = "completed"
	row.ResponseCode = responseCode
	row.ResponseBody = append([]byte(nil), responseBody...)
	r.rows[key] = row
	return nil
}

func (r *IdempotencyRepository) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[key]; ok && row.Status != "completed" {
		delete(r.rows, key)
	}
	return nil
}

type EventDedupRepository struct {
	mu   sync.Mutex
	rows map[string]time.Time
}

func (r *EventDedupRepository) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiresAt, ok := r.rows[eventID]
	return ok && expiresAt.After(now), nil
}

func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, _ string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[eventID] = expiresAt
	return nil
}
