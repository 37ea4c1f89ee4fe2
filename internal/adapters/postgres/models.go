package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// jsonObject maps a JSONB column holding an object.
type jsonObject map[string]any

func (j jsonObject) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(j))
}

func (j *jsonObject) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*j = jsonObject{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan jsonb: unsupported type %T", src)
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("scan jsonb: %w", err)
		}
	}
	*j = out
	return nil
}

type campaignModel struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid"`
	Name           string     `gorm:"column:name"`
	Description    *string    `gorm:"column:description"`
	Type           string     `gorm:"column:type"`
	Status         string     `gorm:"column:status"`
	TargetAudience jsonObject `gorm:"column:target_audience;type:jsonb"`
	Settings       jsonObject `gorm:"column:settings;type:jsonb"`
	ScheduledAt    *time.Time `gorm:"column:scheduled_at"`
	StartedAt      *time.Time `gorm:"column:started_at"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (campaignModel) TableName() string { return "campaigns" }

type documentModel struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid"`
	Filename  string    `gorm:"column:filename"`
	Markdown  string    `gorm:"column:markdown"`
	SourceLen int       `gorm:"column:source_length"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (documentModel) TableName() string { return "markdown_documents" }

type campaignOutboxModel struct {
	OutboxID         uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType        string     `gorm:"column:event_type"`
	PartitionKey     string     `gorm:"column:partition_key"`
	PartitionKeyPath string     `gorm:"column:partition_key_path"`
	Payload          string     `gorm:"column:payload"`
	SchemaVersion    string     `gorm:"column:schema_version"`
	TraceID          string     `gorm:"column:trace_id"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	FirstSeenAt      time.Time  `gorm:"column:first_seen_at"`
	PublishedAt      *time.Time `gorm:"column:published_at"`
	RetryCount       int        `gorm:"column:retry_count"`
	LastError        *string    `gorm:"column:last_error"`
	LastErrorAt      *time.Time `gorm:"column:last_error_at"`
}

func (campaignOutboxModel) TableName() string { return "campaign_outbox" }

type campaignIdempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (campaignIdempotencyModel) TableName() string { return "campaign_idempotency" }

type campaignEventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (campaignEventDedupModel) TableName() string { return "campaign_event_dedup" }
