package application

import (
	"time"

	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
)

type Service struct {
	cfg         Config
	campaigns   ports.CampaignRepository
	documents   ports.DocumentRepository
	outbox      ports.OutboxRepository
	eventDedup  ports.EventDedupRepository
	idempotency ports.IdempotencyRepository
	tokens      ports.TokenVerifier
	cache       ports.Cache
	markdown    ports.MarkdownConverter
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Campaigns   ports.CampaignRepository
	Documents   ports.DocumentRepository
	Outbox      ports.OutboxRepository
	EventDedup  ports.EventDedupRepository
	Idempotency ports.IdempotencyRepository
	Tokens      ports.TokenVerifier
	Cache       ports.Cache
	Markdown    ports.MarkdownConverter
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "campaign-service"
	}
	if cfg.ListCacheTTL <= 0 {
		cfg.ListCacheTTL = time.Minute
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.WriteRateWindow <= 0 {
		cfg.WriteRateWindow = time.Minute
	}
	if cfg.MaxHTMLBytes <= 0 {
		cfg.MaxHTMLBytes = 2 << 20
	}
	if cfg.DefaultFilename == "" {
		cfg.DefaultFilename = "document.md"
	}

	return &Service{
		cfg:         cfg,
		campaigns:   deps.Campaigns,
		documents:   deps.Documents,
		outbox:      deps.Outbox,
		eventDedup:  deps.EventDedup,
		idempotency: deps.Idempotency,
		tokens:      deps.Tokens,
		cache:       deps.Cache,
		markdown:    deps.Markdown,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Tests use it to pin timestamps.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.nowFn = now
	}
}
