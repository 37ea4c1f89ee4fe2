package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/cache"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/application"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
)

type fixture struct {
	svc   *application.Service
	repos *memory.Repositories
	cache *cache.MemoryCache
	now   time.Time
}

type staticConverter struct{}

func (staticConverter) Convert(html string) (string, error) {
	return "# " + strings.TrimSuffix(strings.TrimPrefix(html, "<h1>"), "</h1>") + "\n", nil
}

type staticVerifier struct {
	claims ports.AuthClaims
}

func (v staticVerifier) Verify(_ context.Context, token string) (ports.AuthClaims, error) {
	if token != "good" {
		return ports.AuthClaims{}, errors.New("bad token")
	}
	return v.claims, nil
}

func newFixture(t *testing.T, cfg application.Config) *fixture {
	t.Helper()
	repos := memory.NewRepositories()
	c := cache.NewMemoryCache()
	f := &fixture{repos: repos, cache: c, now: time.Date(2025, 6, 17, 9, 20, 28, 0, time.UTC)}
	f.svc = application.NewService(application.Dependencies{
		Config:      cfg,
		Campaigns:   repos.Campaigns,
		Documents:   repos.Documents,
		Outbox:      repos.Outbox,
		EventDedup:  repos.EventDedup,
		Idempotency: repos.Idempotency,
		Cache:       c,
		Markdown:    staticConverter{},
	})
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func rawJSON(s string) json.RawMessage { return json.RawMessage(s) }

func TestCreateCampaignDefaultsAndTrims(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	userID := uuid.New()
	desc := "   "
	got, err := f.svc.CreateCampaign(context.Background(), userID, application.CampaignRequest{
		Name:           "  Summer push ",
		Description:    &desc,
		Type:           "email",
		TargetAudience: rawJSON(`"{\"location\":\"Austin\"}"`),
		Settings:       rawJSON(`{"subject_line":"Hi"}`),
	}, "")
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	if got.Name != "Summer push" || got.Status != "draft" || got.Description != nil {
		t.Fatalf("unexpected campaign %+v", got)
	}
	if got.TargetAudience["location"] != "Austin" {
		t.Fatalf("expected parsed audience, got %v", got.TargetAudience)
	}
	if pending := f.repos.Outbox.Pending(); len(pending) != 1 || pending[0] != "campaign.created" {
		t.Fatalf("expected campaign.created in outbox, got %v", pending)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	userID := uuid.New()
	cases := []struct {
		name string
		req  application.CampaignRequest
		msg  string
	}{
		{name: "missing name", req: application.CampaignRequest{Type: "email"}, msg: "Name and type are required"},
		{name: "missing type", req: application.CampaignRequest{Name: "x"}, msg: "Name and type are required"},
		{name: "bad type", req: application.CampaignRequest{Name: "x", Type: "fax"}, msg: "Invalid campaign type"},
		{name: "bad status", req: application.CampaignRequest{Name: "x", Type: "sms", Status: "archived"}, msg: "Invalid campaign status"},
		{name: "bad json", req: application.CampaignRequest{Name: "x", Type: "sms", Settings: rawJSON(`"{oops"`)}, msg: "Invalid JSON format in target_audience or settings"},
		{name: "long sms", req: application.CampaignRequest{Name: "x", Type: "sms", Settings: rawJSON(`{"sms_message":"` + strings.Repeat("a", 161) + `"}`)}, msg: "sms_message"},
	}
	for _, tc := range cases {
		_, err := f.svc.CreateCampaign(context.Background(), userID, tc.req, "")
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
		if !strings.Contains(err.Error(), tc.msg) {
			t.Fatalf("%s: expected message %q, got %q", tc.name, tc.msg, err.Error())
		}
	}
}

func TestOperationsRequireUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	if _, err := f.svc.ListCampaigns(context.Background(), uuid.Nil, domain.Filter{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.svc.DeleteCampaign(context.Background(), uuid.Nil, uuid.New()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCampaignsAreScopedToOwner(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	owner, other := uuid.New(), uuid.New()
	created, err := f.svc.CreateCampaign(context.Background(), owner, application.CampaignRequest{Name: "A", Type: "sms"}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := uuid.MustParse(created.ID)
	if _, err := f.svc.GetCampaign(context.Background(), other, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
	if _, err := f.svc.UpdateCampaignStatus(context.Background(), other, id, application.UpdateStatusRequest{Status: "running"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on foreign status update, got %v", err)
	}
	list, err := f.svc.ListCampaigns(context.Background(), other, domain.Filter{})
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list for other user, got %d %v", len(list), err)
	}
}

func TestListCampaignsOrderFilterAndCacheInvalidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	ctx := context.Background()
	userID := uuid.New()
	f.tick()
	if _, err := f.svc.CreateCampaign(ctx, userID, application.CampaignRequest{Name: "first", Type: "email"}, ""); err != nil {
		t.Fatalf("create first: %v", err)
	}
	f.tick()
	second, err := f.svc.CreateCampaign(ctx, userID, application.CampaignRequest{Name: "second", Type: "sms", Status: "running"}, "")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	all, err := f.svc.ListCampaigns(ctx, userID, domain.Filter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 campaigns, got %d %v", len(all), err)
	}
	if all[0].Name != "second" {
		t.Fatalf("expected newest first, got %s", all[0].Name)
	}
	running, _ := f.svc.ListCampaigns(ctx, userID, domain.Filter{Status: domain.CampaignStatusRunning})
	if len(running) != 1 || running[0].ID != second.ID {
		t.Fatalf("expected status filter to keep only running, got %+v", running)
	}

	if err := f.svc.DeleteCampaign(ctx, userID, uuid.MustParse(second.ID)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after, _ := f.svc.ListCampaigns(ctx, userID, domain.Filter{})
	if len(after) != 1 {
		t.Fatalf("expected cache invalidated after delete, got %d campaigns", len(after))
	}
}

// racingCampaigns runs during once, after the list read and before the
// service caches the result.
type racingCampaigns struct {
	ports.CampaignRepository
	during func()
}

func (r *racingCampaigns) List(ctx context.Context, userID uuid.UUID, filter domain.Filter) ([]domain.Campaign, error) {
	rows, err := r.CampaignRepository.List(ctx, userID, filter)
	if during := r.during; during != nil {
		r.during = nil
		during()
	}
	return rows, err
}

func TestListCacheIgnoresReadRacingAWrite(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	racing := &racingCampaigns{CampaignRepository: repos.Campaigns}
	svc := application.NewService(application.Dependencies{
		Campaigns: racing,
		Outbox:    repos.Outbox,
		Cache:     cache.NewMemoryCache(),
	})
	ctx := context.Background()
	userID := uuid.New()
	if _, err := svc.CreateCampaign(ctx, userID, application.CampaignRequest{Name: "first", Type: "email"}, ""); err != nil {
		t.Fatalf("create first: %v", err)
	}
	racing.during = func() {
		if _, err := svc.CreateCampaign(ctx, userID, application.CampaignRequest{Name: "second", Type: "email"}, ""); err != nil {
			t.Errorf("create second: %v", err)
		}
	}
	if stale, err := svc.ListCampaigns(ctx, userID, domain.Filter{}); err != nil || len(stale) != 1 {
		t.Fatalf("expected the racing read to see one campaign, got %d %v", len(stale), err)
	}
	fresh, err := svc.ListCampaigns(ctx, userID, domain.Filter{})
	if err != nil || len(fresh) != 2 {
		t.Fatalf("expected the stale list to be bypassed, got %d %v", len(fresh), err)
	}
}

func TestUpdateCampaignKeepsJSONWhenAbsent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	ctx := context.Background()
	userID := uuid.New()
	created, err := f.svc.CreateCampaign(ctx, userID, application.CampaignRequest{
		Name: "A", Type: "phone", Status: "paused", Settings: rawJSON(`{"call_duration":5}`),
	}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := f.svc.UpdateCampaign(ctx, userID, uuid.MustParse(created.ID), application.CampaignRequest{Name: "B", Type: "phone"}, "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "B" || updated.Status != "draft" {
		t.Fatalf("expected renamed draft, got %+v", updated)
	}
	if updated.Settings["call_duration"] != float64(5) {
		t.Fatalf("expected settings untouched, got %v", updated.Settings)
	}
	if _, err := f.svc.UpdateCampaign(ctx, userID, uuid.New(), application.CampaignRequest{Name: "B", Type: "phone"}, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing campaign, got %v", err)
	}
}

func TestUpdateCampaignStatusStampsTimestamps(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	ctx := context.Background()
	userID := uuid.New()
	created, _ := f.svc.CreateCampaign(ctx, userID, application.CampaignRequest{Name: "A", Type: "social"}, "")
	id := uuid.MustParse(created.ID)

	if _, err := f.svc.UpdateCampaignStatus(ctx, userID, id, application.UpdateStatusRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected empty status rejected, got %v", err)
	}
	running, err := f.svc.UpdateCampaignStatus(ctx, userID, id, application.UpdateStatusRequest{Status: "running"})
	if err != nil || running.StartedAt == nil || !running.StartedAt.Equal(f.now) {
		t.Fatalf("expected started_at set, got %+v %v", running, err)
	}
	startedAt := *running.StartedAt
	f.tick()
	done, err := f.svc.UpdateCampaignStatus(ctx, userID, id, application.UpdateStatusRequest{Status: "completed"})
	if err != nil || done.CompletedAt == nil || done.StartedAt == nil || !done.StartedAt.Equal(startedAt) {
		t.Fatalf("expected completed_at set and started_at kept, got %+v %v", done, err)
	}
	pending := f.repos.Outbox.Pending()
	if pending[len(pending)-1] != "campaign.status_changed" {
		t.Fatalf("expected status_changed event, got %v", pending)
	}
}

func TestDeleteCampaignIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	if err := f.svc.DeleteCampaign(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("expected delete of missing campaign to succeed, got %v", err)
	}
	if len(f.repos.Outbox.Pending()) != 0 {
		t.Fatalf("expected no event for a no-op delete")
	}
}

func TestIdempotencyKeyReplaysAndConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	ctx := context.Background()
	userID := uuid.New()
	req := application.CampaignRequest{Name: "Once", Type: "email"}
	first, err := f.svc.CreateCampaign(ctx, userID, req, "key-1")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	again, err := f.svc.CreateCampaign(ctx, userID, req, "key-1")
	if err != nil || again.ID != first.ID {
		t.Fatalf("expected replay of first response, got %+v %v", again, err)
	}
	if _, err := f.svc.CreateCampaign(ctx, userID, application.CampaignRequest{Name: "Other", Type: "email"}, "key-1"); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
	list, _ := f.svc.ListCampaigns(ctx, userID, domain.Filter{})
	if len(list) != 1 {
		t.Fatalf("expected a single stored campaign, got %d", len(list))
	}
}

func TestIdempotencyKeyReleasedAfterFailedUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	ctx := context.Background()
	userID := uuid.New()
	req := application.CampaignRequest{Name: "Retry", Type: "sms"}
	missing := uuid.New()
	for i := 0; i < 2; i++ {
		if _, err := f.svc.UpdateCampaign(ctx, userID, missing, req, "key-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("attempt %d: expected not found, got %v", i, err)
		}
	}
}

type flakyCampaigns struct {
	ports.CampaignRepository
	failures int
}

func (r *flakyCampaigns) Create(ctx context.Context, params ports.CreateCampaignParams) (domain.Campaign, error) {
	if r.failures > 0 {
		r.failures--
		return domain.Campaign{}, domain.ErrStorageUnavailable
	}
	return r.CampaignRepository.Create(ctx, params)
}

func TestIdempotencyKeyRetriesAfterStorageFailure(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Campaigns:   &flakyCampaigns{CampaignRepository: repos.Campaigns, failures: 1},
		Outbox:      repos.Outbox,
		Idempotency: repos.Idempotency,
	})
	ctx := context.Background()
	userID := uuid.New()
	req := application.CampaignRequest{Name: "Retry", Type: "email"}
	if _, err := svc.CreateCampaign(ctx, userID, req, "key-1"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	created, err := svc.CreateCampaign(ctx, userID, req, "key-1")
	if err != nil {
		t.Fatalf("expected retry with the same key to run, got %v", err)
	}
	replay, err := svc.CreateCampaign(ctx, userID, req, "key-1")
	if err != nil || replay.ID != created.ID {
		t.Fatalf("expected replay after success, got %+v %v", replay, err)
	}
}

func TestWriteRateLimit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{WriteRateLimit: 2, WriteRateWindow: time.Minute})
	ctx := context.Background()
	userID := uuid.New()
	for i := 0; i < 2; i++ {
		if _, err := f.svc.CreateCampaign(ctx, userID, application.CampaignRequest{Name: "n", Type: "email"}, ""); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if _, err := f.svc.CreateCampaign(ctx, userID, application.CampaignRequest{Name: "n", Type: "email"}, ""); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected rate limit, got %v", err)
	}
}

func TestCampaignStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	ctx := context.Background()
	userID := uuid.New()
	for _, req := range []application.CampaignRequest{
		{Name: "a", Type: "email"},
		{Name: "b", Type: "email", Status: "running"},
		{Name: "c", Type: "sms", Status: "running"},
	} {
		if _, err := f.svc.CreateCampaign(ctx, userID, req, ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	stats, err := f.svc.CampaignStats(ctx, userID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.ByStatus["running"] != 2 || stats.ByType["email"] != 2 || stats.ByType["phone"] != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestConvertHTMLToMarkdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	ctx := context.Background()
	userID := uuid.New()
	if _, err := f.svc.ConvertHTMLToMarkdown(ctx, userID, application.HTMLToMarkdownRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected html required, got %v", err)
	}
	resp, err := f.svc.ConvertHTMLToMarkdown(ctx, userID, application.HTMLToMarkdownRequest{HTML: "<h1>Hi</h1>"})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if resp.Filename != "document.md" || resp.Markdown != "# Hi\n" || resp.DocumentID != "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	stored, err := f.svc.ConvertHTMLToMarkdown(ctx, userID, application.HTMLToMarkdownRequest{HTML: "<h1>Hi</h1>", Filename: "../notes", Store: true})
	if err != nil || stored.DocumentID == "" || stored.Filename != "notes.md" {
		t.Fatalf("expected stored document, got %+v %v", stored, err)
	}
	docs, _ := f.svc.ListDocuments(ctx, userID, 0)
	if len(docs) != 1 {
		t.Fatalf("expected one stored document, got %d", len(docs))
	}
}

func TestHandleUserDeletedPurgesOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, application.Config{})
	ctx := context.Background()
	userID := uuid.New()
	_, _ = f.svc.CreateCampaign(ctx, userID, application.CampaignRequest{Name: "a", Type: "email"}, "")
	payload := []byte(`{"event_id":"evt-1","data":{"user_id":"` + userID.String() + `"}}`)
	if err := f.svc.HandleUserDeleted(ctx, payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	list, _ := f.svc.ListCampaigns(ctx, userID, domain.Filter{})
	if len(list) != 0 {
		t.Fatalf("expected campaigns purged, got %d", len(list))
	}
	if err := f.svc.HandleUserDeleted(ctx, payload); err != nil {
		t.Fatalf("duplicate event should be ignored, got %v", err)
	}
	if err := f.svc.HandleUserDeleted(ctx, []byte(`{`)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid payload error, got %v", err)
	}
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := application.NewService(application.Dependencies{
		Tokens: staticVerifier{claims: ports.AuthClaims{UserID: userID.String(), Valid: true}},
	})
	identity, err := svc.Identity(context.Background(), "good")
	if err != nil || identity.UserID != userID {
		t.Fatalf("expected identity, got %+v %v", identity, err)
	}
	if _, err := svc.ValidateToken(context.Background(), "bad"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
