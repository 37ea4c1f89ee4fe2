package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/migrations"
)

func loadCampaignsMigration(t *testing.T) migrations.Migration {
	t.Helper()
	files, err := migrations.Load(MigrationFS())
	if err != nil {
		t.Fatalf("load embedded migrations: %v", err)
	}
	for _, m := range files {
		if m.Version() == migrations.CampaignsMigrationVersion {
			return m
		}
	}
	t.Fatalf("expected campaigns migration %s to be embedded", migrations.CampaignsMigrationVersion)
	return migrations.Migration{}
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	t.Parallel()

	names, err := fs.Glob(MigrationFS(), "*.sql")
	if err != nil || len(names) < 3 {
		t.Fatalf("expected embedded sql files, got %v %v", names, err)
	}
	files, _ := migrations.Load(MigrationFS())
	if !strings.Contains(files[0].Filename, "auth_schema") {
		t.Fatalf("expected auth schema shim first, got %s", files[0].Filename)
	}
	for _, m := range files {
		if !m.HasUp || !m.HasDown {
			t.Fatalf("expected %s to carry both sections", m.Filename)
		}
	}
}

func TestCampaignsMigrationTableShape(t *testing.T) {
	t.Parallel()

	up := loadCampaignsMigration(t).Up()
	for _, want := range []string{
		"CREATE TABLE campaigns",
		"id UUID PRIMARY KEY DEFAULT gen_random_uuid()",
		"user_id UUID NOT NULL REFERENCES auth.users(id) ON DELETE CASCADE",
		"name VARCHAR(255) NOT NULL",
		"description TEXT",
		"type VARCHAR(50) NOT NULL",
		"status VARCHAR(50) NOT NULL DEFAULT 'draft'",
		"target_audience JSONB DEFAULT '{}'",
		"settings JSONB DEFAULT '{}'",
		"scheduled_at TIMESTAMPTZ",
		"started_at TIMESTAMPTZ",
		"completed_at TIMESTAMPTZ",
		"created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
		"updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
		"CHECK (type IN ('email', 'sms', 'phone', 'social', 'mixed'))",
		"CHECK (status IN ('draft', 'scheduled', 'running', 'paused', 'completed', 'cancelled'))",
	} {
		if !strings.Contains(up, want) {
			t.Fatalf("expected UP section to contain %q", want)
		}
	}
}

func TestCampaignsMigrationIndexesAndSecurity(t *testing.T) {
	t.Parallel()

	up := loadCampaignsMigration(t).Up()
	for _, want := range []string{
		"CREATE INDEX idx_campaigns_user_id ON campaigns(user_id)",
		"CREATE INDEX idx_campaigns_status ON campaigns(status)",
		"CREATE INDEX idx_campaigns_type ON campaigns(type)",
		"CREATE INDEX idx_campaigns_created_at ON campaigns(created_at)",
		"ALTER TABLE campaigns ENABLE ROW LEVEL SECURITY",
		`CREATE POLICY "Users can view their own campaigns" ON campaigns`,
		"FOR SELECT USING (auth.uid() = user_id)",
		`CREATE POLICY "Users can insert their own campaigns" ON campaigns`,
		"FOR INSERT WITH CHECK (auth.uid() = user_id)",
		`CREATE POLICY "Users can update their own campaigns" ON campaigns`,
		"FOR UPDATE USING (auth.uid() = user_id)",
		`CREATE POLICY "Users can delete their own campaigns" ON campaigns`,
		"FOR DELETE USING (auth.uid() = user_id)",
		"CREATE OR REPLACE FUNCTION update_updated_at_column()",
		"RETURNS TRIGGER AS $$",
		"NEW.updated_at = NOW()",
		"$$ LANGUAGE 'plpgsql'",
		"CREATE TRIGGER update_campaigns_updated_at",
		"BEFORE UPDATE ON campaigns",
		"FOR EACH ROW",
		"EXECUTE FUNCTION update_updated_at_column()",
	} {
		if !strings.Contains(up, want) {
			t.Fatalf("expected UP section to contain %q", want)
		}
	}
	if strings.Contains(up, "DROP TABLE") {
		t.Fatalf("UP section must not include DOWN statements")
	}
}

func TestCampaignsMigrationDownSection(t *testing.T) {
	t.Parallel()

	down := loadCampaignsMigration(t).Down()
	for _, want := range []string{
		"DROP TRIGGER IF EXISTS update_campaigns_updated_at ON campaigns",
		"DROP FUNCTION IF EXISTS update_updated_at_column()",
		"DROP TABLE IF EXISTS campaigns",
	} {
		if !strings.Contains(down, want) {
			t.Fatalf("expected DOWN section to contain %q", want)
		}
	}
	if strings.Index(down, "DROP TRIGGER") > strings.Index(down, "DROP TABLE") {
		t.Fatalf("expected trigger to be dropped before the table")
	}
}
