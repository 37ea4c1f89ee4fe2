package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsWithMissingFile(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.GRPCPort != 9090 {
		t.Fatalf("unexpected ports %d/%d", cfg.HTTPPort, cfg.GRPCPort)
	}
	if cfg.StorageDriver != StorageMemory || cfg.ListCacheTTL != time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
service:
  name: campaigns
  http_port: 8181
  grpc_port: 9191
storage:
  driver: postgres
  postgres_url: postgres://file/db
  auto_migrate: false
dependencies:
  kafka_brokers: [k1:9092, k2:9092]
auth:
  audience: authenticated
limits:
  write_rate_window: 30s
`)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LIST_CACHE_TTL", "5s")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "campaigns" || cfg.HTTPPort != 9000 || cfg.GRPCPort != 9191 {
		t.Fatalf("unexpected service settings %+v", cfg)
	}
	if cfg.DatabaseURL != "postgres://file/db" || cfg.AutoMigrate {
		t.Fatalf("unexpected storage settings %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.JWTAudience != "authenticated" {
		t.Fatalf("unexpected dependency settings %+v", cfg)
	}
	if cfg.WriteRateWindow != 30*time.Second || cfg.ListCacheTTL != 5*time.Second {
		t.Fatalf("unexpected durations %v %v", cfg.WriteRateWindow, cfg.ListCacheTTL)
	}
}

func TestLoadConfigAliases(t *testing.T) {
	t.Setenv("SUPABASE_DB_URL", "postgres://alias/db")
	t.Setenv("SUPABASE_JWT_SECRET", "alias-secret")

	cfg, err := LoadConfig(writeConfig(t, "storage:\n  driver: postgres\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://alias/db" || cfg.JWTSecret != "alias-secret" {
		t.Fatalf("aliases not applied: %+v", cfg)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without url", env: map[string]string{"STORAGE_DRIVER": "postgres", "JWT_SECRET": "s"}},
		{name: "missing secret", env: map[string]string{"STORAGE_DRIVER": "memory"}},
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "sqlite", "JWT_SECRET": "s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	if _, err := LoadConfig(writeConfig(t, "service: [")); err == nil {
		t.Fatalf("expected parse error")
	}
}
