package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	body := `
database:
  dsn: ` + filepath.Join(dir, "db.sqlite") + `
cache:
  driver: none
upload:
  allowed_extensions: [".zip", ".h5p"]
  stage_timeout: 45s
qc:
  policy_file: qc.toml
`
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GP_HTTP_ADDR", "127.0.0.1:9999")

	cfg, err := Load(context.Background(), file)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Driver != "none" || cfg.QC.PolicyFile != "qc.toml" {
		t.Fatalf("Load() = %#v", cfg)
	}
	if len(cfg.Upload.AllowedExtensions) != 2 || cfg.Upload.StageTimeout != 45*time.Second {
		t.Fatalf("Load() upload = %#v", cfg.Upload)
	}
	if cfg.Upload.MaxFileSize != 100*1024*1024 || cfg.Cache.TTL != 24*time.Hour {
		t.Fatalf("Load() defaults = %#v %#v", cfg.Upload, cfg.Cache)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9999" {
		t.Fatalf("Load() http.addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Events.NATSURL != "" || cfg.Events.SubjectPrefix != "gamepub" {
		t.Fatalf("Load() events = %#v", cfg.Events)
	}
}

func TestValidateRejectsBadDrivers(t *testing.T) {
	base := Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "x.sqlite"},
		Cache:    CacheConfig{Driver: "sqlite"},
		Storage:  StorageConfig{Root: "blobs"},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bad := base
	bad.Database.Driver = "mysql"
	if err := bad.Validate(); err == nil {
		t.Fatalf("Validate(mysql) expected error")
	}

	bad = base
	bad.Cache.Driver = "redis"
	if err := bad.Validate(); err == nil {
		t.Fatalf("Validate(redis without addr) expected error")
	}
	bad.Cache.RedisAddr = "localhost:6379"
	if err := bad.Validate(); err != nil {
		t.Fatalf("Validate(redis) error = %v", err)
	}
}
