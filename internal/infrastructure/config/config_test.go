package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 5000},
		Storage:  StorageConfig{Driver: StorageMemory},
		Cache:    CacheConfig{Driver: CacheMemory},
		JWT:      JWTConfig{Secret: "test-secret", ExpiresIn: time.Hour},
		Security: SecurityConfig{RateLimitRequests: 100, AuthRateLimitRequests: 5},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"default secret", func(c *Config) { c.JWT.Secret = defaultJWTSecret }, "JWT secret"},
		{"empty secret", func(c *Config) { c.JWT.Secret = "" }, "JWT secret"},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "sqlite" }, "unknown storage driver"},
		{"unknown cache", func(c *Config) { c.Cache.Driver = "memcached" }, "unknown cache driver"},
		{"postgres without host", func(c *Config) { c.Storage.Driver = StoragePostgres; c.Database.Name = "x" }, "database host"},
		{"mongodb without uri", func(c *Config) { c.Storage.Driver = StorageMongoDB }, "mongodb uri"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"zero rate limit", func(c *Config) { c.Security.AuthRateLimitRequests = 0 }, "rate limits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: got %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate: got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("AUTH_RATE_LIMIT_REQUESTS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("jwt secret: got %q, want %q", cfg.JWT.Secret, "from-env")
	}
	if cfg.Security.AuthRateLimitRequests != 7 {
		t.Errorf("auth rate limit: got %d, want 7", cfg.Security.AuthRateLimitRequests)
	}
	if cfg.JWT.ExpiresIn != 7*24*time.Hour {
		t.Errorf("jwt lifetime: got %v, want 168h", cfg.JWT.ExpiresIn)
	}
	if cfg.Security.RateLimitWindow != 15*time.Minute {
		t.Errorf("rate limit window: got %v, want 15m", cfg.Security.RateLimitWindow)
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	if got, want := db.GetURL(), "postgres://u:p@db:5432/n?sslmode=disable"; got != want {
		t.Errorf("GetURL: got %q, want %q", got, want)
	}
	if !strings.Contains(db.GetDSN(), "dbname=n") {
		t.Errorf("GetDSN: got %q", db.GetDSN())
	}
}
