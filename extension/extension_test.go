package extension_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/xraph/perk"
	"github.com/xraph/perk/extension"
	"github.com/xraph/perk/store/memory"
	"github.com/xraph/perk/store/redis"
)

func TestDefaultConfig(t *testing.T) {
	cfg := extension.DefaultConfig()
	if cfg.RetentionDays != 31 || cfg.ReferralBonusDays != 7 || cfg.PurchaseDays != 30 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.FreeWritingLimit != 1 || cfg.FreeSpeakingLimit != 1 {
		t.Errorf("unexpected free limits %+v", cfg)
	}
	if cfg.RateLimit != 10 || cfg.RateWindow != time.Minute {
		t.Errorf("unexpected rate limit %+v", cfg)
	}
	if cfg.Backend() != extension.BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.Backend())
	}
}

func TestBackend(t *testing.T) {
	tests := []struct {
		name string
		cfg  extension.Config
		want extension.Backend
	}{
		{"nothing", extension.Config{}, extension.BackendMemory},
		{"redis", extension.Config{RedisURL: "redis://h:6379", RedisToken: "t"}, extension.BackendRedis},
		{"redis without token", extension.Config{RedisURL: "redis://h:6379"}, extension.BackendMemory},
		{"redis token only", extension.Config{RedisToken: "t"}, extension.BackendMemory},
		{"mongo", extension.Config{MongoURI: "mongodb://h"}, extension.BackendMongo},
		{"redis wins", extension.Config{RedisURL: "redis://h", RedisToken: "t", MongoURI: "mongodb://h"}, extension.BackendRedis},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Backend(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	file := extension.Config{RateLimit: 5, MongoURI: "mongodb://file"}
	prog := extension.Config{RateLimit: 50, PurchaseDays: 60, MongoURI: "mongodb://prog", DisableMigrate: true}

	got := file.Merge(prog)
	if got.RateLimit != 5 {
		t.Errorf("file value must win, got %d", got.RateLimit)
	}
	if got.MongoURI != "mongodb://file" {
		t.Errorf("file value must win, got %q", got.MongoURI)
	}
	if got.PurchaseDays != 60 {
		t.Errorf("programmatic value must fill gaps, got %d", got.PurchaseDays)
	}
	if !got.DisableMigrate {
		t.Error("programmatic flag must carry over")
	}
	if got.ReferralBonusDays != 7 || got.MongoDatabase != "perk" {
		t.Errorf("defaults must fill the rest, got %+v", got)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PERK_REDIS_URL", "redis://cache:6379")
	t.Setenv("PERK_REDIS_TOKEN", "tok")
	t.Setenv("PERK_RATE_LIMIT", "20")
	t.Setenv("PERK_RATE_WINDOW", "30s")
	t.Setenv("PERK_FREE_SPEAKING_LIMIT", "3")

	cfg, err := extension.LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if cfg.Backend() != extension.BackendRedis || cfg.RedisToken != "tok" {
		t.Errorf("unexpected redis settings %+v", cfg)
	}
	if cfg.RateLimit != 20 || cfg.RateWindow != 30*time.Second {
		t.Errorf("unexpected rate limit %d/%s", cfg.RateLimit, cfg.RateWindow)
	}
	if cfg.FreeSpeakingLimit != 3 || cfg.FreeWritingLimit != 1 {
		t.Errorf("unexpected free limits %d/%d", cfg.FreeWritingLimit, cfg.FreeSpeakingLimit)
	}
}

func TestLoadEnvDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PERK_REFERRAL_BONUS_DAYS=14\nPERK_PURCHASE_DAYS=45\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Environment wins over the file.
	t.Setenv("PERK_PURCHASE_DAYS", "90")
	t.Cleanup(func() { _ = os.Unsetenv("PERK_REFERRAL_BONUS_DAYS") })

	cfg, err := extension.LoadEnv(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if cfg.ReferralBonusDays != 14 {
		t.Errorf("expected bonus from file, got %d", cfg.ReferralBonusDays)
	}
	if cfg.PurchaseDays != 90 {
		t.Errorf("expected purchase days from environment, got %d", cfg.PurchaseDays)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	t.Setenv("PERK_RATE_LIMIT", "lots")
	if _, err := extension.LoadEnv(); err == nil {
		t.Error("expected parse error")
	}
}

func TestOpenStore(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		s, err := extension.OpenStore(extension.Config{})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := s.(*memory.Store); !ok {
			t.Errorf("expected memory store, got %T", s)
		}
	})

	t.Run("Redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		mr.RequireAuth("secret")

		s, err := extension.OpenStore(extension.Config{RedisURL: "redis://" + mr.Addr(), RedisToken: "secret"})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = s.Close() })
		if _, ok := s.(*redis.Store); !ok {
			t.Fatalf("expected redis store, got %T", s)
		}
		if err := s.Ping(t.Context()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})

	t.Run("BadRedisURL", func(t *testing.T) {
		if _, err := extension.OpenStore(extension.Config{RedisURL: "ftp://nope", RedisToken: "x"}); err == nil {
			t.Error("expected error for bad URL")
		}
	})
}

func TestIsLocal(t *testing.T) {
	if !extension.IsLocal(memory.New()) {
		t.Error("memory store must be local")
	}

	mr := miniredis.RunT(t)
	s, err := redis.Open("redis://"+mr.Addr(), "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if extension.IsLocal(s) {
		t.Error("an injected redis store must not be reported as local")
	}
}

func TestBuildOptions(t *testing.T) {
	cfg := extension.Config{FreeSpeakingLimit: 4, RateLimit: 3, RateWindow: 10 * time.Second}
	p := perk.New(memory.New(), extension.BuildOptions(cfg)...)

	if got := p.FreeLimit(perk.KindSpeaking); got != 4 {
		t.Errorf("speaking limit: expected 4, got %d", got)
	}
	if got := p.FreeLimit(perk.KindWriting); got != 1 {
		t.Errorf("writing limit: expected default 1, got %d", got)
	}
	if n, w := p.Limiter().Limit(); n != 3 || w != 10*time.Second {
		t.Errorf("rate limit: expected 3/10s, got %d/%s", n, w)
	}
	if got := p.Meter().Retention(); got != 31*24*time.Hour {
		t.Errorf("retention: expected 31 days, got %s", got)
	}

	// Pass-through options apply last.
	p = perk.New(memory.New(), extension.BuildOptions(cfg, perk.WithFreeLimit(perk.KindSpeaking, 9))...)
	if got := p.FreeLimit(perk.KindSpeaking); got != 9 {
		t.Errorf("pass-through: expected 9, got %d", got)
	}
}

func TestOptions(t *testing.T) {
	e := extension.New(
		extension.WithRedis("redis://h:6379", "tok"),
		extension.WithFreeLimits(2, 3),
		extension.WithRateLimit(5, time.Minute),
		extension.WithDisableMigrate(),
	)
	cfg := e.Config()
	if cfg.Backend() != extension.BackendRedis {
		t.Errorf("expected redis backend, got %s", cfg.Backend())
	}
	if cfg.FreeWritingLimit != 2 || cfg.FreeSpeakingLimit != 3 || cfg.RateLimit != 5 || !cfg.DisableMigrate {
		t.Errorf("unexpected config %+v", cfg)
	}
	if e.Engine() != nil {
		t.Error("engine must be nil before Register")
	}
	if e.Name() != extension.ExtensionName {
		t.Errorf("expected name %q, got %q", extension.ExtensionName, e.Name())
	}
}
