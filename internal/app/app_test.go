package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/craftauth/yggdrasil/internal/config"
	"github.com/craftauth/yggdrasil/internal/observability"
	"github.com/craftauth/yggdrasil/internal/security"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		ListenAddr:                 "127.0.0.1:0",
		DBDriver:                   "sqlite",
		DBDSN:                      fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
		PasswordStrategy:           security.StrategySaltedSha256,
		TokenValid:                 72 * time.Hour,
		TokenInvalid:               168 * time.Hour,
		JoinSessionTTL:             30 * time.Second,
		RegistrationEnabled:        true,
		RegistrationDefaultProfile: true,
		PasswordPattern:            regexp.MustCompile(`^[!-~]{6,32}$`),
		NicknamePattern:            regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`),
		VerifyCodeTimeout:          5 * time.Minute,
		VerifyCodeLength:           security.HexLength,
		RateLimitInterval:          time.Minute,
		RateLimitThreshold:         100,
		TextureBaseURL:             "http://textures.example.com/textures",
		OTELServiceName:            "yggdrasil-test",
	}
}

func testRuntime() *observability.Runtime {
	return &observability.Runtime{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestNewWiresServerFromConfig(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, testRuntime())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.closeResources()

	if a.Config != cfg {
		t.Fatal("expected config to be retained")
	}
	if a.Server == nil || a.Server.Addr != cfg.ListenAddr {
		t.Fatalf("expected server bound to %q", cfg.ListenAddr)
	}
	if a.Server.Handler == nil {
		t.Fatal("expected router to be installed")
	}
	if a.redisClient != nil {
		t.Fatal("expected no redis client without REDIS_ADDR")
	}
	if a.joinCloser == nil {
		t.Fatal("expected in-memory join store to be closable")
	}
}

func TestNewRejectsUnknownPasswordStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.PasswordStrategy = "rot13"
	if _, err := New(context.Background(), cfg, testRuntime()); err == nil {
		t.Fatal("expected error for unknown password strategy")
	}
}

func TestReadinessProbeChecksDatabase(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, testRuntime())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.closeResources()

	probe := readinessProbe(a.db, nil)
	if err := probe(context.Background()); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}
}

func TestSkinDomains(t *testing.T) {
	if got := skinDomains("http://textures.example.com/textures"); len(got) != 1 || got[0] != "textures.example.com" {
		t.Fatalf("unexpected domains %v", got)
	}
	if got := skinDomains(""); got != nil {
		t.Fatalf("expected nil for empty base URL, got %v", got)
	}
}
