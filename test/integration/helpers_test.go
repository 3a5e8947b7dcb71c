package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/craftauth/yggdrasil/internal/config"
	"github.com/craftauth/yggdrasil/internal/domain"
	"github.com/craftauth/yggdrasil/internal/email"
	"github.com/craftauth/yggdrasil/internal/http/handler"
	"github.com/craftauth/yggdrasil/internal/http/router"
	"github.com/craftauth/yggdrasil/internal/repository"
	"github.com/craftauth/yggdrasil/internal/security"
	"github.com/craftauth/yggdrasil/internal/service"
	"github.com/craftauth/yggdrasil/internal/texture"
)

// newYggdrasilServer stands up the full HTTP stack over an in-memory
// database. A non-nil redisClient switches the join-session store and
// miss cache to their Redis implementations.
func newYggdrasilServer(t *testing.T, redisClient *redis.Client) (string, *http.Client, func()) {
	t.Helper()

	cfg := &config.Config{
		TokenValid:                 72 * time.Hour,
		TokenInvalid:               168 * time.Hour,
		JoinSessionTTL:             30 * time.Second,
		ProfileMissTTL:             time.Minute,
		RegistrationEnabled:        true,
		RegistrationDefaultProfile: true,
		PasswordPattern:            regexp.MustCompile(`^[!-~]{6,32}$`),
		NicknamePattern:            regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`),
		VerifyCodeTimeout:          5 * time.Minute,
		VerifyCodeLength:           security.HexLength,
		PasswordStrategy:           security.StrategySaltedSha256,
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Token{}, &domain.Profile{}, &domain.Texture{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	tokens := repository.NewTokenRepository(db)
	profiles := repository.NewProfileRepository(db)
	textures := repository.NewTextureRepository(db)

	encryption, err := security.NewEncryption(cfg.PasswordStrategy)
	if err != nil {
		t.Fatalf("encryption: %v", err)
	}
	codes := service.NewVerifyCodeCache(cfg.VerifyCodeTimeout, cfg.VerifyCodeLength, nil)
	t.Cleanup(func() { _ = codes.Close() })

	var joins service.JoinSessionStore
	var misses service.MissCache
	if redisClient != nil {
		joins = service.NewRedisJoinStore(redisClient, "itest", cfg.JoinSessionTTL)
		misses = service.NewRedisMissCache(redisClient, "itest")
	} else {
		memory := service.NewMemoryJoinStore(cfg.JoinSessionTTL, nil)
		t.Cleanup(func() { _ = memory.Close() })
		joins = memory
		misses = service.NewMemoryMissCache()
	}

	signer := texture.NewUnsignedSigner("http://localhost:8080/textures")
	auth := service.NewAuthService(users, tokens, profiles, encryption, codes, &email.LogMessager{}, misses, cfg)
	docs := service.NewProfileService(profiles, textures, signer, misses, cfg.ProfileMissTTL)
	sessions := service.NewSessionService(tokens, profiles, users, joins, docs, cfg.TokenValid)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:            handler.NewAuthHandler(auth),
		SessionHandler:         handler.NewSessionHandler(sessions, docs),
		MetaHandler:            handler.NewMetaHandler("yggdrasil-itest", "test", nil, signer),
		AuthRateLimitInterval:  time.Minute,
		AuthRateLimitThreshold: 10000,
		APIRateLimitInterval:   time.Minute,
		APIRateLimitThreshold:  100000,
		Readiness: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Ping(ctx).Err()
			}
			return nil
		},
	})

	srv := httptest.NewServer(h)
	client := &http.Client{Timeout: 10 * time.Second}
	return srv.URL, client, srv.Close
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, raw
}

// registerAndAuthenticate provisions an account and returns its first
// access token pair plus the default profile id.
func registerAndAuthenticate(t *testing.T, client *http.Client, baseURL, emailAddr, password, nickname string) (accessToken, clientToken, profileID string) {
	t.Helper()

	resp, body := doJSON(t, client, http.MethodPost, baseURL+"/authserver/register", map[string]string{
		"email":    emailAddr,
		"password": password,
		"nickname": nickname,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register failed: status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, client, http.MethodPost, baseURL+"/authserver/authenticate", map[string]string{
		"username": emailAddr,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticate failed: status=%d body=%s", resp.StatusCode, body)
	}
	var result struct {
		AccessToken     string `json:"accessToken"`
		ClientToken     string `json:"clientToken"`
		SelectedProfile *struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"selectedProfile"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode authenticate response: %v", err)
	}
	if result.SelectedProfile == nil {
		t.Fatal("expected a selected profile for a fresh account")
	}
	return result.AccessToken, result.ClientToken, result.SelectedProfile.ID
}

func startRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container integration test in short mode")
	}
	if !dockerAvailable() {
		t.Skip("docker is not available; skipping redis container integration test")
	}

	hostPort := reserveLocalPort(t)
	containerName := "yggdrasil-redis-it-" + strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + strconv.Itoa(rand.Intn(1000))

	runCmd := exec.Command("docker", "run", "-d", "--rm",
		"--name", containerName,
		"-p", fmt.Sprintf("127.0.0.1:%d:6379", hostPort),
		"redis:7-alpine",
		"redis-server", "--save", "", "--appendonly", "no",
	)
	out, err := runCmd.CombinedOutput()
	if err != nil {
		t.Skipf("unable to start redis container: %v output=%s", err, strings.TrimSpace(string(out)))
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("127.0.0.1:%d", hostPort)})
	ctx := context.Background()
	deadline := time.Now().Add(20 * time.Second)
	for {
		if time.Now().After(deadline) {
			_ = client.Close()
			_ = exec.Command("docker", "rm", "-f", containerName).Run()
			t.Fatalf("timed out waiting for redis container %s to become ready", containerName)
		}
		if err := client.Ping(ctx).Err(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	cleanup := func() {
		_ = client.Close()
		_ = exec.Command("docker", "rm", "-f", containerName).Run()
	}
	return client, cleanup
}

func dockerAvailable() bool {
	cmd := exec.Command("docker", "version", "--format", "{{.Server.Version}}")
	return cmd.Run() == nil
}

func reserveLocalPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve local port: %v", err)
	}
	defer func() { _ = l.Close() }()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("unexpected addr type %T", l.Addr())
	}
	return addr.Port
}
