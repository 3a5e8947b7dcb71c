package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/craftauth/yggdrasil/internal/config"
	"github.com/craftauth/yggdrasil/internal/domain"
	"github.com/craftauth/yggdrasil/internal/email"
	"github.com/craftauth/yggdrasil/internal/http/handler"
	"github.com/craftauth/yggdrasil/internal/repository"
	"github.com/craftauth/yggdrasil/internal/security"
	"github.com/craftauth/yggdrasil/internal/service"
	"github.com/craftauth/yggdrasil/internal/texture"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Token{}, &domain.Profile{}, &domain.Texture{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		PasswordStrategy:           security.StrategySaltedSha256,
		TokenValid:                 72 * time.Hour,
		TokenInvalid:               168 * time.Hour,
		JoinSessionTTL:             30 * time.Second,
		RegistrationEnabled:        true,
		RegistrationDefaultProfile: true,
		PasswordPattern:            regexp.MustCompile(`^[!-~]{6,32}$`),
		NicknamePattern:            regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`),
		VerifyCodeTimeout:          time.Minute,
		VerifyCodeLength:           16,
	}
	encryption, err := security.NewEncryption(cfg.PasswordStrategy)
	if err != nil {
		t.Fatalf("new encryption: %v", err)
	}

	users := repository.NewUserRepository(db)
	tokens := repository.NewTokenRepository(db)
	profiles := repository.NewProfileRepository(db)
	textures := repository.NewTextureRepository(db)

	codes := service.NewVerifyCodeCache(cfg.VerifyCodeTimeout, cfg.VerifyCodeLength, nil)
	t.Cleanup(func() { _ = codes.Close() })
	joins := service.NewMemoryJoinStore(cfg.JoinSessionTTL, nil)
	t.Cleanup(func() { _ = joins.Close() })

	signer := texture.NewUnsignedSigner("http://localhost:8080/textures")
	misses := service.NewMemoryMissCache()
	auth := service.NewAuthService(users, tokens, profiles, encryption, codes, &email.LogMessager{}, misses, cfg)
	docs := service.NewProfileService(profiles, textures, signer, misses, time.Minute)
	sessions := service.NewSessionService(tokens, profiles, users, joins, docs, cfg.TokenValid)

	h := NewRouter(Dependencies{
		AuthHandler:            handler.NewAuthHandler(auth),
		SessionHandler:         handler.NewSessionHandler(sessions, docs),
		MetaHandler:            handler.NewMetaHandler("test server", "0.0.0", []string{"localhost"}, signer),
		AuthRateLimitInterval:  time.Minute,
		AuthRateLimitThreshold: 100,
		APIRateLimitInterval:   time.Minute,
		APIRateLimitThreshold:  1000,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAuthenticationFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/authserver/register", map[string]any{
		"email": "steve@example.com", "password": "hunter42", "nickname": "Steve",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/authserver/authenticate", map[string]any{
		"agent":    map[string]any{"name": "Minecraft", "version": 1},
		"username": "steve@example.com", "password": "hunter42", "requestUser": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticate: status %d", resp.StatusCode)
	}
	var auth struct {
		AccessToken     string `json:"accessToken"`
		ClientToken     string `json:"clientToken"`
		SelectedProfile *struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"selectedProfile"`
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeBody(t, resp, &auth)
	if auth.SelectedProfile == nil || auth.SelectedProfile.Name != "Steve" {
		t.Fatalf("expected selected profile Steve, got %+v", auth.SelectedProfile)
	}
	if auth.User == nil {
		t.Fatal("requestUser must include the user block")
	}

	resp = postJSON(t, srv.URL+"/authserver/validate", map[string]any{
		"accessToken": auth.AccessToken, "clientToken": auth.ClientToken,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("validate: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/authserver/refresh", map[string]any{
		"accessToken": auth.AccessToken, "clientToken": auth.ClientToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d", resp.StatusCode)
	}
	var refreshed struct {
		AccessToken string `json:"accessToken"`
		ClientToken string `json:"clientToken"`
	}
	decodeBody(t, resp, &refreshed)
	if refreshed.AccessToken == auth.AccessToken {
		t.Fatal("refresh must rotate the access token")
	}
	if refreshed.ClientToken != auth.ClientToken {
		t.Fatal("client token must be stable across refresh")
	}

	// The replaced token is dead, in the standard error shape.
	resp = postJSON(t, srv.URL+"/authserver/validate", map[string]any{"accessToken": auth.AccessToken})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stale validate: status %d", resp.StatusCode)
	}
	var errBody struct {
		Error        string `json:"error"`
		ErrorMessage string `json:"errorMessage"`
	}
	decodeBody(t, resp, &errBody)
	if errBody.Error != "ForbiddenOperationException" {
		t.Fatalf("unexpected error name: %q", errBody.Error)
	}
	if errBody.ErrorMessage != "Invalid token." {
		t.Fatalf("unexpected error message: %q", errBody.ErrorMessage)
	}

	resp = postJSON(t, srv.URL+"/authserver/invalidate", map[string]any{"accessToken": refreshed.AccessToken})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("invalidate: status %d", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/authserver/invalidate", map[string]any{"accessToken": refreshed.AccessToken})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("second invalidate: status %d", resp.StatusCode)
	}
}

func TestJoinHandshakeFlow(t *testing.T) {
	srv := newTestServer(t)

	postJSON(t, srv.URL+"/authserver/register", map[string]any{
		"email": "alex@example.com", "password": "hunter42", "nickname": "Alex",
	})
	resp := postJSON(t, srv.URL+"/authserver/authenticate", map[string]any{
		"username": "alex@example.com", "password": "hunter42",
	})
	var auth struct {
		AccessToken     string `json:"accessToken"`
		SelectedProfile *struct {
			ID string `json:"id"`
		} `json:"selectedProfile"`
	}
	decodeBody(t, resp, &auth)

	serverID := "0123456789abcdef"
	resp = postJSON(t, srv.URL+"/sessionserver/session/minecraft/join", map[string]any{
		"accessToken": auth.AccessToken, "selectedProfile": auth.SelectedProfile.ID, "serverId": serverID,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("join: status %d", resp.StatusCode)
	}

	getResp, err := http.Get(srv.URL + "/sessionserver/session/minecraft/hasJoined?username=Alex&serverId=" + serverID)
	if err != nil {
		t.Fatalf("hasJoined: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("hasJoined: status %d", getResp.StatusCode)
	}
	var doc struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Properties []struct {
			Name string `json:"name"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode hasJoined: %v", err)
	}
	if doc.Name != "Alex" || len(doc.Properties) != 1 || doc.Properties[0].Name != "textures" {
		t.Fatalf("unexpected hasJoined document: %+v", doc)
	}

	// A wrong name answers empty, not an error body.
	missResp, err := http.Get(srv.URL + "/sessionserver/session/minecraft/hasJoined?username=alex&serverId=" + serverID)
	if err != nil {
		t.Fatalf("hasJoined miss: %v", err)
	}
	defer missResp.Body.Close()
	if missResp.StatusCode != http.StatusNoContent {
		t.Fatalf("hasJoined miss: status %d", missResp.StatusCode)
	}
}

func TestProfileEndpoint(t *testing.T) {
	srv := newTestServer(t)

	postJSON(t, srv.URL+"/authserver/register", map[string]any{
		"email": "kim@example.com", "password": "hunter42", "nickname": "Kim",
	})
	resp := postJSON(t, srv.URL+"/authserver/authenticate", map[string]any{
		"username": "kim@example.com", "password": "hunter42",
	})
	var auth struct {
		SelectedProfile *struct {
			ID string `json:"id"`
		} `json:"selectedProfile"`
	}
	decodeBody(t, resp, &auth)

	getResp, err := http.Get(srv.URL + "/sessionserver/session/minecraft/profile/" + auth.SelectedProfile.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("profile: status %d", getResp.StatusCode)
	}

	missResp, err := http.Get(srv.URL + "/sessionserver/session/minecraft/profile/ffffffffffffffffffffffffffffffff")
	if err != nil {
		t.Fatalf("missing profile: %v", err)
	}
	defer missResp.Body.Close()
	if missResp.StatusCode != http.StatusNoContent {
		t.Fatalf("missing profile: status %d", missResp.StatusCode)
	}
}

func TestMetaAndHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("meta: status %d", resp.StatusCode)
	}
	var meta struct {
		Meta        map[string]string `json:"meta"`
		SkinDomains []string          `json:"skinDomains"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta.Meta["implementationName"] != "yggdrasil" {
		t.Fatalf("unexpected meta: %+v", meta.Meta)
	}

	live, err := http.Get(srv.URL + "/health/live")
	if err != nil {
		t.Fatalf("health live: %v", err)
	}
	defer live.Body.Close()
	if live.StatusCode != http.StatusOK {
		t.Fatalf("health live: status %d", live.StatusCode)
	}
}
