package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/craftauth/yggdrasil/internal/config"
	"github.com/craftauth/yggdrasil/internal/email"
	"github.com/craftauth/yggdrasil/internal/http/handler"
	"github.com/craftauth/yggdrasil/internal/http/router"
	"github.com/craftauth/yggdrasil/internal/observability"
	"github.com/craftauth/yggdrasil/internal/repository"
	"github.com/craftauth/yggdrasil/internal/security"
	"github.com/craftauth/yggdrasil/internal/service"
	"github.com/craftauth/yggdrasil/internal/texture"
)

// Version is stamped by the build; the fallback marks source builds.
var Version = "dev"

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime

	db          *gorm.DB
	redisClient *redis.Client
	verifyCodes *service.VerifyCodeCache
	joinCloser  interface{ Close() error }
}

// New wires the full service graph from configuration.
func New(ctx context.Context, cfg *config.Config, runtime *observability.Runtime) (*App, error) {
	logger := runtime.Logger

	if security.IsDeprecated(cfg.PasswordStrategy) {
		logger.Warn("configured password strategy is deprecated", "strategy", cfg.PasswordStrategy)
	}
	encryption, err := security.NewEncryption(cfg.PasswordStrategy)
	if err != nil {
		return nil, err
	}

	db, err := repository.Open(cfg)
	if err != nil {
		return nil, err
	}
	users := repository.NewUserRepository(db)
	tokens := repository.NewTokenRepository(db)
	profiles := repository.NewProfileRepository(db)
	textures := repository.NewTextureRepository(db)

	var redisClient *redis.Client
	var joins service.JoinSessionStore
	var joinCloser interface{ Close() error }
	var misses service.MissCache
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		joins = service.NewRedisJoinStore(redisClient, cfg.RedisPrefix, cfg.JoinSessionTTL)
		misses = service.NewRedisMissCache(redisClient, cfg.RedisPrefix)
		logger.Info("join sessions backed by redis", "addr", cfg.RedisAddr)
	} else {
		memory := service.NewMemoryJoinStore(cfg.JoinSessionTTL, logger)
		joins = memory
		joinCloser = memory
		misses = service.NewMemoryMissCache()
	}
	if cfg.ProfileMissTTL <= 0 {
		misses = service.NewNoopMissCache()
	}

	var signer *texture.Signer
	if cfg.TextureKeyPath != "" {
		signer, err = texture.NewSigner(cfg.TextureKeyPath, cfg.TextureBaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("texture signing enabled", "key", cfg.TextureKeyPath)
	} else {
		signer = texture.NewUnsignedSigner(cfg.TextureBaseURL)
		logger.Info("texture signing disabled, no key configured")
	}

	var messager email.Messager
	if cfg.SMTPAddr != "" {
		messager = email.NewSMTPMessager(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		messager = &email.LogMessager{Logger: logger}
	}

	verifyCodes := service.NewVerifyCodeCache(cfg.VerifyCodeTimeout, cfg.VerifyCodeLength, logger)

	auth := service.NewAuthService(users, tokens, profiles, encryption, verifyCodes, messager, misses, cfg)
	docs := service.NewProfileService(profiles, textures, signer, misses, cfg.ProfileMissTTL)
	sessions := service.NewSessionService(tokens, profiles, users, joins, docs, cfg.TokenValid)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:            handler.NewAuthHandler(auth),
		SessionHandler:         handler.NewSessionHandler(sessions, docs),
		MetaHandler:            handler.NewMetaHandler(cfg.OTELServiceName, Version, skinDomains(cfg.TextureBaseURL), signer),
		AuthRateLimitInterval:  cfg.RateLimitInterval,
		AuthRateLimitThreshold: cfg.RateLimitThreshold,
		APIRateLimitInterval:   time.Minute,
		APIRateLimitThreshold:  cfg.RateLimitThreshold * 10,
		Readiness:              readinessProbe(db, redisClient),
		EnableOTelHTTP:         cfg.EnableOTelHTTP,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		db:            db,
		redisClient:   redisClient,
		verifyCodes:   verifyCodes,
		joinCloser:    joinCloser,
	}, nil
}

// Run serves until ctx is cancelled, then drains connections.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("server listening", "addr", a.Server.Addr, "version", Version)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.closeResources()
	return err
}

func (a *App) closeResources() {
	_ = a.verifyCodes.Close()
	if a.joinCloser != nil {
		_ = a.joinCloser.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func readinessProbe(db *gorm.DB, redisClient *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}

// skinDomains derives the allowlist clients verify texture URLs against.
func skinDomains(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{u.Hostname()}
}
