package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/config"
	"github.com/quillspace/core/internal/database"
	"github.com/quillspace/core/internal/middleware"
	"github.com/quillspace/core/internal/modules/notify"
	"github.com/quillspace/core/internal/pkg/jwt"
	"github.com/quillspace/core/internal/pkg/mail"
	pkgredis "github.com/quillspace/core/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg        *config.AppConfig
	router     *gin.Engine
	db         *gorm.DB
	logger     *zap.Logger
	redis      *pkgredis.Client
	dispatcher *notify.Dispatcher
}

// New initializes the application: config → DB → Redis → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	jwt.SetSecret(cfg.JWTSecret)

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	// Redis backs rate limiting only; the server runs without it.
	var rc *pkgredis.Client
	if cfg.RedisURL != "" {
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))
	if rc != nil {
		router.Use(middleware.RateLimit(rc.Raw()))
	}

	sender := mail.New(cfg.Mail)
	dispatcher := notify.NewDispatcher(db, sender, cfg.WebURL, logger)

	app := &App{
		cfg:        cfg,
		router:     router,
		db:         db,
		logger:     logger,
		redis:      rc,
		dispatcher: dispatcher,
	}
	app.registerRoutes()

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown drains in-flight notification runs and closes connections.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.dispatcher.Flush(ctx)
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return err
}
