package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"fundadmin/api/handler"
	apiMiddleware "fundadmin/api/middleware"
	"fundadmin/api/routes"
	"fundadmin/config"
	"fundadmin/internal/repository"
	"fundadmin/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if cfg.MFAJWTSecret == "" {
		logger.Fatal("MFA_JWT_SECRET is required")
	}

	db, err := config.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attemptRepo := repository.NewLoginAttemptRepository(db)
	alertRepo := repository.NewSecurityAlertRepository(db)
	auditRepo := repository.NewAuditEventRepository(db)
	mfaRepo := repository.NewMFASecretRepository(db)

	auditLogger := service.NewAuditLogger(auditRepo, service.RealClock{}, logger, service.AuditConfig{
		BatchSize:     cfg.AuditBatchSize,
		FlushInterval: cfg.AuditFlushInterval,
	})

	geoResolver, err := service.NewHTTPGeoResolver(cfg.GeoEndpoint, logger)
	if err != nil {
		logger.WithError(err).Fatal("geo resolver init failed")
	}
	alertNotifier := service.NewResendAlertNotifier(cfg.ResendAPIKey, cfg.AlertFrom, cfg.AlertTo)

	securityService := service.NewSessionSecurityService(
		sessionRepo,
		attemptRepo,
		alertRepo,
		auditLogger,
		geoResolver,
		alertNotifier,
		service.RealClock{},
		logger,
		service.SessionConfig{
			SessionTTL:            cfg.SessionTTL,
			MaxConcurrentSessions: cfg.MaxConcurrentSessions,
			FailureWindow:         cfg.FailureWindow,
			SuspiciousThreshold:   cfg.SuspiciousThreshold,
			LockoutThreshold:      cfg.LockoutThreshold,
			LockoutDuration:       cfg.LockoutDuration,
		},
	)

	mfaIssuer := service.MFATokenIssuerJWT{
		Secret: []byte(cfg.MFAJWTSecret),
		Issuer: cfg.MFAIssuer,
		TTL:    cfg.MFATokenTTL,
	}

	authService := service.NewAuthService(
		userRepo,
		mfaRepo,
		securityService,
		auditLogger,
		service.BcryptPasswordHasher{},
		mfaIssuer,
		service.NewTOTPProvider(cfg.MFAIssuer),
		service.RealClock{},
		service.AuthConfig{
			SessionTTL:              cfg.SessionTTL,
			AllowConcurrentSessions: cfg.AllowConcurrentSessions,
			MFAIssuer:               cfg.MFAIssuer,
		},
	)

	authHandler := handler.NewAuthHandler(authService, validate)
	authHandler.CookieDomain = cfg.CookieDomain
	authHandler.SecureCookies = cfg.SecureCookies
	auditHandler := handler.NewAuditHandler(auditLogger)

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"uri":    v.URI,
				"ip":     v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	sessionMiddleware := apiMiddleware.SessionMiddleware{
		Security:   securityService,
		Users:      userRepo,
		CookieName: authHandler.SessionCookieName,
	}
	router := routes.NewRouter(app, authHandler, auditHandler, sessionMiddleware)
	router.RegisterRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepExpiredSessions(ctx, securityService, cfg.SessionSweepInterval, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := app.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
	if err := auditLogger.Flush(shutdownCtx); err != nil {
		logger.WithError(err).Error("audit flush failed")
	}
}

func sweepExpiredSessions(ctx context.Context, security *service.SessionSecurityService, interval time.Duration, logger logrus.FieldLogger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := security.CleanupExpiredSessions(ctx); err != nil {
				logger.WithError(err).Error("session sweep failed")
			}
		}
	}
}
