package routes

import (
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"fundadmin/api/handler"
	"fundadmin/api/middleware"
)

type Router struct {
	Echo              *echo.Echo
	Auth              *handler.AuthHandler
	Audit             *handler.AuditHandler
	SessionMiddleware middleware.SessionMiddleware
	AuthRate          *middleware.RateLimiter
	LoginRate         *middleware.RateLimiter
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	auditHandler *handler.AuditHandler,
	sessionMiddleware middleware.SessionMiddleware,
) *Router {
	return &Router{
		Echo:              e,
		Auth:              authHandler,
		Audit:             auditHandler,
		SessionMiddleware: sessionMiddleware,
		AuthRate:          middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:         middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.POST("/auth/login", r.Auth.Login, r.LoginRate.Middleware())
	e.POST("/auth/login/mfa", r.Auth.LoginWithMFA, r.LoginRate.Middleware())
	e.POST("/auth/logout", r.Auth.Logout, r.SessionMiddleware.RequireSession)
	e.POST("/auth/logout-all", r.Auth.LogoutAll, r.SessionMiddleware.RequireSession)
	e.POST("/auth/mfa/enable", r.Auth.EnableMFA, r.SessionMiddleware.RequireSession)
	e.POST("/auth/mfa/verify", r.Auth.VerifyMFA, r.SessionMiddleware.RequireSession)
	e.POST("/auth/mfa/disable", r.Auth.DisableMFA, r.SessionMiddleware.RequireSession)

	e.GET("/me", r.Auth.Me, r.SessionMiddleware.RequireSession)
	e.GET("/me/sessions", r.Auth.Sessions, r.SessionMiddleware.RequireSession)

	e.GET("/admin/audit", r.Audit.Search, r.SessionMiddleware.RequireSession, middleware.RequireRole("admin"))
	e.GET("/admin/audit/export", r.Audit.Export, r.SessionMiddleware.RequireSession, middleware.RequireRole("admin"))
	e.GET("/admin/audit/verify", r.Audit.Verify, r.SessionMiddleware.RequireSession, middleware.RequireRole("admin"))
}
