package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"fundadmin/internal/repository"
	"fundadmin/internal/service"
)

// FingerprintHeader carries the client's device fingerprint on every
// authenticated request; it is matched against the fingerprint the session
// was issued to.
const FingerprintHeader = "X-Device-Fingerprint"

// SessionMiddleware authenticates requests against the session security
// service using the opaque bearer token issued at login.
type SessionMiddleware struct {
	Security   *service.SessionSecurityService
	Users      repository.UserRepository
	CookieName string
}

func (m SessionMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.Security == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		token := extractBearerToken(c.Request())
		if token == "" && m.CookieName != "" {
			if cookie, err := c.Cookie(m.CookieName); err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}

		fingerprint := c.Request().Header.Get(FingerprintHeader)
		result, err := m.Security.ValidateSession(c.Request().Context(), token, c.RealIP(), fingerprint)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		// Every invalid outcome maps to the same 401; the reason stays
		// server-side.
		if !result.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}

		session := result.Session
		role := ""
		if m.Users != nil {
			user, err := m.Users.FindByID(c.Request().Context(), session.UserID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			role = string(user.Role)
		}

		SetAuthContext(c, session.UserID, session.TenantID, role, session.ID, token)
		return next(c)
	}
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
