package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	contextUserIDKey  = "auth_user_id"
	contextTenantKey  = "auth_tenant_id"
	contextRoleKey    = "auth_role"
	contextSessionKey = "auth_session_id"
	contextTokenKey   = "auth_session_token"
)

func SetAuthContext(c echo.Context, userID uuid.UUID, tenantID *uuid.UUID, role string, sessionID uuid.UUID, token string) {
	c.Set(contextUserIDKey, userID)
	c.Set(contextTenantKey, tenantID)
	c.Set(contextRoleKey, role)
	c.Set(contextSessionKey, sessionID)
	c.Set(contextTokenKey, token)
}

func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	value := c.Get(contextUserIDKey)
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

func TenantIDFromContext(c echo.Context) (*uuid.UUID, bool) {
	value := c.Get(contextTenantKey)
	tenantID, ok := value.(*uuid.UUID)
	return tenantID, ok
}

func RoleFromContext(c echo.Context) (string, bool) {
	value := c.Get(contextRoleKey)
	role, ok := value.(string)
	return role, ok
}

func SessionIDFromContext(c echo.Context) (uuid.UUID, bool) {
	value := c.Get(contextSessionKey)
	sessionID, ok := value.(uuid.UUID)
	return sessionID, ok
}

func SessionTokenFromContext(c echo.Context) (string, bool) {
	value := c.Get(contextTokenKey)
	token, ok := value.(string)
	return token, ok
}
