package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Identity extracts the caller from the access token: user id, store id and
// role. Anonymous carts authenticate with a session token instead. Every
// downstream read and write is scoped by the store id set here.
type Identity struct {
	JWTSecret []byte
}

const (
	ctxUserID   = "user_id"
	ctxStoreID  = "store_id"
	ctxRole     = "role"
	ctxOwnerKey = "owner_key"
)

func NewIdentity(secret []byte) *Identity {
	return &Identity{JWTSecret: secret}
}

// RequireAuth accepts authenticated users only.
func (m *Identity) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.parseToken(c)
		if err != nil {
			return err
		}
		setIdentity(c, claims)
		return next(c)
	}
}

// RequireAdmin accepts authenticated users with the admin role.
func (m *Identity) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.parseToken(c)
		if err != nil {
			return err
		}
		if claims.Role != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		setIdentity(c, claims)
		return next(c)
	}
}

// RequireShopper accepts either an authenticated user or an anonymous
// session token, for cart and checkout routes.
func (m *Identity) RequireShopper(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.parseToken(c)
		if err == nil {
			setIdentity(c, claims)
			return next(c)
		}

		session := c.Request().Header.Get("X-Session-Token")
		if session == "" {
			if ck, err := c.Cookie("cartSession"); err == nil {
				session = ck.Value
			}
		}
		storeID := c.Request().Header.Get("X-Store-ID")
		if session == "" || storeID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
		}
		if _, err := uuid.Parse(storeID); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid store")
		}
		c.Set(ctxStoreID, storeID)
		c.Set(ctxOwnerKey, "session:"+session)
		return next(c)
	}
}

type accessClaims struct {
	UserID  string
	StoreID string
	Role    string
}

func (m *Identity) parseToken(c echo.Context) (*accessClaims, error) {
	tokenString := ""
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		tokenString = strings.TrimPrefix(h, "Bearer ")
	} else if ck, err := c.Cookie("accessToken"); err == nil {
		tokenString = ck.Value
	}
	if tokenString == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	storeID, _ := claims["store_id"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || storeID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	if _, err := uuid.Parse(storeID); err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	return &accessClaims{UserID: sub, StoreID: storeID, Role: role}, nil
}

func setIdentity(c echo.Context, claims *accessClaims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxStoreID, claims.StoreID)
	c.Set(ctxRole, claims.Role)
	c.Set(ctxOwnerKey, "user:"+claims.UserID)
}

// StoreID returns the caller's authorized store.
func StoreID(c echo.Context) (uuid.UUID, error) {
	s, _ := c.Get(ctxStoreID).(string)
	if s == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing store")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid store")
	}
	return id, nil
}

// UserID returns the authenticated user, failing for anonymous sessions.
func UserID(c echo.Context) (uuid.UUID, error) {
	s, _ := c.Get(ctxUserID).(string)
	if s == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid user")
	}
	return id, nil
}

// OwnerKey identifies the cart owner: "user:<id>" or "session:<token>".
func OwnerKey(c echo.Context) (string, error) {
	s, _ := c.Get(ctxOwnerKey).(string)
	if s == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
	}
	return s, nil
}

// ActorID is the acting user for audit fields, or "anonymous".
func ActorID(c echo.Context) string {
	if s, _ := c.Get(ctxUserID).(string); s != "" {
		return s
	}
	return "anonymous"
}
