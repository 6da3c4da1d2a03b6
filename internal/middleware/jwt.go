package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/brovoice-api/internal/session"
	"github.com/noah-isme/brovoice-api/internal/utils"
)

const sessionLocal = "session"

// RevocationChecker reports whether a token id was signed out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RoleResolver returns the role currently stored for a user. When the checker passed to
// JWTProtected also implements it, the stored role replaces the role claim of the token.
type RoleResolver interface {
	CurrentRole(ctx context.Context, userID string) (string, error)
}

// JWTProtected validates HS256 bearer tokens and binds the resulting session to the request.
// Browsers cannot set headers on EventSource or WebSocket, so an access_token query parameter is also accepted.
func JWTProtected(secret string, revocations RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		sess := sessionFromClaims(claims)
		if !sess.Authenticated() {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		if revocations != nil && sess.TokenID != "" {
			revoked, err := revocations.IsRevoked(c.UserContext(), sess.TokenID)
			if err != nil {
				return utils.SendError(c, fiber.StatusServiceUnavailable, "unable to verify token")
			}
			if revoked {
				return utils.SendError(c, fiber.StatusUnauthorized, "token revoked")
			}
		}

		if roles, ok := revocations.(RoleResolver); ok {
			role, err := roles.CurrentRole(c.UserContext(), sess.UserID)
			switch {
			case errors.Is(err, session.ErrUnauthenticated):
				return utils.SendError(c, fiber.StatusUnauthorized, "account no longer exists")
			case err != nil:
				return utils.SendError(c, fiber.StatusServiceUnavailable, "unable to verify role")
			}
			sess.Role = session.NormalizeRole(role)
		}

		c.Locals(sessionLocal, sess)
		c.Locals("user_id", sess.UserID)
		c.Locals("user_role", sess.Role)
		c.SetUserContext(session.WithSession(c.UserContext(), sess))

		return c.Next()
	}
}

// SessionFrom returns the session bound by JWTProtected, or an empty session.
func SessionFrom(c *fiber.Ctx) session.Session {
	if sess, ok := c.Locals(sessionLocal).(session.Session); ok {
		return sess
	}
	if sess, ok := session.FromContext(c.UserContext()); ok {
		return sess
	}
	return session.Session{}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		if token := strings.TrimSpace(c.Query("access_token")); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("authorization header missing")
	}

	const bearer = "bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), bearer) {
		return "", fmt.Errorf("invalid authorization header")
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", fmt.Errorf("invalid token")
	}
	return token, nil
}

func sessionFromClaims(claims jwt.MapClaims) session.Session {
	sess := session.New(stringClaim(claims, "sub"), stringClaim(claims, "role"), stringClaim(claims, "email"))
	sess.TokenID = stringClaim(claims, "jti")
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sess.ExpiresAt = exp.Time
	}
	return sess
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}
