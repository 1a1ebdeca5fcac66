package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const UserIDKey contextKey = "user_id"

var errNoToken = errors.New("missing bearer token")

// Middleware rejects requests without a valid bearer token and stores the
// token subject as the user id.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := authenticate(c.Request(), secret)
			if err != nil {
				if errors.Is(err, errNoToken) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			c.Set(string(UserIDKey), userID)
			return next(c)
		}
	}
}

// OptionalMiddleware sets the user id when a valid token is present and lets
// anonymous requests through. A present but invalid token is still rejected.
func OptionalMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := authenticate(c.Request(), secret)
			switch {
			case errors.Is(err, errNoToken):
			case err != nil:
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			default:
				c.Set(string(UserIDKey), userID)
			}
			return next(c)
		}
	}
}

func authenticate(r *http.Request, secret []byte) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errNoToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("Invalid Authorization header format")
	}
	if len(secret) == 0 {
		return "", errors.New("Server auth configuration error")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("Invalid or expired token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("Invalid token subject")
	}
	return sub, nil
}

// UserIDFromContext returns the user id set by Middleware.
func UserIDFromContext(c echo.Context) (string, error) {
	id, ok := c.Get(string(UserIDKey)).(string)
	if !ok || id == "" {
		return "", errors.New("user ID not found in context")
	}
	return id, nil
}
