package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	tokenIssuer = "event-catalog"

	// ContextKeySubject は検証済みトークンの sub を格納するキー
	ContextKeySubject = "jwt_subject"
)

// GenerateJWT は HS256 で署名したアクセストークンを生成する
func GenerateJWT(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth は Bearer トークンを検証するミドルウェア
// secret が空の場合は検証しない
func JWTAuth(secret string) echo.MiddlewareFunc {
	if secret == "" {
		return passThrough
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorizationヘッダーが必要です")
			}

			tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found {
				return echo.NewHTTPError(http.StatusUnauthorized, "Bearer トークン形式が不正です")
			}

			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "トークンが無効です")
			}

			c.Set(ContextKeySubject, claims.Subject)
			return next(c)
		}
	}
}
