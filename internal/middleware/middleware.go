package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"oppwapay/internal/models"
	"oppwapay/internal/payment"
)

const RequestIDHeader = "X-Request-ID"

// APIAuth validates the Token header against the API key or the hash file.
// The hash file may hold the token itself or its SHA256.
func APIAuth(apiKey string, hashFilePath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get("Token")
			if token == "" {
				return c.JSON(http.StatusUnauthorized, models.APIResponse{Status: false, Msg: "Token is required"})
			}

			if apiKey != "" && payment.TokensEqual(apiKey, token) {
				return next(c)
			}

			if hashFilePath != "" {
				hashData, err := os.ReadFile(hashFilePath)
				if err == nil {
					hash := strings.TrimSpace(string(hashData))
					if hash != "" && payment.TokensEqual(hash, token) {
						return next(c)
					}
					h := sha256.Sum256([]byte(token))
					if hash != "" && payment.TokensEqual(hash, hex.EncodeToString(h[:])) {
						return next(c)
					}
				}
			}

			return c.JSON(http.StatusUnauthorized, models.APIResponse{Status: false, Msg: "Invalid token"})
		}
	}
}

// RequestLogger tags each request with an id and logs method, path, status
// and latency once the handler returns.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Response().Header().Set(RequestIDHeader, reqID)
			c.Set("request_id", reqID)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			// Access tokens travel in the path; log the route pattern instead.
			fields := []zap.Field{
				zap.String("request_id", reqID),
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			if action, ok := c.Get("api_actions").(string); ok && action != "" {
				fields = append(fields, zap.String("actions", action))
			}
			logger.Info("request", fields...)
			return nil
		}
	}
}

// ContentSecurityPolicy sets the given CSP header on every response.
func ContentSecurityPolicy(header string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Content-Security-Policy", header)
			return next(c)
		}
	}
}

// CORS configures CORS headers.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Access-Control-Allow-Origin", "*")
			c.Response().Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Response().Header().Set("Access-Control-Allow-Headers", "Content-Type, Token")
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
