package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/snippetx/backend/internal/ratelimit"
)

// rateLimit applies one limiter tier to the request. Quota headers are set on
// admission and rejection alike; a rejected request never reaches the store.
func (h *httpHandler) rateLimit(tier ratelimit.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := ratelimit.ClientID(
			c.Request.RemoteAddr,
			c.GetHeader("X-Forwarded-For"),
			callerKey(c),
		)

		decision, err := h.limiter.Allow(tier, clientID)
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetTime.Unix(), 10))

		if err != nil {
			c.Header("Retry-After", strconv.FormatInt(decision.RetryAfterSeconds, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate_limited",
				"message":    "Rate limit exceeded. Try again in " + strconv.FormatInt(decision.RetryAfterSeconds, 10) + " seconds",
				"retryAfter": decision.RetryAfterSeconds,
				"limit":      decision.Limit,
				"remaining":  0,
				"reset":      decision.ResetTime.Unix(),
			})
			return
		}

		c.Next()
	}
}

// authorizeRequest resolves the caller identity from the API key header or
// query parameter, or from a bearer token.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	subject, err := h.authenticator.Identify(callerKey(c), bearerToken(c))
	if err != nil {
		h.logger.Warn("request rejected", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "valid API key or bearer token required",
		})
		return
	}
	c.Set(callerContextKey, subject)
	c.Next()
}

func callerKey(c *gin.Context) string {
	if key := c.GetHeader("X-Api-Key"); key != "" {
		return key
	}
	return c.Query("apiKey")
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
