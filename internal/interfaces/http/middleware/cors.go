package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tresoria/backend/internal/infrastructure/config"
)

// CORS applies the configured cross-origin policy
func CORS(cfg config.HTTPConfig) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(cfg.CORSAllowOrigins))
	for _, origin := range cfg.CORSAllowOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}
	methods := strings.Join(cfg.CORSAllowMethods, ", ")
	headers := strings.Join(cfg.CORSAllowHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			if methods != "" {
				c.Header("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				c.Header("Access-Control-Allow-Headers", headers)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
