package middleware

import (
	"net/http"
	"strings"

	"botforge-server/src/configs"
	"botforge-server/src/core/auth"
	"botforge-server/src/core/utils"

	"github.com/gin-gonic/gin"
)

// devUserID is the fixed account used when no-auth development mode is on.
const devUserID uint = 1

// CORS returns the shared cross-origin middleware.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
		} else {
			c.Header("Access-Control-Allow-Origin", "*")
		}
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// UserAuth verifies the bearer token and sets user_id on the context. In
// development mode every request runs as a fixed local account.
func UserAuth(cfg *configs.Config, issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Server.Auth.DevMode || !cfg.Server.Auth.Enabled {
			c.Set("user_id", devUserID)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.Error(c, http.StatusUnauthorized, "missing or invalid authorization token")
			c.Abort()
			return
		}

		claims, err := issuer.Parse(authHeader[7:])
		if err != nil {
			utils.Error(c, http.StatusUnauthorized, "token verification failed: "+err.Error())
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("jwt_claims", claims)
		c.Next()
	}
}
