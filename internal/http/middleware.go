package http

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"finance-ledger-go/internal/auth"
	"finance-ledger-go/internal/database"
	"finance-ledger-go/internal/models"
)

func AuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "authorization_header_missing"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(401, gin.H{"error": "authorization_header_invalid"})
			return
		}

		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid_token"})
			return
		}

		var user models.User
		if err := database.DB.Where("uuid = ?", claims.UserUUID).First(&user).Error; err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid_token_user_not_found"})
			return
		}

		c.Set("user", &user)
		c.Set("userID", user.ID)

		c.Next()
	}
}

func cors(allowOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// timeout bounds each request's context so downstream DB calls inherit a
// deadline.
func timeout(seconds int) gin.HandlerFunc {
	if seconds <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	d := time.Duration(seconds) * time.Second
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// currentUserID pulls the owner set by AuthMiddleware; 0 means unauthenticated.
func currentUserID(c *gin.Context) uint {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	id, _ := val.(uint)
	return id
}
