package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-chat/internal/errs"
)

const (
	userIDKey     = "user_id"
	sessionCookie = "session_token"
)

// TokenValidator 校验会话令牌
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// RequireAuth 要求有效认证的中间件
// 令牌来自 Authorization: Bearer 或 session_token cookie，否则返回 401
func RequireAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(sessionCookie)
		}

		userID, err := v.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if errs.KindOf(err) != errs.KindAuth {
				err = errs.Auth("invalid or expired session")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized,
				"msg":  err.Error(),
			})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// GetUserID 从上下文获取当前用户ID
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}
