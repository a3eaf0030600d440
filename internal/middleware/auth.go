package middleware

import (
	"net/http"
	"strings"

	"color_shop/internal/auth"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID   = "user_id"
	ctxIdentity = "identity"
)

// Authenticate 校验 Bearer 令牌，通过后把身份写入 gin.Context。
// 浏览器的 WebSocket 无法设置请求头，允许用 ?token= 传递。
func Authenticate(signer *auth.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortJSON(c, http.StatusUnauthorized, "Authorization token is missing")
			return
		}
		id, err := signer.Parse(token)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(ctxUserID, id.UserID)
		c.Set(ctxIdentity, id)
		c.Next()
	}
}

// RequireAdmin 必须挂在 Authenticate 之后。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "Authorization token is missing")
			return
		}
		if !id.IsAdmin() {
			abortJSON(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// IdentityFrom 读取 Authenticate 写入的身份。
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return c.Query("token")
}

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}
