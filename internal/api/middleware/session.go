package middleware

import (
	"net/http"

	"github.com/Voidcoolis/AuthHive/internal/token"

	"github.com/gin-gonic/gin"
)

// SessionCookie 是承载会话令牌的 Cookie 名称。
const SessionCookie = "token"

// AccountIDKey 是中间件写入 gin 上下文的账户 ID 键。
const AccountIDKey = "accountID"

// Session 校验会话 Cookie 并把账户 ID 写入上下文。
//
// Cookie 缺失、被篡改、格式错误、已过期统一返回同一个 401 响应，
// 不泄露具体是哪种情况。
func Session(signer *token.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(SessionCookie)
		if err != nil || tokenStr == "" {
			unauthorized(c)
			return
		}

		accountID, err := signer.Verify(tokenStr)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(AccountIDKey, accountID)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
	c.Abort()
}
