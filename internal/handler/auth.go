package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tasklog/internal/db"
	"gorm.io/gorm"
)

const userIDContextKey = "__user_id"

// AuthRequired 是一个简单的 Bearer Token 认证中间件：
// 从 Authorization Header 解析 Token 并查找对应用户，
// 将用户 ID 写入请求上下文供后续 handler 使用
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := ""
		if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
		}

		if token == "" {
			respondError(c, http.StatusUnauthorized, "缺少认证Token")
			c.Abort()
			return
		}

		var user db.User
		if err := a.db.Where("api_token = ?", token).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				respondError(c, http.StatusUnauthorized, "无效的Token")
			} else {
				respondError(c, http.StatusInternalServerError, "认证过程出错")
			}
			c.Abort()
			return
		}

		c.Set(userIDContextKey, user.ID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) uint {
	if value, exists := c.Get(userIDContextKey); exists {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return 0
}
