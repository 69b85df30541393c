package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxkjing/ClassComp-Score/internal/api/middleware"
	"github.com/xxxkjing/ClassComp-Score/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(middleware.CtxUserID)
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetActor 返回写入审计字段（changed_by / created_by）的操作人。
// 优先使用 Token 中的用户名，缺失时退回 user_id。
func MustGetActor(c *gin.Context) (string, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return "", false
	}
	if name := c.GetString(middleware.CtxUsername); name != "" {
		return name, true
	}
	return userID, true
}
