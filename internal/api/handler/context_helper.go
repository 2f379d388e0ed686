package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taksh05/Assignment-Portal/internal/policy"
	"github.com/taksh05/Assignment-Portal/pkg/response"
)

// 认证中间件写入上下文的键
const (
	ctxUserID   = "user_id"
	ctxRole     = "role"
	ctxTokenJTI = "token_jti"
	ctxTokenExp = "token_exp"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, ctxUserID)
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, ctxRole)
}

// MustGetActor 组合 user_id 与 role 为授权主体
func MustGetActor(c *gin.Context) (policy.Actor, bool) {
	id, ok := MustGetUserID(c)
	if !ok {
		return policy.Actor{}, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return policy.Actor{}, false
	}
	return policy.Actor{ID: id, Role: role}, true
}

// tokenMeta 当前 Token 的 jti 与过期时间，登出时使用
func tokenMeta(c *gin.Context) (string, time.Time, bool) {
	jti := c.GetString(ctxTokenJTI)
	exp, ok := c.Get(ctxTokenExp)
	if jti == "" || !ok {
		return "", time.Time{}, false
	}
	t, ok := exp.(time.Time)
	return jti, t, ok
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
