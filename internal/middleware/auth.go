package middleware

import (
	"strconv"
	"strings"

	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware 校验外部认证服务签发的 JWT，并把 claims 与 Actor 放入上下文。
// 浏览器 WebSocket 无法带 Authorization 头，因此也接受 ?token= 参数。
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret)
		if err != nil {
			logger.Log.Debug("JWT解析错误", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if !claims.Role.Valid() || claims.UserID == 0 {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(util.ContextUser, claims)
		c.Set(util.ContextActor, authz.New(claims.UserID, claims.Role))
		c.Next()
	}
}

// RoleMiddleware 角色校验，管理员拥有所有教师权限直接放行
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := user.Role == model.Admin
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetActor returns the actor resolved by AuthMiddleware. Unauthenticated
// requests get an actor without any capability.
func GetActor(c *gin.Context) authz.Actor {
	if v, ok := c.Get(util.ContextActor); ok {
		if a, ok := v.(authz.Actor); ok {
			return a
		}
	}
	return authz.New(0, "")
}

// RateKey buckets authenticated requests per user and the rest per address.
func RateKey(c *gin.Context) string {
	if user := util.GetUserFromContext(c); user != nil {
		return "u:" + strconv.FormatUint(uint64(user.UserID), 10)
	}
	return "ip:" + c.ClientIP()
}
