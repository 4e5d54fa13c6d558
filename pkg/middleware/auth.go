package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/access"
	"github.com/yeisme/assetvault/pkg/log"
	"github.com/yeisme/assetvault/pkg/rule"
)

// AuthMiddleware 基于 oauth2-proxy 注入的请求头解析调用方身份并注入
// request context。身份缺失不拦截请求：匿名是一等身份，读取范围由
// 访问过滤收窄，写操作由服务层拒绝。
//   - X-Auth-Request-Email / X-Forwarded-Email 提供 subject
//   - X-Auth-Request-Groups 命中 conf.AdminGroup 时升级为管理员
//   - 开发模式可允许 query user 兜底（由 configs.auth.dev_allow_query 控制）.
func AuthMiddleware(conf configs.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !conf.Enabled || isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		p := resolvePrincipal(c, conf)

		c.Request = c.Request.WithContext(access.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func resolvePrincipal(c *gin.Context, conf configs.AuthConfig) access.Principal {
	email := strings.TrimSpace(c.GetHeader("X-Auth-Request-Email"))
	if email == "" {
		email = strings.TrimSpace(c.GetHeader("X-Forwarded-Email"))
	}

	if email == "" && conf.DevAllowQuery {
		email = strings.TrimSpace(c.Query("user"))
	}

	if email == "" {
		return access.Anonymous()
	}

	// subject 必须是合法邮箱，畸形头按匿名处理
	if err := rule.ValidateVar(email, "required,email"); err != nil {
		log.Logger().Warn().Str("email", email).Msg("malformed identity header, treating as anonymous")

		return access.Anonymous()
	}

	if conf.AdminGroup != "" && hasGroup(c.GetHeader("X-Auth-Request-Groups"), conf.AdminGroup) {
		return access.Admin(email)
	}

	return access.User(email)
}

// hasGroup 判断逗号分隔的组列表是否包含指定组.
func hasGroup(header, group string) bool {
	for _, g := range strings.Split(header, ",") {
		if strings.TrimSpace(g) == group {
			return true
		}
	}

	return false
}

func isSkippedPath(path string, skips []string) bool {
	if path == "" || len(skips) == 0 {
		return false
	}

	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
