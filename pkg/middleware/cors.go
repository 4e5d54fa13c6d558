package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/configs"
)

// CORSMiddleware CORS中间件.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowWebSockets = true
	config.AllowFiles = true

	if cfg.Debug {
		config.AllowHeaders = append(config.AllowHeaders, "X-Auth-Request-Email", "X-Auth-Request-Groups")
	}

	return cors.New(config)
}
