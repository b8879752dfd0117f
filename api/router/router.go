package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/netdriver/netdriver/api/handler"
	"github.com/netdriver/netdriver/pkg/logger"
)

// CorrelationHeader 请求关联 ID 头
const CorrelationHeader = "X-Correlation-Id"

// Handlers 路由依赖的处理器
type Handlers struct {
	Cmd    *handler.CmdHandler
	System *handler.SystemHandler
}

// SetupRouter 设置路由
func SetupRouter(mode string, h Handlers) *gin.Engine {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CorrelationMiddleware())
	r.Use(LoggingMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":   "NetDriver Agent",
			"status": "running",
		})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.System.Health)
		v1.GET("/stats", h.System.Stats)
		v1.GET("/logs", h.System.TailLogs)
		v1.PUT("/log/level", h.System.SetLogLevel)

		v1.POST("/cmd", h.Cmd.Cmd)
		v1.POST("/pull", h.Cmd.Pull)
		v1.POST("/connect", h.Cmd.Connect)
		v1.GET("/requests/:id", h.Cmd.GetRequest)
		v1.GET("/snapshots", h.Cmd.ListSnapshots)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code": "NOT_FOUND",
			"msg":  "接口不存在",
			"path": c.Request.URL.Path,
		})
	})

	return r
}

// CorrelationMiddleware 关联 ID 中间件：沿用调用方传入的 ID，否则生成
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(CorrelationHeader))
		if id == "" {
			id = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		c.Header(CorrelationHeader, id)
		c.Set(handler.CorrelationKey, id)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			handler.CorrelationKey, c.GetString(handler.CorrelationKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("HTTP Request", fields...)
			return
		}
		logger.Info("HTTP Request", fields...)
	}
}
