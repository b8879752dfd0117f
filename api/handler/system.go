package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/internal/database"
	"github.com/netdriver/netdriver/internal/service"
)

// SystemHandler 健康检查与运行统计
type SystemHandler struct {
	executor  *service.Executor
	registry  *interact.Registry
	dbEnabled bool
	poolStats func() map[string]interface{}
	started   time.Time
	logPath   string
}

// NewSystemHandler 创建处理器；poolStats 可为空
func NewSystemHandler(executor *service.Executor, registry *interact.Registry, dbEnabled bool, poolStats func() map[string]interface{}) *SystemHandler {
	return &SystemHandler{
		executor:  executor,
		registry:  registry,
		dbEnabled: dbEnabled,
		poolStats: poolStats,
		started:   time.Now(),
	}
}

// Health 健康检查
// @Router /api/v1/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	dbStatus := "disabled"
	if h.dbEnabled {
		dbStatus = "ok"
		if err := database.Health(); err != nil {
			dbStatus = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":    status,
		"database":  dbStatus,
		"plugins":   len(h.registry.Keys()),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"timestamp": time.Now().Unix(),
	})
}

// Stats 引擎、会话池与数据库统计
// @Router /api/v1/stats [get]
func (h *SystemHandler) Stats(c *gin.Context) {
	data := gin.H{
		"engines": h.executor.Stats(),
		"plugins": h.registry.Keys(),
	}
	if h.poolStats != nil {
		data["pool"] = h.poolStats()
	}
	if h.dbEnabled {
		data["database"] = database.GetStats()
	}
	c.JSON(http.StatusOK, gin.H{"code": CodeOK, "data": data})
}
