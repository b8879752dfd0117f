package handler

import (
	"bufio"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/netdriver/netdriver/internal/task"
	"github.com/netdriver/netdriver/pkg/logger"
)

const (
	defaultTailLines = 200
	maxTailLines     = 1000
)

// LogLevelRequest 运行时日志级别调整
type LogLevelRequest struct {
	Level string `json:"level" binding:"required"`
}

// SetLogPath 设置日志文件路径；为空时 /logs 返回 LOG_PATH_EMPTY
func (h *SystemHandler) SetLogPath(path string) { h.logPath = strings.TrimSpace(path) }

// SetLogLevel 调整日志级别（仅运行时生效，配置文件变更后会被覆盖）
// @Router /api/v1/log/level [put]
func (h *SystemHandler) SetLogLevel(c *gin.Context) {
	var req LogLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(req.Level)))
	if err != nil {
		abortWithError(c, task.ClientParamError("invalid log level %q", req.Level))
		return
	}
	logger.SetLevel(lvl.String())
	logger.Info("Log level updated", "level", lvl.String())
	c.JSON(http.StatusOK, gin.H{"code": CodeOK, "level": lvl.String()})
}

// TailLogs 返回日志文件末尾 N 行，支持关键字与级别过滤
// @Router /api/v1/logs [get]
func (h *SystemHandler) TailLogs(c *gin.Context) {
	if h.logPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "LOG_PATH_EMPTY", "msg": "log file is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultTailLines)))
	if limit <= 0 || limit > maxTailLines {
		limit = defaultTailLines
	}
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	lvl := strings.ToLower(strings.TrimSpace(c.Query("level")))

	lines, err := readAllLines(h.logPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "READ_FAILED", "msg": err.Error()})
		return
	}

	filtered := make([]string, 0, len(lines))
	for _, ln := range lines {
		lc := strings.ToLower(ln)
		if q != "" && !strings.Contains(lc, q) {
			continue
		}
		// json 与 text 两种格式
		if lvl != "" && !strings.Contains(lc, `"level":"`+lvl+`"`) && !strings.Contains(lc, "level="+lvl) {
			continue
		}
		filtered = append(filtered, ln)
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	c.JSON(http.StatusOK, gin.H{
		"code":  CodeOK,
		"path":  h.logPath,
		"count": len(filtered),
		"lines": filtered,
	})
}

func readAllLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	res := make([]string, 0, 256)
	for s.Scan() {
		res = append(res, s.Text())
	}
	return res, s.Err()
}
