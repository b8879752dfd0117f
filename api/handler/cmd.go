package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/internal/model"
	"github.com/netdriver/netdriver/internal/service"
	"github.com/netdriver/netdriver/internal/task"
	"github.com/netdriver/netdriver/pkg/logger"
)

// CorrelationKey gin 上下文中的关联 ID
const CorrelationKey = "correlation_id"

// CmdHandler 设备命令与配置拉取接口
type CmdHandler struct {
	executor *service.Executor
	registry *interact.Registry
	recorder *service.Recorder
	archive  service.ArchiveWriter
	backend  string
}

// NewCmdHandler 创建处理器；archive 为空时拉取的配置不归档
func NewCmdHandler(executor *service.Executor, registry *interact.Registry, recorder *service.Recorder, archive service.ArchiveWriter, backend string) *CmdHandler {
	return &CmdHandler{
		executor: executor,
		registry: registry,
		recorder: recorder,
		archive:  archive,
		backend:  backend,
	}
}

// Cmd 执行命令
// @Summary 在设备上按顺序执行命令
// @Tags cmd
// @Accept json
// @Produce json
// @Param request body CmdRequest true "命令请求"
// @Success 200 {object} CmdResponse
// @Failure 400 {object} ErrorResponse "CLIENT_PARAM_ERROR"
// @Failure 429 {object} ErrorResponse "QUEUE_SATURATED"
// @Router /api/v1/cmd [post]
func (h *CmdHandler) Cmd(c *gin.Context) {
	start := time.Now()
	cid := c.GetString(CorrelationKey)

	var req CmdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	target, err := req.validate(h.registry)
	if err != nil {
		logger.Warn("Invalid cmd request", CorrelationKey, cid, "error", err)
		abortWithError(c, err)
		return
	}
	cfg := h.executor.Config()
	items, err := req.plan(cfg.DefaultTimeout, cfg.CatchError, cfg.DetailOutput)
	if err != nil {
		logger.Warn("Invalid cmd request", CorrelationKey, cid, "error", err)
		abortWithError(c, err)
		return
	}

	var tasks []task.Task
	for _, it := range items {
		tasks = append(tasks, it.tasks...)
	}
	handles, err := h.executor.Submit(target, tasks...)
	if err != nil {
		logger.Warn("Cmd request rejected", CorrelationKey, cid, "target", target.String(), "error", err)
		abortWithError(c, err)
		return
	}
	logger.Info("Cmd request accepted", CorrelationKey, cid, "target", target.String(),
		"vsys", req.Vsys, "commands", len(tasks))

	results, err := waitAll(c.Request.Context(), handles)
	if err != nil {
		logger.Warn("Cmd request aborted", CorrelationKey, cid, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "REQUEST_ABORTED", Msg: err.Error()})
		return
	}

	resp := CmdResponse{Code: CodeOK, Msg: "success", Result: make([]CommandResult, 0, len(items))}
	var records []service.CommandRecord
	var outputs []string
	next := 0
	for _, it := range items {
		rs := results[next : next+len(it.tasks)]
		next += len(it.tasks)
		cr := merge(it, rs)
		resp.Result = append(resp.Result, cr)
		if cr.Ret != "" {
			outputs = append(outputs, cr.Ret)
		}
		if cr.RetCode != CodeOK && resp.ErrMsg == "" {
			resp.Code = cr.RetCode
			resp.Msg = "command failed"
			resp.ErrMsg = cr.ErrMsg
		}
		for i, r := range rs {
			records = append(records, service.CommandRecord{Command: it.tasks[i].(*task.CmdTask).Command(), Mode: string(it.mode), Result: r})
		}
	}
	resp.Output = strings.Join(outputs, "\n")
	resp.Time = seconds(time.Since(start))

	rec := requestRecord(model.RequestKindCmd, cid, target, req.Vsys, start)
	if err := h.recorder.SaveRequest(rec, records); err != nil {
		logger.Error("Save request failed", CorrelationKey, cid, "error", err)
	}
	resp.RequestID = rec.ID
	logger.Info("Cmd request finished", CorrelationKey, cid, "code", resp.Code, "time", resp.Time)
	c.JSON(http.StatusOK, resp)
}

// merge 合并多行命令项的结果：输出按行拼接，首个错误作为该项的结果码
func merge(it plannedItem, rs []task.Result) CommandResult {
	cr := CommandResult{Command: it.command, Mode: string(it.mode), RetCode: CodeOK}
	var outs []string
	for _, r := range rs {
		if r.Output != "" {
			outs = append(outs, r.Output)
		}
		cr.QueueTime += seconds(r.QueueTime)
		cr.ExecTime += seconds(r.ExecTime)
		if cr.DeviceError == "" {
			cr.DeviceError = r.DeviceError
		}
		if r.Exception != nil && cr.RetCode == CodeOK {
			cr.RetCode = service.RetCode(r.Exception)
			cr.ErrMsg = errorMessage(r.Exception)
		}
	}
	cr.Ret = strings.Join(outs, "\n")
	return cr
}

func errorMessage(err error) string {
	if te, ok := task.GetError(err); ok {
		if te.Cause != nil {
			return te.Message + ": " + te.Cause.Error()
		}
		return te.Message
	}
	return err.Error()
}

// Pull 拉取设备配置并归档
// @Summary 拉取设备配置
// @Tags cmd
// @Accept json
// @Produce json
// @Param request body PullRequest true "拉取请求"
// @Success 200 {object} PullResponse
// @Failure 400 {object} ErrorResponse "CLIENT_PARAM_ERROR"
// @Router /api/v1/pull [post]
func (h *CmdHandler) Pull(c *gin.Context) {
	start := time.Now()
	cid := c.GetString(CorrelationKey)

	var req PullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	target, err := req.validate(h.registry)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ct, err := req.configType()
	if err != nil {
		abortWithError(c, err)
		return
	}
	pull := task.NewPullTask(ct, req.options(h.executor.Config().DefaultTimeout, task.Bool(true)))
	handles, err := h.executor.Submit(target, pull)
	if err != nil {
		logger.Warn("Pull request rejected", CorrelationKey, cid, "target", target.String(), "error", err)
		abortWithError(c, err)
		return
	}
	results, err := waitAll(c.Request.Context(), handles)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "REQUEST_ABORTED", Msg: err.Error()})
		return
	}
	r := results[0]

	rec := requestRecord(model.RequestKindPull, cid, target, req.Vsys, start)
	if err := h.recorder.SaveRequest(rec, []service.CommandRecord{{Command: "pull " + string(ct), Result: r}}); err != nil {
		logger.Error("Save request failed", CorrelationKey, cid, "error", err)
	}

	resp := PullResponse{Code: CodeOK, Msg: "success", RequestID: rec.ID, Type: string(ct), Output: r.Output}
	if r.Exception != nil {
		resp.Code = service.RetCode(r.Exception)
		resp.Msg = "pull failed"
		resp.ErrMsg = errorMessage(r.Exception)
	} else if h.archive != nil {
		obj, err := h.archive.Write(c.Request.Context(), service.ArchiveMeta{
			Vendor:     target.Vendor,
			Model:      target.Model,
			DeviceIP:   target.Host,
			Vsys:       pull.Vsys(),
			ConfigType: string(ct),
			RequestID:  rec.ID,
			Backend:    h.backend,
			Time:       start,
		}, r.Output)
		if err != nil {
			logger.Error("Archive config failed", CorrelationKey, cid, "target", target.String(), "error", err)
			resp.ErrMsg = "archive failed: " + err.Error()
		} else {
			resp.Archive = &ArchiveInfo{URI: obj.URI, Size: obj.Size, Checksum: obj.Checksum}
			snap := &model.ConfigSnapshot{
				RequestID:  rec.ID,
				DeviceIP:   target.Host,
				Vsys:       pull.Vsys(),
				ConfigType: string(ct),
				Backend:    h.backend,
				URI:        obj.URI,
				Size:       obj.Size,
				Checksum:   obj.Checksum,
			}
			if err := h.recorder.SaveSnapshot(snap); err != nil {
				logger.Error("Save snapshot failed", CorrelationKey, cid, "error", err)
			}
		}
	}
	resp.Time = seconds(time.Since(start))
	c.JSON(http.StatusOK, resp)
}

// Connect 检查设备连通性，建立（或复用）会话
// @Router /api/v1/connect [post]
func (h *CmdHandler) Connect(c *gin.Context) {
	start := time.Now()
	var req DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	target, err := req.validate(h.registry)
	if err != nil {
		abortWithError(c, err)
		return
	}
	probe := task.NewProbeTask(req.options(h.executor.Config().DefaultTimeout, nil))
	handles, err := h.executor.Submit(target, probe)
	if err != nil {
		abortWithError(c, err)
		return
	}
	results, err := waitAll(c.Request.Context(), handles)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "REQUEST_ABORTED", Msg: err.Error()})
		return
	}
	r := results[0]
	if r.Exception != nil {
		c.JSON(http.StatusOK, gin.H{
			"code":    service.RetCode(r.Exception),
			"msg":     "Connection is not available",
			"err_msg": errorMessage(r.Exception),
			"time":    seconds(time.Since(start)),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    CodeOK,
		"msg":     "Connection is alive",
		"err_msg": "",
		"mode":    r.Output,
		"time":    seconds(time.Since(start)),
	})
}

// GetRequest 查询已执行请求的记录
// @Router /api/v1/requests/{id} [get]
func (h *CmdHandler) GetRequest(c *gin.Context) {
	req, logs, err := h.recorder.Request(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Msg: "request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL_ERROR", Msg: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": CodeOK, "request": req, "commands": logs})
}

// ListSnapshots 查询设备最近的配置快照
// @Router /api/v1/snapshots [get]
func (h *CmdHandler) ListSnapshots(c *gin.Context) {
	ip := strings.TrimSpace(c.Query("ip"))
	if net.ParseIP(ip) == nil {
		abortWithError(c, task.ClientParamError("invalid ip %q", ip))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	snaps, err := h.recorder.Snapshots(ip, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL_ERROR", Msg: err.Error()})
		return
	}
	if snaps == nil {
		snaps = []model.ConfigSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"code": CodeOK, "snapshots": snaps})
}

// waitAll 等待全部结果；客户端断开时取消尚未执行的任务
func waitAll(ctx context.Context, handles []task.Handle) ([]task.Result, error) {
	results, err := service.Wait(ctx, handles)
	if err != nil {
		for _, h := range handles {
			h.Cancel()
		}
		return nil, err
	}
	return results, nil
}

func requestRecord(kind, cid string, t service.Target, vsys string, start time.Time) *model.Request {
	if strings.TrimSpace(vsys) == "" {
		vsys = interact.DefaultVsys
	}
	return &model.Request{
		ID:            uuid.NewString(),
		CorrelationID: cid,
		Kind:          kind,
		Protocol:      t.Protocol,
		DeviceIP:      t.Host,
		DevicePort:    t.Port,
		Username:      t.Username,
		Vendor:        t.Vendor,
		Model:         t.Model,
		Version:       t.Version,
		Vsys:          vsys,
		StartTime:     start,
	}
}
