package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdriver/netdriver/addone/interact/platforms"
	"github.com/netdriver/netdriver/api/handler"
	"github.com/netdriver/netdriver/api/router"
	"github.com/netdriver/netdriver/internal/config"
	"github.com/netdriver/netdriver/internal/service"
	"github.com/netdriver/netdriver/pkg/ssh"
	"github.com/netdriver/netdriver/simulate"
)

type agent struct {
	router  *gin.Engine
	host    string
	port    int
	archive string
}

// newAgent 模拟 ASA 设备 + 真实 SSH 会话池 + 完整路由
func newAgent(t *testing.T) *agent {
	t.Helper()
	profile, err := simulate.BuiltinProfile("cisco", "asa")
	require.NoError(t, err)
	srv, err := simulate.NewServer(profile, simulate.ServerOptions{Users: map[string]string{"admin": "nova"}})
	require.NoError(t, err)
	require.NoError(t, srv.Listen("127.0.0.1:0"))
	t.Cleanup(func() { _ = srv.Close() })

	host, portStr, err := net.SplitHostPort(srv.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	pool := ssh.NewPool(&ssh.PoolConfig{SSHConfig: &ssh.Config{Timeout: 5 * time.Second}})
	t.Cleanup(func() { _ = pool.Close() })

	registry := platforms.NewRegistry()
	executor := service.NewExecutor(config.EngineConfig{
		QueueSize:      16,
		MaxGroups:      4,
		DefaultTimeout: 3 * time.Second,
		CatchError:     true,
		DetailOutput:   true,
	}, registry, service.NewSSHSessionPool(pool))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = executor.Shutdown(ctx)
	})

	dir := t.TempDir()
	archive := service.NewArchiveWriter(config.StorageConfig{
		Backend: "local",
		Prefix:  "configs",
		Local:   config.LocalConfig{BaseDir: dir, MkdirIfMissing: true},
	})
	r := router.SetupRouter(gin.TestMode, router.Handlers{
		Cmd:    handler.NewCmdHandler(executor, registry, service.NewRecorder(false), archive, "local"),
		System: handler.NewSystemHandler(executor, registry, false, pool.Stats),
	})
	return &agent{router: r, host: host, port: port, archive: dir}
}

func (a *agent) body(overrides map[string]interface{}) map[string]interface{} {
	b := map[string]interface{}{
		"protocol":        "ssh",
		"ip":              a.host,
		"port":            a.port,
		"username":        "admin",
		"password":        "nova",
		"enable_password": "nova",
		"vendor":          "cisco",
		"model":           "asa",
		"version":         "9.8",
		"encode":          "utf-8",
		"vsys":            "default",
		"timeout":         3,
		"commands": []map[string]interface{}{
			{"type": "raw", "mode": "enable", "command": "show version"},
		},
	}
	for k, v := range overrides {
		b[k] = v
	}
	return b
}

func (a *agent) post(t *testing.T, path string, body interface{}, cid string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if cid != "" {
		req.Header.Set(router.CorrelationHeader, cid)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestCmdRejectsInvalidParams(t *testing.T) {
	a := newAgent(t)
	cases := []struct {
		name      string
		overrides map[string]interface{}
	}{
		{"protocol", map[string]interface{}{"protocol": "invalid"}},
		{"telnet", map[string]interface{}{"protocol": "telnet"}},
		{"ip", map[string]interface{}{"ip": "invalid"}},
		{"port", map[string]interface{}{"port": 65536}},
		{"vendor", map[string]interface{}{"vendor": "invalid"}},
		{"model", map[string]interface{}{"model": "invalid"}},
		{"vendor model combination", map[string]interface{}{"vendor": "cisco", "model": "usg"}},
		{"encode", map[string]interface{}{"encode": "invalid"}},
		{"command type", map[string]interface{}{"commands": []map[string]interface{}{{"type": "textfsm", "command": "show version"}}}},
		{"command mode", map[string]interface{}{"commands": []map[string]interface{}{{"type": "raw", "mode": "invalid", "command": "show version"}}}},
		{"empty commands", map[string]interface{}{"commands": []map[string]interface{}{}}},
		{"blank command", map[string]interface{}{"commands": []map[string]interface{}{{"type": "raw", "command": " \n "}}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w, out := a.post(t, "/api/v1/cmd", a.body(c.overrides), "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "CLIENT_PARAM_ERROR", out["code"])
		})
	}
}

func TestCmdRunsCommands(t *testing.T) {
	a := newAgent(t)
	w, out := a.post(t, "/api/v1/cmd", a.body(map[string]interface{}{
		"commands": []map[string]interface{}{
			{"type": "raw", "mode": "enable", "command": "show version"},
			{"type": "raw", "mode": "config", "command": "hostname ciscoasa\nobject network web01"},
			{"type": "raw", "mode": "login", "command": "show version"},
		},
	}), "trace-1")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "trace-1", w.Header().Get(router.CorrelationHeader))
	assert.Equal(t, "OK", out["code"])
	assert.Empty(t, out["err_msg"])
	results := out["result"].([]interface{})
	require.Len(t, results, 3)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "OK", first["ret_code"])
	assert.Contains(t, first["ret"], "Cisco Adaptive Security Appliance Software Version 9.8(4)")
	assert.Equal(t, "OK", results[1].(map[string]interface{})["ret_code"])
	assert.Contains(t, out["output"], "Hardware:   ASA5516")
}

func TestCmdReportsDeviceError(t *testing.T) {
	a := newAgent(t)
	w, out := a.post(t, "/api/v1/cmd", a.body(map[string]interface{}{
		"commands": []map[string]interface{}{
			{"type": "raw", "mode": "enable", "command": "show nothing"},
			{"type": "raw", "mode": "enable", "command": "show nothing", "catch_error": false},
		},
	}), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "DEVICE_REPORTED_ERROR", out["code"])
	assert.NotEmpty(t, out["err_msg"])
	results := out["result"].([]interface{})
	assert.Equal(t, "DEVICE_REPORTED_ERROR", results[0].(map[string]interface{})["ret_code"])
	second := results[1].(map[string]interface{})
	assert.Equal(t, "OK", second["ret_code"])
	assert.Contains(t, second["device_error"], "Invalid input detected")
}

func TestGeneratedCorrelationID(t *testing.T) {
	a := newAgent(t)
	w, _ := a.post(t, "/api/v1/cmd", a.body(map[string]interface{}{"ip": "bad"}), "")
	assert.Len(t, w.Header().Get(router.CorrelationHeader), 32)
}

func TestPullArchivesConfig(t *testing.T) {
	a := newAgent(t)
	body := a.body(map[string]interface{}{"type": "running"})
	delete(body, "commands")
	w, out := a.post(t, "/api/v1/pull", body, "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "OK", out["code"])
	assert.Contains(t, out["output"], "hostname ciscoasa")
	archive := out["archive"].(map[string]interface{})
	uri := archive["uri"].(string)
	require.True(t, strings.HasPrefix(uri, "file://"+a.archive))
	data, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
	require.NoError(t, err)
	assert.Equal(t, out["output"], string(data))
	assert.Contains(t, uri, "cisco_asa")

	body["type"] = "candidate"
	w, out = a.post(t, "/api/v1/pull", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CLIENT_PARAM_ERROR", out["code"])
}

func TestConnect(t *testing.T) {
	a := newAgent(t)
	body := a.body(nil)
	delete(body, "commands")
	w, out := a.post(t, "/api/v1/connect", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "OK", out["code"])
	assert.Equal(t, "Connection is alive", out["msg"])

	// 同一设备与用户，口令错误不能复用已认证的会话
	body["password"] = "wrong"
	w, out = a.post(t, "/api/v1/connect", body, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CONNECTION_FAILED", out["code"])

	body["username"] = "other"
	w, out = a.post(t, "/api/v1/connect", body, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CONNECTION_FAILED", out["code"])
}

func TestHealthAndStats(t *testing.T) {
	a := newAgent(t)
	for _, path := range []string{"/api/v1/health", "/api/v1/stats"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests/missing", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogEndpoints(t *testing.T) {
	a := newAgent(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "LOG_PATH_EMPTY")

	put := func(level string) int {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/log/level", strings.NewReader(`{"level":"`+level+`"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusBadRequest, put("verbose"))
	assert.Equal(t, http.StatusOK, put("WARN"))
	assert.Equal(t, http.StatusOK, put("info"))
}

func TestTailLogsFilters(t *testing.T) {
	path := t.TempDir() + "/agent.log"
	lines := []string{
		`time=1 level=info msg="Engine created" target=a`,
		`time=2 level=warn msg="Session lost" target=a`,
		`time=3 level=info msg="Idle engine reaped" target=b`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	system := handler.NewSystemHandler(nil, platforms.NewRegistry(), false, nil)
	system.SetLogPath(path)
	r := gin.New()
	r.GET("/logs", system.TailLogs)

	get := func(query string) map[string]interface{} {
		req := httptest.NewRequest(http.MethodGet, "/logs"+query, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		return out
	}

	assert.EqualValues(t, 3, get("")["count"])
	assert.EqualValues(t, 1, get("?level=warn")["count"])
	out := get("?q=engine&limit=1")
	assert.EqualValues(t, 1, out["count"])
	assert.Equal(t, lines[2], out["lines"].([]interface{})[0])
}

func TestListSnapshots(t *testing.T) {
	a := newAgent(t)
	get := func(query string) (*httptest.ResponseRecorder, map[string]interface{}) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots"+query, nil)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		return w, out
	}

	w, out := get("?ip=not-an-ip")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CLIENT_PARAM_ERROR", out["code"])

	w, out = get("?ip=192.0.2.10")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, out["snapshots"])
}
