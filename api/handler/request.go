package handler

import (
	"net"
	"strings"
	"time"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/internal/service"
	"github.com/netdriver/netdriver/internal/task"
	"github.com/netdriver/netdriver/internal/util"
)

// 命令类型，仅支持原始命令
const commandTypeRaw = "raw"

// DeviceRequest 设备连接参数
type DeviceRequest struct {
	Protocol       string  `json:"protocol"`
	IP             string  `json:"ip"`
	Port           int     `json:"port"`
	Username       string  `json:"username"`
	Password       string  `json:"password"`
	EnablePassword string  `json:"enable_password"`
	Vendor         string  `json:"vendor"`
	Model          string  `json:"model"`
	Version        string  `json:"version"`
	Encode         string  `json:"encode"`
	Vsys           string  `json:"vsys"`
	Timeout        float64 `json:"timeout"` // 秒，单条命令的超时
}

// CommandItem 单条命令；command 含多行时逐行执行，结果合并为一项
type CommandItem struct {
	Type         string `json:"type"`
	Mode         string `json:"mode"`
	Command      string `json:"command"`
	CatchError   *bool  `json:"catch_error"`
	DetailOutput *bool  `json:"detail_output"`
}

// CmdRequest 命令执行请求
type CmdRequest struct {
	DeviceRequest
	Commands []CommandItem `json:"commands"`
}

// PullRequest 配置拉取请求
type PullRequest struct {
	DeviceRequest
	Type string `json:"type"`
}

// validate 校验连接参数并转换为设备身份
func (r *DeviceRequest) validate(registry *interact.Registry) (service.Target, error) {
	protocol := strings.ToLower(strings.TrimSpace(r.Protocol))
	switch protocol {
	case "", "ssh":
		protocol = "ssh"
	case "telnet":
		return service.Target{}, task.ClientParamError("protocol telnet is unsupported")
	default:
		return service.Target{}, task.ClientParamError("invalid protocol %q", r.Protocol)
	}
	if net.ParseIP(strings.TrimSpace(r.IP)) == nil {
		return service.Target{}, task.ClientParamError("invalid ip %q", r.IP)
	}
	port := r.Port
	if port == 0 {
		port = 22
	}
	if port < 1 || port > 65535 {
		return service.Target{}, task.ClientParamError("invalid port %d", r.Port)
	}
	if strings.TrimSpace(r.Username) == "" {
		return service.Target{}, task.ClientParamError("username is required")
	}
	if !registry.HasVendor(r.Vendor) {
		return service.Target{}, task.ClientParamError("unsupported vendor %q", r.Vendor)
	}
	if !registry.HasModel(r.Model) {
		return service.Target{}, task.ClientParamError("unsupported model %q", r.Model)
	}
	if !util.ValidEncoding(r.Encode) {
		return service.Target{}, task.ClientParamError("unsupported encode %q", r.Encode)
	}
	if r.Timeout < 0 {
		return service.Target{}, task.ClientParamError("invalid timeout %v", r.Timeout)
	}
	return service.Target{
		Protocol:       protocol,
		Host:           strings.TrimSpace(r.IP),
		Port:           port,
		Username:       strings.TrimSpace(r.Username),
		Password:       r.Password,
		EnablePassword: r.EnablePassword,
		Vendor:         strings.ToLower(strings.TrimSpace(r.Vendor)),
		Model:          strings.ToLower(strings.TrimSpace(r.Model)),
		Version:        strings.TrimSpace(r.Version),
		Encoding:       util.NormalizeEncoding(r.Encode),
	}, nil
}

// options 任务公共参数；未指定超时使用默认值
func (r *DeviceRequest) options(defaultTimeout time.Duration, catchError *bool) task.Options {
	timeout := defaultTimeout
	if r.Timeout > 0 {
		timeout = time.Duration(r.Timeout * float64(time.Second))
	}
	return task.Options{Vsys: r.Vsys, Timeout: timeout, CatchError: catchError}
}

// plannedItem 一个请求项拆分出的任务
type plannedItem struct {
	command string
	mode    interact.Mode
	tasks   []task.Task
}

// plan 校验命令列表并生成任务，顺序即执行顺序
func (r *CmdRequest) plan(defaultTimeout time.Duration, catchError, detailOutput bool) ([]plannedItem, error) {
	if len(r.Commands) == 0 {
		return nil, task.ClientParamError("commands is required")
	}
	items := make([]plannedItem, 0, len(r.Commands))
	for i, c := range r.Commands {
		typ := strings.ToLower(strings.TrimSpace(c.Type))
		if typ != "" && typ != commandTypeRaw {
			return nil, task.ClientParamError("commands[%d]: unsupported type %q", i, c.Type)
		}
		mode, err := interact.ParseMode(c.Mode)
		if err != nil {
			return nil, task.ClientParamError("commands[%d]: %v", i, err)
		}
		lines := splitCommand(c.Command)
		if len(lines) == 0 {
			return nil, task.ClientParamError("commands[%d]: command is required", i)
		}

		catch := catchError
		if c.CatchError != nil {
			catch = *c.CatchError
		}
		detail := detailOutput
		if c.DetailOutput != nil {
			detail = *c.DetailOutput
		}
		item := plannedItem{command: c.Command, mode: mode}
		for _, line := range lines {
			item.tasks = append(item.tasks, task.NewCmdTask(line, task.CmdOptions{
				Options:      r.options(defaultTimeout, task.Bool(catch)),
				Mode:         mode,
				DetailOutput: task.Bool(detail),
			}))
		}
		items = append(items, item)
	}
	return items, nil
}

func splitCommand(command string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(command, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (r *PullRequest) configType() (interact.ConfigType, error) {
	ct, err := interact.ParseConfigType(r.Type)
	if err != nil {
		return "", task.ClientParamError("%v", err)
	}
	return ct, nil
}

func seconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
