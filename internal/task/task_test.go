package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdriver/netdriver/addone/interact"
)

func TestNewCmdTaskDefaults(t *testing.T) {
	tk := NewCmdTask("  show version \n", CmdOptions{})
	assert.Equal(t, "show version", tk.Command())
	assert.Equal(t, interact.ModeUnion, tk.Mode())
	assert.Equal(t, interact.DefaultVsys, tk.Vsys())
	assert.Equal(t, DefaultTimeout, tk.Timeout())
	assert.True(t, tk.CatchError())
	assert.True(t, tk.DetailOutput())
	assert.NotEmpty(t, tk.ID())
	assert.Equal(t, KindCmd, tk.Kind())

	tk = NewCmdTask("display version", CmdOptions{
		Options:      Options{Vsys: "vsys1", Timeout: time.Second, CatchError: Bool(false)},
		Mode:         interact.ModeConfig,
		DetailOutput: Bool(false),
	})
	assert.Equal(t, "vsys1", tk.Vsys())
	assert.False(t, tk.CatchError())
	assert.False(t, tk.DetailOutput())
	assert.Equal(t, "[display version|vsys1|config|1s]", tk.String())

	pt := NewPullTask("", Options{})
	assert.Equal(t, interact.ConfigRunning, pt.ConfigType())
	assert.Equal(t, KindPull, pt.Kind())
}

func TestResultTiming(t *testing.T) {
	tk := NewCmdTask("show clock", CmdOptions{})
	tk.MarkEnqueued()
	time.Sleep(5 * time.Millisecond)
	tk.MarkDequeued()
	tk.MarkExecStart()
	time.Sleep(5 * time.Millisecond)
	require.True(t, tk.Fulfill(Outcome{Output: "10:00"}))

	r, err := tk.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10:00", r.Output)
	assert.NoError(t, r.Exception)
	assert.GreaterOrEqual(t, r.QueueTime, 5*time.Millisecond)
	assert.GreaterOrEqual(t, r.ExecTime, 5*time.Millisecond)
	assert.Equal(t, r.QueueTime+r.ExecTime, r.TotalTime())
}

func TestCancelBeforeDispatch(t *testing.T) {
	tk := NewCmdTask("show clock", CmdOptions{})
	tk.MarkEnqueued()
	require.True(t, tk.Cancel())
	assert.True(t, tk.IsDone())
	assert.False(t, tk.Fulfill(Outcome{Output: "late"}), "fulfill after cancel is ignored")

	r, err := tk.Result(context.Background())
	require.NoError(t, err)
	assert.Zero(t, r.QueueTime)
	assert.Zero(t, r.ExecTime)
	assert.Empty(t, r.Output)
	assert.True(t, IsErrorCode(r.Exception, ErrCodeCancelled))
}

func TestCancelAfterDequeueBeforeExec(t *testing.T) {
	tk := NewPullTask(interact.ConfigStartup, Options{})
	tk.MarkEnqueued()
	tk.MarkDequeued()
	require.True(t, tk.Cancel())
	r, err := tk.Result(context.Background())
	require.NoError(t, err)
	assert.Zero(t, r.ExecTime)
}

func TestCancelAfterFulfillIsNoop(t *testing.T) {
	tk := NewCmdTask("show clock", CmdOptions{})
	require.True(t, tk.Fulfill(Outcome{Output: "ok"}))
	assert.False(t, tk.Cancel())
	r, err := tk.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", r.Output)
	assert.NoError(t, r.Exception)
}

func TestResultHonorsContext(t *testing.T) {
	tk := NewCmdTask("show clock", CmdOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := tk.Result(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, tk.IsDone())
}

func TestErrors(t *testing.T) {
	err := CommandTimeoutError("show run", errors.New("read timeout"))
	assert.True(t, errors.Is(err, ErrCommandTimeout))
	assert.False(t, errors.Is(err, ErrSessionLost))
	assert.Equal(t, ErrCodeCommandTimeout, CodeOf(err))
	assert.Contains(t, err.Error(), "read timeout")

	wrapped := fmtWrap(QueueSaturatedError(64))
	assert.True(t, errors.Is(wrapped, ErrQueueSaturated))
	te, ok := GetError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 64, te.Details["capacity"])

	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("submit"), err)
}
