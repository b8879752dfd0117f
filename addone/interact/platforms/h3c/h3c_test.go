package h3c

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/pkg/classify"
)

func TestPrompts(t *testing.T) {
	p, err := NewSecPath()
	require.NoError(t, err)
	ps := p.Patterns()

	for _, s := range []string{"\r<hostname>", "\r\n<hostname>", "<hostname> ", "<hostname> \r\n", "RBM_P<hostname>"} {
		assert.True(t, ps.Enable.MatchString(s), s)
		assert.True(t, ps.Union.MatchString(s), s)
	}
	for _, s := range []string{"[hostname]", "[hostname] \n", "\r\n[hostname] \r\n", "[hostname-vlan1]", "\r\n[hostname-vlan1] \r\n", "RBM_P[hostname]"} {
		assert.True(t, ps.Config.MatchString(s), s)
		assert.True(t, ps.Union.MatchString(s), s)
	}

	m := interact.NewMachine(p)
	_, ok := m.Observe("<hostname>")
	require.True(t, ok)
	path, err := m.Path(interact.ModeConfig)
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, "system-view", path[0].Command)
}

func TestErrorCatch(t *testing.T) {
	p, err := NewSwitch()
	require.NoError(t, err)
	ps := p.Patterns()
	for _, out := range []string{
		"     ^                 \n% Unrecognized command found at '^' position.",
		"                            ^                          % Wrong parameter found at '^' position.",
		"The rule does not exist.",
		"Object group with given name exists with different type.",
	} {
		_, ok := classify.DeviceError(out, ps.Errors, ps.Ignores)
		assert.True(t, ok, out)
	}
}
