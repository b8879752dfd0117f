package maipu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/pkg/classify"
)

func TestPrompts(t *testing.T) {
	p, err := NewNSS()
	require.NoError(t, err)
	ps := p.Patterns()

	for _, s := range []string{"\rhostname>", "\r\nhostname>", "hostname> ", "hostname> \r\n"} {
		assert.True(t, ps.Login.MatchString(s), s)
		assert.True(t, ps.Union.MatchString(s), s)
	}
	assert.False(t, ps.Login.MatchString("<not_hostname>"))

	for _, s := range []string{"hostname#", "hostname# \n", "\r\nhostname# \r\n"} {
		assert.True(t, ps.Enable.MatchString(s), s)
		assert.True(t, ps.Union.MatchString(s), s)
	}
	assert.False(t, ps.Enable.MatchString("###"))

	for _, s := range []string{"hostname(config)#", "\r\nhostname(config)# \r\n", "hostname(config-vlan-1)#", "hostname(config-acl-test)#"} {
		assert.True(t, ps.Config.MatchString(s), s)
		assert.True(t, ps.Union.MatchString(s), s)
	}

	m := interact.NewMachine(p)
	_, ok := m.Observe("hostname>")
	require.True(t, ok)
	path, err := m.Path(interact.ModeConfig)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, "enable", path[0].Command)
	assert.Equal(t, "configure terminal", path[1].Command)
}

func TestErrorCatch(t *testing.T) {
	p, err := NewNSS()
	require.NoError(t, err)
	ps := p.Patterns()
	_, ok := classify.DeviceError("% Invalid input", ps.Errors, ps.Ignores)
	assert.True(t, ok)
	_, ok = classify.DeviceError("Routing entry for 10.0.0.0/8", ps.Errors, ps.Ignores)
	assert.False(t, ok)
}
