package topsec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/pkg/classify"
)

func TestNGFW(t *testing.T) {
	p, err := NewNGFW()
	require.NoError(t, err)
	ps := p.Patterns()

	for _, s := range []string{
		"hostname#", "hostname# ", "hostname# \r\n", "\r\nhostname# \r\n",
		"hostname%", "hostname% \n", "\r\nhostname% \r\n",
	} {
		assert.True(t, ps.Enable.MatchString(s), s)
		assert.True(t, ps.Union.MatchString(s), s)
	}
	assert.False(t, ps.Supports(interact.ModeConfig))

	_, ok := classify.DeviceError("error-8010: invalid input, parse error", ps.Errors, ps.Ignores)
	assert.True(t, ok)
	_, ok = classify.DeviceError("network route add dst 0.0.0.0/0 gw 192.0.2.1", ps.Errors, ps.Ignores)
	assert.False(t, ok)
}
