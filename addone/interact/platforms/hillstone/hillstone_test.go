package hillstone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/pkg/classify"
)

func TestPrompts(t *testing.T) {
	p, err := NewSG()
	require.NoError(t, err)
	ps := p.Patterns()

	assert.False(t, ps.Enable.MatchString("hostname#"))
	for _, s := range []string{"hostname# ", "hostname# \n", "hostname# \r\n", "\r\nhostname# \r\n"} {
		assert.True(t, ps.Enable.MatchString(s), s)
		assert.True(t, ps.Union.MatchString(s), s)
	}
	assert.False(t, ps.Config.MatchString("hostname(config)#"))
	for _, s := range []string{"hostname(config)# ", "hostname(config)# \r\n", "\nhostname(config)# \n"} {
		assert.True(t, ps.Config.MatchString(s), s)
		assert.True(t, ps.Union.MatchString(s), s)
	}
	assert.False(t, ps.Union.MatchString("hostname#"))
	assert.False(t, ps.Union.MatchString("hostname(config)#"))
	assert.False(t, ps.Union.MatchString("hostname(config-policy-rule)#"))

	mode, ok := ps.Detect("configure\r\nhostname(config)# ")
	require.True(t, ok)
	assert.Equal(t, interact.ModeConfig, mode)
}

func TestErrorCatch(t *testing.T) {
	p, err := NewSG()
	require.NoError(t, err)
	ps := p.Patterns()
	for _, out := range []string{
		"\n           ^-----unrecognized keyword aa",
		"\n           ^-----incomplete command aas",
		"Error: Address as is not found",
		"Error:Start time is greater than end time!",
		"         ^-----无法识别的关键字: skdjf",
		"                   ^-----不完整的命令",
		"错误：此名称已经被其他的策略规则使用",
	} {
		_, ok := classify.DeviceError(out, ps.Errors, ps.Ignores)
		assert.True(t, ok, out)
	}
}
