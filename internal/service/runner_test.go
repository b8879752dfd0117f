package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdriver/netdriver/addone/interact/platforms/cisco"
	"github.com/netdriver/netdriver/addone/interact/platforms/huawei"
)

func TestShape(t *testing.T) {
	ios, err := cisco.NewIOS()
	require.NoError(t, err)
	ps := ios.Patterns()

	cases := []struct {
		name, raw, cmd, want string
	}{
		{"echo and prompt", "show clock\r\n08:15:02 UTC\r\nr1#", "show clock", "08:15:02 UTC"},
		{"empty output", "hostname r1\r\nr1(config)#", "hostname r1", ""},
		{"trailing blank lines", "show x\r\na\r\n\r\n\r\nr1#", "show x", "a"},
		{"pager erased", "show int\r\nl1\r\n --More-- \r          \rl2\r\nr1#", "show int", "l1\nl2"},
		{"ansi", "show int\r\n\x1b[32mup\x1b[0m\r\nr1#", "show int", "up"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, shape(c.raw, c.cmd, ps))
		})
	}
}

func TestShapeHuaweiPagerResidue(t *testing.T) {
	usg, err := huawei.NewUSG()
	require.NoError(t, err)
	raw := "display cur\r\nline1\r\n  ---- More ----\x1b[16D                \x1b[16Dline2\r\n<USG>"
	assert.Equal(t, "line1\nline2", shape(raw, "display cur", usg.Patterns()))
}

func TestSameVsys(t *testing.T) {
	assert.True(t, sameVsys("", "default"))
	assert.True(t, sameVsys(" ctx1", "ctx1"))
	assert.False(t, sameVsys("ctx1", "default"))
}
