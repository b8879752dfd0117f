package simulate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedText(d *Device, input string) string {
	var b strings.Builder
	for _, r := range d.Feed([]byte(input)) {
		b.WriteString(r.Text)
	}
	return b.String()
}

func TestBuiltinProfiles(t *testing.T) {
	keys := BuiltinKeys()
	assert.Equal(t, []string{"cisco/asa", "fortinet/fortigate", "huawei/usg", "juniper/srx"}, keys)
	for _, key := range keys {
		vendor, model, _ := strings.Cut(key, "/")
		p, err := BuiltinProfile(vendor, model)
		require.NoError(t, err, key)
		assert.Equal(t, key, p.Key())
	}
	_, err := BuiltinProfile("cisco", "nope")
	assert.Error(t, err)
}

func TestParseProfileValidation(t *testing.T) {
	_, err := ParseProfile([]byte("vendor: x\nmodel: y\nstart_mode: enable\nmodes: {}\n"))
	assert.Error(t, err)

	_, err = ParseProfile([]byte(`
vendor: x
model: y
start_mode: enable
modes:
  enable:
    prompt: "r1#"
    switch_mode_cmds:
      configure: config
`))
	assert.ErrorContains(t, err, "unknown mode")

	p, err := ParseProfile([]byte(`
vendor: x
model: y
start_mode: enable
modes:
  enable:
    prompt: "r1#"
    cmds:
      fast: "ok"
      slow:
        output: "done"
        delay_ms: 250
`))
	require.NoError(t, err)
	assert.Equal(t, "ok", p.Modes["enable"].Cmds["fast"].Text)
	assert.Equal(t, 250*time.Millisecond, p.Modes["enable"].Cmds["slow"].Delay)
	assert.Equal(t, "\r\n", p.LineFeed)
}

func TestDeviceModeSwitching(t *testing.T) {
	p, err := BuiltinProfile("cisco", "asa")
	require.NoError(t, err)
	d := NewDevice(p)

	assert.True(t, strings.HasSuffix(d.Banner(), "ciscoasa> "))
	assert.Equal(t, "login", d.Mode())

	out := feedText(d, "enable\n")
	assert.Equal(t, "enable\r\nPassword: ", out)
	// 口令不回显
	out = feedText(d, "nova\n")
	assert.Equal(t, "\r\nciscoasa# ", out)
	assert.Equal(t, "enable", d.Mode())

	out = feedText(d, "configure terminal\r\n")
	assert.Equal(t, "configure terminal\r\nciscoasa(config)# ", out)
	assert.Equal(t, "config", d.Mode())

	out = feedText(d, "end\n")
	assert.True(t, strings.HasSuffix(out, "ciscoasa# "))
	assert.Equal(t, []string{"enable", "configure terminal", "end"}, d.History())
}

func TestDeviceWrongEnablePassword(t *testing.T) {
	p, err := BuiltinProfile("cisco", "asa")
	require.NoError(t, err)
	d := NewDevice(p)
	feedText(d, "enable\n")
	out := feedText(d, "wrong\n")
	assert.Contains(t, out, "% Access denied")
	assert.Equal(t, "login", d.Mode())
}

func TestDeviceInvalidCommandAndCommon(t *testing.T) {
	p, err := BuiltinProfile("huawei", "usg")
	require.NoError(t, err)
	d := NewDevice(p)

	out := feedText(d, "display foo\n")
	assert.Contains(t, out, "Error: Unrecognized command found at '^' position.")
	assert.True(t, strings.HasSuffix(out, "<USG6000>"))

	out = feedText(d, "display version\n")
	assert.Contains(t, out, "VRP (R) software")

	feedText(d, "system-view\n")
	feedText(d, "switch vsys vsys1\n")
	assert.Equal(t, "vsys1", d.Vsys())
	assert.Equal(t, "enable", d.Mode())
}

func TestDeviceVsysPrompt(t *testing.T) {
	p, err := BuiltinProfile("fortinet", "fortigate")
	require.NoError(t, err)
	d := NewDevice(p)
	assert.Equal(t, "FGT60F (vdom) # ", strings.TrimPrefix(feedText(d, "config vdom\n"), "config vdom\r\n"))
	out := feedText(d, "edit root\n")
	assert.True(t, strings.HasSuffix(out, "FGT60F (root) # "))
	assert.Equal(t, "root", d.Vsys())
}

func TestDevicePaging(t *testing.T) {
	p, err := ParseProfile([]byte(`
vendor: x
model: y
hostname: r1
start_mode: enable
page_lines: 2
more_prompt: "--More--"
modes:
  enable:
    prompt: "{hostname}#"
    cmds:
      show long: |
        l1
        l2
        l3
`))
	require.NoError(t, err)
	d := NewDevice(p)

	out := feedText(d, "show long\n")
	assert.Equal(t, "show long\r\nl1\r\nl2\r\n--More--", out)
	out = feedText(d, " ")
	assert.Equal(t, "\r        \rl3\r\nr1#", out)
}

func TestDeviceExitAndBackspace(t *testing.T) {
	p, err := BuiltinProfile("juniper", "srx")
	require.NoError(t, err)
	d := NewDevice(p)

	out := feedText(d, "shox\bw version\n")
	assert.Contains(t, out, "Junos: 21.4R3-S1.5")

	replies := d.Feed([]byte("exit\n"))
	require.NotEmpty(t, replies)
	assert.True(t, replies[len(replies)-1].Exit)
}
