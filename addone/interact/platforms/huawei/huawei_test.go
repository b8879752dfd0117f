package huawei

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/pkg/classify"
)

func patterns(t *testing.T) *interact.PatternSet {
	t.Helper()
	p, err := NewUSG()
	require.NoError(t, err)
	return p.Patterns()
}

func TestPrompts(t *testing.T) {
	ps := patterns(t)
	assert.Nil(t, ps.Login)
	for _, s := range []string{
		"<USG6000v>", "<USG6000v>\r\n", "<USG6000v> \n", "\r<USG6000v>", "\n<USG6000v>",
		"<USG6000v-vsys>", "<USG6000v-vsys-policy-security>", "HRP_M<USG6000v>", "HRP_S<USG6000v>",
	} {
		assert.True(t, ps.Enable.MatchString(s), s)
		assert.True(t, ps.Union.MatchString(s), s)
	}
	for _, s := range []string{
		"[USG6000v]", "[USG6000v] \r\n", "\r[USG6000v]", "[USG6000v-vsys-policy-security]",
		"HRP_M[USG6000v]", "HRP_S[USG6000V2-object-address-set-test obj]",
	} {
		assert.True(t, ps.Config.MatchString(s), s)
		assert.True(t, ps.Union.MatchString(s), s)
	}
	mode, ok := ps.Detect("system-view\r\nEnter system view, return user view with Ctrl+Z.\r\nHRP_M[USG6000v]")
	require.True(t, ok)
	assert.Equal(t, interact.ModeConfig, mode)
}

func TestErrorCatch(t *testing.T) {
	ps := patterns(t)
	for _, out := range []string{
		"HRP_S<USG6000V2>s\ns\n                ^\nError:Ambiguous command found at '^' position.",
		"switch vsys vsys1\n Error: The specified virtual system does not exist.\nHRP_S[hw-usg-h-o-s-t-n-m-e]",
		" Error: The description length can not exceed 127.",
		"HRP_S[USG6000V2]ip address-set test2\nip address-set test2 (+B)\n Error: The address or address set is not created(Please specify type when create it)!",
		"HRP_S[USG6000V2-group-address-set-test]address range 10.1.1.10 10.1.1.9\naddress range 10.1.1.10 10.1.1.9 (+B)\n Error: Illegal address range!\nHRP_S[USG6000V2-group-address-set-test]",
		"invalid_cmd\n                ^\nError:Ambiguous command found at '^' position.",
	} {
		m, ok := classify.DeviceError(out, ps.Errors, ps.Ignores)
		assert.True(t, ok, out)
		assert.NotEmpty(t, m.String())
	}
}

func TestErrorIgnore(t *testing.T) {
	ps := patterns(t)
	for _, out := range []string{
		"HRP_S[USG6000V2-group-address-set-test]address 1.1.1.1 mask 32\naddress 1.1.1.1 mask 32 (+B)\n Error: Address item conflicts!",
		"HRP_S[USG6000V2-group-address-set-test]undo address 3\nundo address 3 (+B)\n Error: The address item does not exist!\nHRP_S[USG6000V2-group-address-set-test]",
		"HRP_S[USG6000V2-domain-set-test]undo add domain byntra\nundo add domain byntra (+B)\n Error: The delete configuration does not exist.\nHRP_S[USG6000V2-domain-set-test]",
		"HRP_S[USG6000V2]undo ip address-set 123\nundo ip address-set 123 (+B)\n Error: The address or address set is not created!\nHRP_S[USG6000V2]",
		"HRP_S[USG6000V2-group-service-set-svc_test]service service-set ssh\nservice service-set ssh (+B)\n Error: Cannot add! Service item conflicts or illegal reference!\nHRP_S[USG6000V2-group-service-set-svc_test]",
		"HRP_S[USG6000V2]undo time-range 123\nundo time-range 123 (+B)\n Error: No such a time-range.\nHRP_S[USG6000V2]",
		"HRP_S[USG6000V2-policy-nat]undo rule name 123\nundo rule name 123 (+B)\n Error: The specified rule does not exist yet.",
		"This condition has already been configured",
	} {
		_, ok := classify.DeviceError(out, ps.Errors, ps.Ignores)
		assert.False(t, ok, out)
	}
}

func TestVsysAndPull(t *testing.T) {
	usg, err := NewUSG()
	require.NoError(t, err)
	vsys, ok := usg.MatchVsys("switch vsys vsys1")
	require.True(t, ok)
	assert.Equal(t, "vsys1", vsys)
	assert.Equal(t, []string{"system-view", "switch vsys vsys1"}, usg.VsysCommands("vsys1"))

	ce, err := NewCE()
	require.NoError(t, err)
	_, ok = ce.MatchVsys("switch vsys vsys1")
	assert.False(t, ok)
	cmd, mode, ok := ce.PullCommand(interact.ConfigStartup)
	require.True(t, ok)
	assert.Equal(t, "display saved-configuration", cmd)
	assert.Equal(t, interact.ModeEnable, mode)
}
