package classify

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, exprs ...string) []*regexp.Regexp {
	t.Helper()
	res, err := Compile(exprs)
	require.NoError(t, err)
	return res
}

func TestDeviceErrorMatches(t *testing.T) {
	errs := mustCompile(t, `(?m)^Error: .+$`)
	m, ok := DeviceError("[USG]ip address-set a\r\nError: Address item conflicts!\r\n[USG]", errs, nil)
	require.True(t, ok)
	assert.Equal(t, "Error: Address item conflicts!\r", m.Text)
	assert.Equal(t, "Error: Address item conflicts!", m.String())
}

func TestDeviceErrorSuppressedByIgnore(t *testing.T) {
	errs := mustCompile(t, `(?m)^Error: .+$`)
	ignores := mustCompile(t, `Address item conflicts!`)
	_, ok := DeviceError("Error: Address item conflicts!", errs, ignores)
	assert.False(t, ok)
}

func TestDeviceErrorIgnoreContinuesWithNextPattern(t *testing.T) {
	errs := mustCompile(t, `does not exist`, `(?m)^Error: .+$`)
	ignores := mustCompile(t, `does not exist`)
	// 忽略表达式作用于整个输出，命中后后续错误同样被抑制
	_, ok := DeviceError("Error: The object does not exist", errs, ignores)
	assert.False(t, ok)

	errs = mustCompile(t, `not found`, `(?m)^% .+$`)
	ignores = mustCompile(t, `^never$`)
	m, ok := DeviceError("% Invalid input", errs, ignores)
	require.True(t, ok)
	assert.Equal(t, "% Invalid input", m.Text)
}

func TestDeviceErrorListOrderWins(t *testing.T) {
	errs := mustCompile(t, `second problem`, `first problem`)
	m, ok := DeviceError("first problem\nsecond problem", errs, nil)
	require.True(t, ok)
	assert.Equal(t, "second problem", m.Text)
}

func TestDeviceErrorCaretFallback(t *testing.T) {
	errs := []*regexp.Regexp{CaretPattern}
	for _, out := range []string{
		"show date ?\n\n         ^\n",
		"show date ?\n\r\n         ^\r\n",
		"                  ^\nunknown command.",
	} {
		m, ok := DeviceError(out, errs, nil)
		require.True(t, ok, out)
		assert.Equal(t, "^", m.String())
	}

	_, ok := DeviceError("% Invalid command at '^' marker.", errs, nil)
	assert.False(t, ok)
}

func TestCaretPatternNeedsBareLine(t *testing.T) {
	errs := []*regexp.Regexp{CaretPattern}
	for _, out := range []string{
		"x ^\n",
		"banner motd ^\r\n",
		"regex ^[0-9]+$ ^\n",
		"access-list 10 permit any\nend ^",
	} {
		_, ok := DeviceError(out, errs, nil)
		assert.False(t, ok, out)
	}

	m, ok := DeviceError("x ^\n   ^\n", errs, nil)
	require.True(t, ok)
	assert.Equal(t, "^", m.String())
	assert.Equal(t, "   ^", m.Line)
}

func TestDeviceErrorNoMatch(t *testing.T) {
	errs := mustCompile(t, `(?m)^Error: .+$`)
	_, ok := DeviceError("", errs, nil)
	assert.False(t, ok)
	_, ok = DeviceError("display version\nVRP (R) software", errs, nil)
	assert.False(t, ok)
}

func TestCompileRejectsInvalid(t *testing.T) {
	_, err := Compile([]string{`ok`, `(unclosed`})
	assert.Error(t, err)
}
