package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePassThrough(t *testing.T) {
	inputs := []string{
		"",
		"display version",
		"line one\nline two\n",
		"Huawei Versatile Routing Platform Software\n  VRP (R) software, Version 5.170\n<USG6000v>",
	}
	for _, in := range inputs {
		assert.Equal(t, in, Normalize(in))
	}
}

func TestNormalizeCRLF(t *testing.T) {
	assert.Equal(t, "a\nb\nc", Normalize("a\r\nb\r\nc"))
	assert.Equal(t, "a\n", Normalize("a\r\n"))
}

func TestNormalizeProgressiveRedraw(t *testing.T) {
	final := "hostname(config)#"
	var b strings.Builder
	for i := 1; i <= len(final); i++ {
		b.WriteString("\r")
		b.WriteString(final[:i])
	}
	b.WriteString("\r\n")

	out := Normalize(b.String())
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, 1)
	assert.Equal(t, final, lines[0])
}

func TestNormalizeCarriageReturnOverwritesWithoutClearing(t *testing.T) {
	// 较短的重绘不会清除旧行尾
	assert.Equal(t, "abcdef", Normalize("xyzdef\rabc"))
	assert.Equal(t, "12345\nnext", Normalize("abcde\r12345\r\nnext"))
}

func TestNormalizeBackspace(t *testing.T) {
	assert.Equal(t, "aXY", Normalize("abc\b\bXY"))
	assert.Equal(t, "ab ", Normalize("abc\b \b"))
	// 行首退格不越界
	assert.Equal(t, "x", Normalize("\b\bx"))
}

func TestNormalizePagerResidue(t *testing.T) {
	raw := "line1\r\n  ---- More ----" + strings.Repeat("\b", 16) + "                " + strings.Repeat("\b", 16) + "line2\r\n<USG>"
	out := Normalize(raw)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "line1", lines[0])
	assert.Equal(t, "line2", strings.TrimSpace(lines[1]))
	assert.Equal(t, "<USG>", lines[2])
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "plain", StripANSI("plain"))
	assert.Equal(t, "red", StripANSI("\x1b[31mred\x1b[0m"))
	assert.Equal(t, "ab\b\bcd", StripANSI("ab\x1b[2Dcd"))
	assert.Equal(t, "a\bb", StripANSI("a\x1b[Db"))
	assert.Equal(t, "line", StripANSI("line\x1b[K"))

	raw := "  ---- More ----\x1b[16D                \x1b[16Dnext line"
	assert.Equal(t, "next line", strings.TrimSpace(Normalize(StripANSI(raw))))
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "hostname# ", LastLine("show clock\r\n10:00\r\nhostname# \r\n"))
	assert.Equal(t, "<USG6000v>", LastLine("<USG6000v>"))
	assert.Equal(t, "", LastLine(""))
	assert.Equal(t, "\rhostname>", LastLine("banner\n\rhostname>"))
}
