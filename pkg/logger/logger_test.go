package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFields(t *testing.T) {
	f := Fields("host", "10.0.0.1", "port", 22, "error", errors.New("boom"), "dangling")
	assert.Equal(t, "10.0.0.1", f["host"])
	assert.Equal(t, 22, f["port"])
	assert.Equal(t, "boom", f["error"])
	assert.Equal(t, "dangling", f["extra"])
}

func TestParseOutputLines(t *testing.T) {
	short := ParseOutputLines("a\r\nb\r\n", 5)
	assert.Equal(t, []string{"a", "b"}, short.HeadLines)
	assert.Equal(t, short.HeadLines, short.TailLines)
	assert.Equal(t, "head-lines: [a ⟩ b]", FormatOutputLines(short))

	long := ParseOutputLines("1\n2\n3\n4\n5", 2)
	assert.Equal(t, []string{"1", "2"}, long.HeadLines)
	assert.Equal(t, []string{"4", "5"}, long.TailLines)
	assert.Equal(t, "head-lines: [1 ⟩ 2], tail-lines: [4 ⟩ 5]", FormatOutputLines(long))

	assert.Empty(t, ParseOutputLines("", 3).HeadLines)
}

func TestInitRequiresFilePath(t *testing.T) {
	assert.Error(t, Init(Config{Level: "debug", Output: "file"}))
	assert.NoError(t, Init(Config{Level: "bogus", Output: "console"}))
	SetLevel("warn")
	assert.Equal(t, "warning", GetLogger().Level.String())
}
