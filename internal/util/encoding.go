package util

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// EncodingAuto 按常见编码自动探测
const EncodingAuto = "auto"

var namedEncodings = map[string]encoding.Encoding{
	"gbk":        simplifiedchinese.GBK,
	"gb2312":     simplifiedchinese.HZGB2312,
	"gb18030":    simplifiedchinese.GB18030,
	"big5":       traditionalchinese.Big5,
	"latin1":     charmap.ISO8859_1,
	"iso-8859-1": charmap.ISO8859_1,
	"cp1252":     charmap.Windows1252,
}

// NormalizeEncoding 规范化编码名称，空串视为 utf-8
func NormalizeEncoding(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "utf8", "utf-8":
		return "utf-8"
	}
	return n
}

// ValidEncoding 是否为支持的设备编码
func ValidEncoding(name string) bool {
	n := NormalizeEncoding(name)
	if n == "utf-8" || n == EncodingAuto {
		return true
	}
	_, ok := namedEncodings[n]
	return ok
}

// Decode 按设备声明的编码将输出解码为 UTF-8
func Decode(b []byte, name string) (string, error) {
	n := NormalizeEncoding(name)
	switch n {
	case "utf-8":
		return string(b), nil
	case EncodingAuto:
		return EnsureUTF8Bytes(b), nil
	}
	enc, ok := namedEncodings[n]
	if !ok {
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(b), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", n, err)
	}
	return string(out), nil
}

// Encode 将命令按设备编码转换后写入
func Encode(s string, name string) ([]byte, error) {
	n := NormalizeEncoding(name)
	if n == "utf-8" || n == EncodingAuto {
		return []byte(s), nil
	}
	enc, ok := namedEncodings[n]
	if !ok {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), []byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", n, err)
	}
	return out, nil
}

// EnsureUTF8Bytes 非 UTF-8 字节依次尝试常见编码解码，全部失败时原样返回
func EnsureUTF8Bytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return string(b)
	}
	encs := []encoding.Encoding{
		simplifiedchinese.GB18030,
		simplifiedchinese.GBK,
		traditionalchinese.Big5,
		charmap.Windows1252,
		charmap.ISO8859_1,
	}
	for _, enc := range encs {
		if s, ok := tryDecode(enc, b); ok {
			return s
		}
	}
	return string(b)
}

func tryDecode(enc encoding.Encoding, b []byte) (string, bool) {
	reader := transform.NewReader(bytes.NewReader(b), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", false
	}
	if utf8.Valid(decoded) {
		return string(decoded), true
	}
	return "", false
}
