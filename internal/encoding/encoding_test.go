package encoding

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"latex-chunker/internal/types"
)

// ============================================================
// Detection
// ============================================================

func TestDetect(t *testing.T) {
	gbkBytes, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("中文内容"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "plain ascii", data: []byte(`\section{Intro}`), want: UTF8},
		{name: "utf-8 multibyte", data: []byte("résumé 中文"), want: UTF8},
		{name: "utf-8 bom", data: []byte{0xEF, 0xBB, 0xBF, 'h', 'i'}, want: UTF8BOM},
		{name: "utf-16 little endian", data: []byte{0xFF, 0xFE, 'h', 0x00}, want: UTF16LE},
		{name: "utf-16 big endian", data: []byte{0xFE, 0xFF, 0x00, 'h'}, want: UTF16BE},
		{name: "gbk", data: gbkBytes, want: GBK},
		{name: "empty", data: nil, want: UTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.data); got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ============================================================
// Decoding
// ============================================================

func TestDecode(t *testing.T) {
	utf16Bytes, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	gbkBytes, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("中文"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		data     []byte
		encoding string
		want     string
	}{
		{name: "utf-8 passthrough", data: []byte("hello"), encoding: UTF8, want: "hello"},
		{name: "bom stripped", data: []byte{0xEF, 0xBB, 0xBF, 'h', 'i'}, encoding: UTF8BOM, want: "hi"},
		{name: "utf-16le", data: utf16Bytes, encoding: UTF16LE, want: "hello"},
		{name: "gbk", data: gbkBytes, encoding: GBK, want: "中文"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.data, tt.encoding)
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeUnsupported(t *testing.T) {
	_, err := Decode([]byte{0x80, 0x81}, Unknown)
	if err == nil {
		t.Fatal("Decode() = nil error for unknown encoding")
	}
	appErr, ok := err.(*types.AppError)
	if !ok || appErr.Code != types.ErrEncoding {
		t.Errorf("Decode() error = %v, want ENCODING_ERROR", err)
	}
}

// ============================================================
// File Reading
// ============================================================

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "doc.tex")
	content := "\\section{Introduction}\nSome text.\n"
	if err := os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, content...), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() unexpected error: %v", err)
	}
	if got != content {
		t.Errorf("ReadFile() = %q, want BOM stripped content", got)
	}
}

func TestReadFileNotFound(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.tex"))
	if err == nil {
		t.Fatal("ReadFile() = nil error for missing file")
	}
	appErr, ok := err.(*types.AppError)
	if !ok || appErr.Code != types.ErrFileNotFound {
		t.Errorf("ReadFile() error = %v, want FILE_NOT_FOUND", err)
	}
}
