// Package encoding detects source file encodings and normalizes input to
// UTF-8 before parsing. LaTeX sources in the wild arrive as UTF-8 with or
// without a BOM, UTF-16 in either byte order, or GBK.
package encoding

import (
	"bytes"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"latex-chunker/internal/logger"
	"latex-chunker/internal/types"
)

// Encoding names returned by Detect.
const (
	UTF8    = "UTF-8"
	UTF8BOM = "UTF-8-BOM"
	UTF16LE = "UTF-16LE"
	UTF16BE = "UTF-16BE"
	GBK     = "GBK"
	Unknown = "UNKNOWN"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Detect identifies the encoding of raw file bytes: BOM markers first, then
// UTF-8 validity, then a GBK round-trip check.
func Detect(data []byte) string {
	if len(data) >= 3 && bytes.Equal(data[:3], utf8BOM) {
		return UTF8BOM
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		return UTF16LE
	}
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return UTF16BE
	}
	if utf8.Valid(data) {
		return UTF8
	}
	if isValidGBK(data) {
		return GBK
	}
	return Unknown
}

func isValidGBK(data []byte) bool {
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return false
	}
	return utf8.Valid(decoded)
}

// Decode converts raw bytes of a detected encoding to a UTF-8 string
// without a BOM.
func Decode(data []byte, encoding string) (string, error) {
	switch encoding {
	case UTF8:
		return string(data), nil
	case UTF8BOM:
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	case UTF16LE:
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", types.NewAppError(types.ErrEncoding, "failed to decode UTF-16LE", err)
		}
		return string(decoded), nil
	case UTF16BE:
		decoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", types.NewAppError(types.ErrEncoding, "failed to decode UTF-16BE", err)
		}
		return string(decoded), nil
	case GBK:
		decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
		if err != nil {
			return "", types.NewAppError(types.ErrEncoding, "failed to decode GBK", err)
		}
		return string(decoded), nil
	default:
		return "", types.NewAppErrorWithDetails(types.ErrEncoding, "unsupported encoding", encoding, nil)
	}
}

// ReadFile reads a LaTeX source file and returns its content as UTF-8,
// converting from the detected encoding when needed.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", types.NewAppErrorWithDetails(types.ErrFileNotFound, "input file not found", path, err)
		}
		return "", types.NewAppError(types.ErrInvalidInput, "failed to read input file", err)
	}

	detected := Detect(data)
	if detected != UTF8 {
		logger.Info("converting input encoding",
			logger.String("path", path),
			logger.String("encoding", detected))
	}

	content, err := Decode(data, detected)
	if err != nil {
		return "", err
	}
	return content, nil
}
