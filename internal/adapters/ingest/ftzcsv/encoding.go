package ftzcsv

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	perr "overtid/internal/platform/errors"
)

// decode probes the byte stream against the encodings the vendor export has
// been seen in: UTF-8 first, then Windows-1252 and ISO-8859-1. The two
// 8-bit codepages never fail to decode, so order matters
func decode(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", perr.InvalidInputf("empty file")
	}

	// strip a UTF-8 BOM if present
	if len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF {
		raw = raw[3:]
	}

	if utf8.Valid(raw) {
		return string(raw), nil
	}

	for _, cm := range []*charmap.Charmap{charmap.Windows1252, charmap.ISO8859_1} {
		if decoded, err := cm.NewDecoder().Bytes(raw); err == nil {
			return string(decoded), nil
		}
	}
	return "", perr.InvalidInputf("file encoding not recognized")
}
