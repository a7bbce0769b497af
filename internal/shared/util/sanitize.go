package util

import (
	"errors"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFileNameBytes bounds stored evidence file names.
const MaxFileNameBytes = 200

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName turns an uploaded evidence name into a single flat path
// element. Names with a ".." element are rejected; separators become "_",
// control characters are dropped and long names keep their extension.
func SanitizeFileName(name string) (string, error) {
	for _, elem := range strings.FieldsFunc(name, isSeparator) {
		if strings.TrimSpace(elem) == ".." {
			return "", ErrInvalidFileName
		}
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case isSeparator(r):
			return '_'
		case unicode.IsControl(r), r == utf8.RuneError:
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return "", ErrInvalidFileName
	}
	return truncateName(s, MaxFileNameBytes), nil
}

func isSeparator(r rune) bool { return r == '/' || r == '\\' }

func truncateName(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	ext := path.Ext(s)
	if len(ext) >= limit/2 {
		ext = ""
	}
	base := s[:limit-len(ext)]
	for !utf8.ValidString(base) {
		base = base[:len(base)-1]
	}
	return base + ext
}
