package session

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

var urlSafeToStd = strings.NewReplacer("-", "+", "_", "/")

// Base64URLEncode encodes s as unpadded URL-safe base64.
func Base64URLEncode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// Base64URLDecode reverses Base64URLEncode. Padding is optional on input and
// the decoded bytes must be valid UTF-8.
func Base64URLDecode(s string) (string, error) {
	std := urlSafeToStd.Replace(s)
	if rem := len(std) % 4; rem != 0 {
		std += strings.Repeat("=", 4-rem)
	}
	raw, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("payload is not valid utf-8")
	}
	return string(raw), nil
}
