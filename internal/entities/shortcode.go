// Package entities maps decoded capture structures onto the normalized
// account/post/media model.
package entities

import (
	"fmt"
	"strings"
)

// The platform's URL-safe base-64 alphabet. Ordering matters: it is not the
// standard base64 table.
const shortcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// Shortcode encodes a numeric media id into its URL shortcode, big-endian
// base 64. Zero encodes to the empty string.
func Shortcode(mediaID int64) string {
	if mediaID <= 0 {
		return ""
	}
	var b [11]byte
	i := len(b)
	for mediaID > 0 {
		i--
		b[i] = shortcodeAlphabet[mediaID%64]
		mediaID /= 64
	}
	return string(b[i:])
}

// MediaID decodes a URL shortcode back into the numeric media id.
func MediaID(shortcode string) (int64, error) {
	var id int64
	for _, r := range shortcode {
		idx := strings.IndexRune(shortcodeAlphabet, r)
		if idx < 0 {
			return 0, fmt.Errorf("invalid shortcode character %q", r)
		}
		id = id*64 + int64(idx)
	}
	return id, nil
}
