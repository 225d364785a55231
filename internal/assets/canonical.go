// Package assets reconstructs the photo and video files a capture carries:
// photos from base64 response bodies, videos from byte-range segments stitched
// back together and muxed with an external transcoder.
package assets

import "strings"

// CDN host every asset URL is normalized onto.
const canonicalCDNHost = "https://scontent.cdninstagram.com/v/"

// CanonicalURL normalizes an asset URL to a stable form: the query string is
// dropped and only the last path segment (the CDN filename) is kept. The same
// underlying file is served from many hosts with varying signatures, so this
// is the join key between extracted files and mapped entities.
func CanonicalURL(u string) string {
	base, _, _ := strings.Cut(u, "?")
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	return canonicalCDNHost + base
}

// FilenameStem returns the CDN filename with the ".mp4" suffix and anything
// after it removed.
func FilenameStem(u string) string {
	base, _, _ := strings.Cut(u, ".mp4")
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	return base
}
