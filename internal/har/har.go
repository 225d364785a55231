// Package har reads browser-captured HTTP Archive (HAR) files without
// loading the whole capture into memory. Captures of long browsing sessions
// routinely exceed a gigabyte, so entries are streamed one at a time.
package har

import (
	"encoding/base64"
	"strings"
)

// Header is one request or response header.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PostData carries the request body of an entry, if any.
type PostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Request is the request half of a capture entry.
type Request struct {
	Method   string    `json:"method"`
	URL      string    `json:"url"`
	Headers  []Header  `json:"headers"`
	PostData *PostData `json:"postData,omitempty"`
}

// Content is the recorded response body.
type Content struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
	Encoding string `json:"encoding,omitempty"`
}

// Response is the response half of a capture entry.
type Response struct {
	Status   int      `json:"status"`
	Headers  []Header `json:"headers"`
	Content  Content  `json:"content"`
	BodySize int64    `json:"bodySize"`
}

// Entry is one captured request/response exchange.
type Entry struct {
	StartedDateTime string   `json:"startedDateTime"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
}

// Body returns the decoded response body. HAR stores binary bodies as
// base64 text with an explicit encoding marker.
func (e *Entry) Body() ([]byte, error) {
	if e.Response.Content.Encoding == "base64" {
		return base64.StdEncoding.DecodeString(e.Response.Content.Text)
	}
	return []byte(e.Response.Content.Text), nil
}

// RequestHeader returns the first request header with the given name,
// compared case-insensitively, or "" when absent.
func (e *Entry) RequestHeader(name string) string {
	for _, h := range e.Request.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// IsJSON reports whether the response body is declared as JSON.
func (e *Entry) IsJSON() bool {
	return strings.Contains(e.Response.Content.MimeType, "json")
}

// IsHTML reports whether the response body is declared as HTML.
func (e *Entry) IsHTML() bool {
	return strings.Contains(e.Response.Content.MimeType, "html")
}
