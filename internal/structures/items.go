// Package structures decodes the platform-specific JSON payloads a capture
// carries into typed structures: GraphQL query responses, typed api/v1
// responses and JSON blocks embedded in server-rendered HTML.
package structures

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ID is a platform identifier that arrives as either a JSON string or a
// number depending on the endpoint.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Int64 parses the identifier as a decimal integer.
func (id ID) Int64() (int64, error) {
	return strconv.ParseInt(string(id), 10, 64)
}

// Caption arrives either as an object with a text field or, in some embedded
// payloads, as a bare string.
type Caption struct {
	Text      string `json:"text"`
	PK        ID     `json:"pk"`
	CreatedAt int64  `json:"created_at"`
}

func (c *Caption) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &c.Text)
	}
	type alias Caption
	return json.Unmarshal(b, (*alias)(c))
}

// Candidate is one rendition of an image.
type Candidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ImageVersions lists the renditions of an image, best first.
type ImageVersions struct {
	Candidates []Candidate `json:"candidates"`
}

// VideoVersion is one rendition of a video.
type VideoVersion struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Type   int    `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// User identifies the author of an item or a listed profile. Raw keeps the
// complete decoded object for the account data blob.
type User struct {
	PK       ID     `json:"pk"`
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`

	Raw map[string]any `json:"-"`
}

func (u *User) UnmarshalJSON(b []byte) error {
	type alias User
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if err := json.Unmarshal(b, &a.Raw); err != nil {
		return err
	}
	*u = User(a)
	return nil
}

// Item is the shared shape of a publication across every payload variant:
// timeline posts, single posts, stories, highlight reels, clips and carousel
// children all carry this subset. Raw keeps the complete decoded object for
// the entity data blobs.
type Item struct {
	PK            ID             `json:"pk"`
	ID            string         `json:"id"`
	Code          string         `json:"code"`
	TakenAt       int64          `json:"taken_at"`
	MediaType     int            `json:"media_type"`
	Caption       *Caption       `json:"caption"`
	ImageVersions *ImageVersions `json:"image_versions2"`
	VideoVersions []VideoVersion `json:"video_versions"`
	CarouselMedia []Item         `json:"carousel_media"`
	User          *User          `json:"user"`
	Owner         *User          `json:"owner"`

	Raw map[string]any `json:"-"`
}

func (it *Item) UnmarshalJSON(b []byte) error {
	type alias Item
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if err := json.Unmarshal(b, &a.Raw); err != nil {
		return err
	}
	*it = Item(a)
	return nil
}

// IsVideo reports whether the item carries at least one video rendition.
func (it *Item) IsVideo() bool { return len(it.VideoVersions) > 0 }

// BestURL returns the item's primary asset URL: the first video rendition
// when present, otherwise the first image candidate, otherwise "".
func (it *Item) BestURL() string {
	if len(it.VideoVersions) > 0 {
		return it.VideoVersions[0].URL
	}
	if it.ImageVersions != nil && len(it.ImageVersions.Candidates) > 0 {
		return it.ImageVersions.Candidates[0].URL
	}
	return ""
}

// Author returns whichever of user and owner is present, preferring owner.
func (it *Item) Author() *User {
	if it.Owner != nil && it.Owner.Username != "" {
		return it.Owner
	}
	return it.User
}

// CaptionText returns the caption text or "".
func (it *Item) CaptionText() string {
	if it.Caption == nil {
		return ""
	}
	return it.Caption.Text
}
