package structures

import "encoding/json"

// ItemEdge and Connection model cursor-paginated item lists
// (profile timelines).
type ItemEdge struct {
	Node Item `json:"node"`
}

type Connection struct {
	Edges []ItemEdge `json:"edges"`
}

// ItemList models flat item containers (single posts, media info,
// server-rendered timelines).
type ItemList struct {
	Items []Item `json:"items"`
}

// UserList models flat profile lists (suggested users, followers, likers).
type UserList struct {
	Users []User `json:"users"`
}

// Reel is a titled run of items belonging to one profile: a highlight reel
// or a story tray entry.
type Reel struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
	User  *User  `json:"user"`
	Items []Item `json:"items"`
}

type ReelEdge struct {
	Node Reel `json:"node"`
}

// ReelsConnection models cursor-paginated reel lists (highlights pages).
type ReelsConnection struct {
	Edges []ReelEdge `json:"edges"`
}

// StoriesFeed is the standalone story tray payload.
type StoriesFeed struct {
	ReelsMedia []Reel `json:"reels_media"`
}

// ClipsEdge wraps clip items one level deeper than timeline edges do.
type ClipsEdge struct {
	Node struct {
		Media Item `json:"media"`
	} `json:"node"`
}

type ClipsConnection struct {
	Edges []ClipsEdge `json:"edges"`
}

// Comments keeps a comment thread payload verbatim. Comments are browsed
// from the session record, not mapped to entities.
type Comments struct {
	Count int             `json:"comment_count"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

func (c *Comments) UnmarshalJSON(b []byte) error {
	type alias struct {
		Count int `json:"comment_count"`
	}
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	c.Count = a.Count
	c.Raw = append(c.Raw[:0], b...)
	return nil
}

func (c Comments) MarshalJSON() ([]byte, error) {
	if len(c.Raw) == 0 {
		return []byte("null"), nil
	}
	return c.Raw, nil
}
