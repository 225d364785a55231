package structures

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"github.com/openvault/archivist/internal/har"
)

// fromHTML scans a server-rendered document for
// <script type="application/json"> blocks and pulls typed payloads out of
// them by root-key keyword. A block that fails to parse is skipped; later
// blocks overwrite earlier matches of the same kind.
func fromHTML(e *har.Entry) (*Page, error) {
	body, err := e.Body()
	if err != nil || len(body) == 0 {
		return nil, err
	}
	blocks, err := jsonScriptBlocks(body)
	if err != nil {
		return nil, err
	}

	p := &Page{}
	for _, block := range blocks {
		var data any
		if err := json.Unmarshal([]byte(block), &data); err != nil {
			continue
		}
		for _, m := range findByKeyword(data, keyShortcodeInfo) {
			var v ItemList
			if reDecode(m, &v) == nil && len(v.Items) > 0 {
				p.Posts = &v
			}
		}
		for _, m := range findByKeyword(data, keyProfileTimeline) {
			var v ItemList
			if reDecode(m, &v) == nil && len(v.Items) > 0 {
				p.Timeline = &v
			}
		}
		for _, m := range findByKeyword(data, keyReelsConnection) {
			var v ReelsConnection
			if reDecode(m, &v) == nil && len(v.Edges) > 0 {
				p.HighlightReels = &v
			}
		}
		// keyReelsConnection contains keyReelsMedia as a prefix, so the
		// story-feed scan also hits connection payloads; require the
		// reels_media list to tell them apart.
		for _, m := range findByKeyword(data, keyReelsMedia) {
			if _, ok := m["reels_media"]; !ok {
				continue
			}
			var v StoriesFeed
			if reDecode(m, &v) == nil && len(v.ReelsMedia) > 0 {
				p.Stories = &v
			}
		}
		for _, m := range findByKeyword(data, keyComments) {
			var v Comments
			if reDecode(m, &v) == nil {
				p.Comments = &v
			}
		}
	}
	if p.empty() {
		return nil, nil
	}
	return p, nil
}

// jsonScriptBlocks returns the text content of every
// <script type="application/json"> element in the document.
func jsonScriptBlocks(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && attrVal(n, "type") == "application/json" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			if s := strings.TrimSpace(sb.String()); s != "" {
				blocks = append(blocks, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return blocks, nil
}

func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// findByKeyword walks the decoded value depth-first and collects every
// object stored under a key that contains the keyword.
func findByKeyword(v any, keyword string) []map[string]any {
	var matches []map[string]any
	var search func(any)
	search = func(o any) {
		switch t := o.(type) {
		case map[string]any:
			for k, val := range t {
				if strings.Contains(k, keyword) {
					if m, ok := val.(map[string]any); ok {
						matches = append(matches, m)
					}
				}
				search(val)
			}
		case []any:
			for _, item := range t {
				search(item)
			}
		}
	}
	search(v)
	return matches
}

func reDecode(m map[string]any, dst any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
