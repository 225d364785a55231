// Package reconcile merges a newly observed entity into a previously stored
// one. The rules favor retained knowledge: an existing non-empty scalar wins,
// lists grow by deduplicated union, maps merge per key recursively. Merging
// is pure; callers persist the result.
package reconcile

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/openvault/archivist/internal/model"
)

// IsEmpty reports whether a value carries no information: nil, empty or
// blank string, empty list or map.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// Scalar keeps existing when it is non-empty, otherwise incoming.
func Scalar(existing, incoming any) any {
	if IsEmpty(existing) && IsEmpty(incoming) {
		return nil
	}
	if IsEmpty(existing) {
		return incoming
	}
	return existing
}

// StringPtr merges optional strings with scalar semantics.
func StringPtr(existing, incoming *string) *string {
	if existing != nil && strings.TrimSpace(*existing) != "" {
		return existing
	}
	if incoming != nil && strings.TrimSpace(*incoming) != "" {
		return incoming
	}
	return nil
}

// TimePtr merges optional times with scalar semantics.
func TimePtr(existing, incoming *time.Time) *time.Time {
	if existing != nil && !existing.IsZero() {
		return existing
	}
	if incoming != nil && !incoming.IsZero() {
		return incoming
	}
	return nil
}

// Lists unions two lists preserving order of first appearance. Elements are
// deduplicated by their stable JSON serialization; unserializable elements
// are treated as unique.
func Lists(existing, incoming []any) []any {
	if existing == nil && incoming == nil {
		return nil
	}
	if existing == nil {
		return incoming
	}
	if incoming == nil {
		return existing
	}
	seen := map[string]bool{}
	var out []any
	for _, item := range append(append([]any{}, existing...), incoming...) {
		// encoding/json sorts map keys, so equal values share one key
		key, err := json.Marshal(item)
		if err != nil {
			out = append(out, item)
			continue
		}
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		out = append(out, item)
	}
	return out
}

// Maps merges two maps per key: nested lists union, nested maps merge
// recursively, everything else follows scalar precedence.
func Maps(existing, incoming map[string]any) map[string]any {
	if existing == nil && incoming == nil {
		return map[string]any{}
	}
	if existing == nil {
		return incoming
	}
	if incoming == nil {
		return existing
	}
	out := make(map[string]any, len(existing))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		cur, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		switch curT := cur.(type) {
		case []any:
			if vT, ok := v.([]any); ok {
				out[k] = Lists(curT, vT)
				continue
			}
		case map[string]any:
			if vT, ok := v.(map[string]any); ok {
				out[k] = Maps(curT, vT)
				continue
			}
		}
		out[k] = Scalar(cur, v)
	}
	return out
}

// Account folds incoming into existing. When existing is nil the incoming
// entity is returned unchanged.
func Account(incoming model.Account, existing *model.Account) model.Account {
	if existing == nil {
		return incoming
	}
	merged := *existing
	merged.PlatformID = StringPtr(existing.PlatformID, incoming.PlatformID)
	merged.DisplayName = StringPtr(existing.DisplayName, incoming.DisplayName)
	merged.Bio = StringPtr(existing.Bio, incoming.Bio)
	merged.Data = Maps(existing.Data, incoming.Data)
	merged.Notes = StringPtr(existing.Notes, incoming.Notes)
	return merged
}

// Post folds incoming into existing.
func Post(incoming model.Post, existing *model.Post) model.Post {
	if existing == nil {
		return incoming
	}
	merged := *existing
	merged.PlatformID = StringPtr(existing.PlatformID, incoming.PlatformID)
	merged.AccountURL = StringPtr(existing.AccountURL, incoming.AccountURL)
	merged.AccountPlatform = StringPtr(existing.AccountPlatform, incoming.AccountPlatform)
	merged.PublicationDate = TimePtr(existing.PublicationDate, incoming.PublicationDate)
	merged.Caption = StringPtr(existing.Caption, incoming.Caption)
	merged.Data = Maps(existing.Data, incoming.Data)
	merged.Notes = StringPtr(existing.Notes, incoming.Notes)
	return merged
}

// Media folds incoming into existing.
func Media(incoming model.Media, existing *model.Media) model.Media {
	if existing == nil {
		return incoming
	}
	merged := *existing
	merged.PlatformID = StringPtr(existing.PlatformID, incoming.PlatformID)
	merged.PostURL = StringPtr(existing.PostURL, incoming.PostURL)
	merged.PostPlatform = StringPtr(existing.PostPlatform, incoming.PostPlatform)
	merged.LocalPath = StringPtr(existing.LocalPath, incoming.LocalPath)
	if merged.Kind == "" {
		merged.Kind = incoming.Kind
	}
	merged.Data = Maps(existing.Data, incoming.Data)
	merged.Notes = StringPtr(existing.Notes, incoming.Notes)
	return merged
}
