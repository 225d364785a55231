package model

import (
	"encoding/json"
	"time"
)

// MediaKind enumerates the supported media classifications.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// EntityKind names an addressable entity type for sharing and annotation.
type EntityKind string

const (
	KindSession   EntityKind = "archiving_session"
	KindAccount   EntityKind = "account"
	KindPost      EntityKind = "post"
	KindMedia     EntityKind = "media"
	KindMediaPart EntityKind = "media_part"
)

// Identity is the pair of keys that identify one logical entity across
// observations: a canonical URL, a platform-assigned id, or both.
type Identity struct {
	URL        string  `json:"url"`
	PlatformID *string `json:"idOnPlatform,omitempty"`
}

// Account is one observed or canonical profile.
// A zero SessionID means the row lives in the canonical table.
type Account struct {
	ID          int64          `json:"id"`
	CreateDate  time.Time      `json:"createDate"`
	UpdateDate  time.Time      `json:"updateDate"`
	PlatformID  *string        `json:"idOnPlatform,omitempty"`
	URL         string         `json:"url"`
	DisplayName *string        `json:"displayName,omitempty"`
	Bio         *string        `json:"bio,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Notes       *string        `json:"notes,omitempty"`

	SessionID   int64 `json:"archiveSessionId,omitempty"`
	CanonicalID int64 `json:"canonicalId,omitempty"`
}

func (a *Account) Identity() Identity { return Identity{URL: a.URL, PlatformID: a.PlatformID} }

// Post is one observed or canonical publication.
type Post struct {
	ID              int64          `json:"id"`
	CreateDate      time.Time      `json:"createDate"`
	UpdateDate      time.Time      `json:"updateDate"`
	PlatformID      *string        `json:"idOnPlatform,omitempty"`
	URL             string         `json:"url"`
	AccountID       *int64         `json:"accountId,omitempty"`
	AccountURL      *string        `json:"accountUrl,omitempty"`
	AccountPlatform *string        `json:"accountIdOnPlatform,omitempty"`
	PublicationDate *time.Time     `json:"publicationDate,omitempty"`
	Caption         *string        `json:"caption,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	Notes           *string        `json:"notes,omitempty"`

	SessionID   int64 `json:"archiveSessionId,omitempty"`
	CanonicalID int64 `json:"canonicalId,omitempty"`
}

func (p *Post) Identity() Identity { return Identity{URL: p.URL, PlatformID: p.PlatformID} }

// Media is one observed or canonical asset. LocalPath, when set, names an
// existing non-empty file under the archives root. ThumbnailPath is either a
// path under the thumbnails root or an "error: …" sentinel marking a
// generation failure that should not be retried.
type Media struct {
	ID            int64          `json:"id"`
	CreateDate    time.Time      `json:"createDate"`
	UpdateDate    time.Time      `json:"updateDate"`
	PlatformID    *string        `json:"idOnPlatform,omitempty"`
	URL           string         `json:"url"`
	PostID        *int64         `json:"postId,omitempty"`
	PostURL       *string        `json:"postUrl,omitempty"`
	PostPlatform  *string        `json:"postIdOnPlatform,omitempty"`
	LocalPath     *string        `json:"localUrl,omitempty"`
	Kind          MediaKind      `json:"mediaType"`
	Data          map[string]any `json:"data,omitempty"`
	ThumbnailPath *string        `json:"thumbnailPath,omitempty"`
	Notes         *string        `json:"notes,omitempty"`

	SessionID   int64 `json:"archiveSessionId,omitempty"`
	CanonicalID int64 `json:"canonicalId,omitempty"`
}

func (m *Media) Identity() Identity { return Identity{URL: m.URL, PlatformID: m.PlatformID} }

// ThumbnailFailed reports whether the thumbnail column carries the negative
// cache sentinel rather than a file path.
func (m *Media) ThumbnailFailed() bool {
	return m.ThumbnailPath != nil && len(*m.ThumbnailPath) >= 6 && (*m.ThumbnailPath)[:6] == "error:"
}

// MediaPart is a user-defined excerpt of one media asset: a time range for
// videos, a crop rectangle for images, or both.
type MediaPart struct {
	ID         int64      `json:"id"`
	CreateDate time.Time  `json:"createDate"`
	UpdateDate time.Time  `json:"updateDate"`
	MediaID    int64      `json:"mediaId"`
	RangeStart *float64   `json:"timestampRangeStart,omitempty"`
	RangeEnd   *float64   `json:"timestampRangeEnd,omitempty"`
	CropArea   []float64  `json:"cropArea,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// SourceTypeHAR marks sessions ingested from local HAR archive directories.
const SourceTypeHAR = 1

// ArchiveSession is the unit of ingestion. Stage markers hold the algorithm
// version that produced the stage output and are set only on success;
// failures land in ExtractionError instead.
type ArchiveSession struct {
	ID              int64           `json:"id"`
	CreateDate      time.Time       `json:"createDate"`
	UpdateDate      time.Time       `json:"updateDate"`
	ExternalID      string          `json:"externalId"`
	ArchivedURL     *string         `json:"archivedUrl,omitempty"`
	Location        string          `json:"archiveLocation"`
	ParseVersion    *int            `json:"parsedContent,omitempty"`
	ExtractVersion  *int            `json:"extractedEntities,omitempty"`
	Structures      json.RawMessage `json:"structures,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	Attachments     json.RawMessage `json:"attachments,omitempty"`
	ArchivingTime   *time.Time      `json:"archivingTimestamp,omitempty"`
	ExtractionError *string         `json:"extractionError,omitempty"`
	SourceType      int             `json:"sourceType"`
	Notes           *string         `json:"notes,omitempty"`
}

// User is a browsing-platform operator account.
type User struct {
	ID            int64      `json:"id"`
	CreateDate    time.Time  `json:"createDate"`
	UpdateDate    time.Time  `json:"updateDate"`
	Email         string     `json:"email"`
	PasswordHash  *string    `json:"-"`
	PasswordAlg   *string    `json:"-"`
	Locked        bool       `json:"locked"`
	Admin         bool       `json:"admin"`
	LoginAttempts int        `json:"loginAttempts"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
}

// AuthToken is an opaque session token. Expiry is measured from LastUse.
type AuthToken struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"userId"`
	Token    string    `json:"token"`
	Created  time.Time `json:"createDate"`
	LastUse  time.Time `json:"lastUse"`
}

// ShareLink grants sessionless read access to one entity subtree.
type ShareLink struct {
	ID        int64      `json:"id"`
	Created   time.Time  `json:"createDate"`
	CreatedBy int64      `json:"createdByUserId"`
	Entity    EntityKind `json:"entity"`
	EntityID  int64      `json:"entityId"`
	Valid     bool       `json:"valid"`
	Suffix    string     `json:"linkSuffix"`
}

// Tag and TagType are user-managed labels attachable to any entity.
type Tag struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	TagTypeID   *int64  `json:"tagTypeId,omitempty"`
}

type TagType struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// TagWithType is a tag joined with its type for autocomplete responses.
type TagWithType struct {
	Tag
	TagTypeName        *string `json:"tagTypeName,omitempty"`
	TagTypeDescription *string `json:"tagTypeDescription,omitempty"`
}

// Annotation replaces the notes and tag set of one entity.
type Annotation struct {
	Notes *string `json:"notes,omitempty"`
	Tags  []int64 `json:"tags,omitempty"`
}

// Event is one audit-log record (logins, unauthorized access, stage errors).
type Event struct {
	ID      int64     `json:"id"`
	Created time.Time `json:"createDate"`
	Type    string    `json:"eventType"`
	UserID  *int64    `json:"userId,omitempty"`
	Details string    `json:"details"`
	Args    *string   `json:"args,omitempty"`
}
