package pipeline

import (
	"os"
	"path/filepath"
	"strings"
)

// Attachment is one sidecar file the archiver left next to the capture:
// screen recordings, hash lists and trusted-timestamp tokens proving when the
// capture was made.
type Attachment struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

const (
	attachmentHAR             = "har"
	attachmentHARHash         = "har_hash"
	attachmentTimestampToken  = "timestamp_token"
	attachmentScreenRecording = "screen_recording"
	attachmentHashList        = "hash_list"
	attachmentTimestampList   = "timestamp_list"
)

// inventoryAttachments classifies the session directory's sidecar files.
// locationAlias is the session's stored location; recorded paths extend it so
// they resolve like any other stored path.
func inventoryAttachments(dir, locationAlias string) ([]Attachment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Attachment
	add := func(kind, name string, size int64) {
		out = append(out, Attachment{
			Kind: kind,
			Path: locationAlias + "/" + name,
			Size: size,
		})
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			if name == "screen_recordings" {
				if rec, size, ok := largestFile(filepath.Join(dir, name)); ok {
					add(attachmentScreenRecording, name+"/"+rec, size)
				}
			}
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		switch {
		case name == harFileName:
			add(attachmentHAR, name, info.Size())
		case name == "har_hash.txt":
			add(attachmentHARHash, name, info.Size())
		case name == "screen_recording.avi":
			add(attachmentScreenRecording, name, info.Size())
		case strings.HasSuffix(name, ".tsr"):
			add(attachmentTimestampToken, name, info.Size())
		case strings.HasSuffix(name, ".txt") && strings.Contains(name, "hash"):
			add(attachmentHashList, name, info.Size())
		case strings.HasSuffix(name, ".txt") && strings.Contains(name, "timestamp"):
			add(attachmentTimestampList, name, info.Size())
		}
	}
	return out, nil
}

// largestFile returns the biggest regular file in dir. Recording directories
// hold one file per display plus tiny placeholder files.
func largestFile(dir string) (name string, size int64, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > size || !ok {
			name, size, ok = e.Name(), info.Size(), true
		}
	}
	return name, size, ok
}
