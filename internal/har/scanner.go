package har

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/openvault/archivist/internal/model"
)

// Scanner streams entries out of a HAR file. It walks the JSON token stream
// down to log.entries and decodes one entry per Next call, so memory use is
// bounded by the largest single entry rather than the capture size.
type Scanner struct {
	f       *os.File
	dec     *json.Decoder
	done    bool
	skipped int
}

// Open positions a Scanner at the first element of log.entries.
func Open(path string) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	s := &Scanner{f: f, dec: json.NewDecoder(f)}
	if err := s.seekEntries(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// seekEntries consumes tokens until the decoder sits inside the
// log.entries array. Sibling values of "log" and "entries" are skipped
// whole via RawMessage decodes.
func (s *Scanner) seekEntries() error {
	if err := s.expectDelim('{'); err != nil {
		return err
	}
	if err := s.seekKey("log"); err != nil {
		return err
	}
	if err := s.expectDelim('{'); err != nil {
		return err
	}
	if err := s.seekKey("entries"); err != nil {
		return err
	}
	return s.expectDelim('[')
}

func (s *Scanner) expectDelim(d json.Delim) error {
	tok, err := s.dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrBadArchive, err)
	}
	if got, ok := tok.(json.Delim); !ok || got != d {
		return fmt.Errorf("%w: expected %q, got %v", model.ErrBadArchive, d, tok)
	}
	return nil
}

func (s *Scanner) seekKey(key string) error {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", model.ErrBadArchive, err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: missing %q", model.ErrBadArchive, key)
		}
		if name == key {
			return nil
		}
		var skip json.RawMessage
		if err := s.dec.Decode(&skip); err != nil {
			return fmt.Errorf("%w: %v", model.ErrBadArchive, err)
		}
	}
}

// Next returns the next entry, or io.EOF once the array is exhausted.
// Entries that fail to decode are counted and skipped rather than aborting
// the whole capture.
func (s *Scanner) Next() (*Entry, error) {
	if s.done {
		return nil, io.EOF
	}
	for s.dec.More() {
		var raw json.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadArchive, err)
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			s.skipped++
			continue
		}
		return &e, nil
	}
	s.done = true
	return nil, io.EOF
}

// Skipped reports how many entries failed to decode so far.
func (s *Scanner) Skipped() int { return s.skipped }

// Close releases the underlying file.
func (s *Scanner) Close() error { return s.f.Close() }
