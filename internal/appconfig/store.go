package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrInvalidDay rejects maintenance day values that are not weekday names.
var ErrInvalidDay = errors.New("invalid maintenance day")

// Store persists the feature-config document as a single JSON file.
// Reads load the file fresh every time so admin edits are visible
// immediately; updates serialize behind the mutex and land via an atomic
// rename, so a reader can never observe a half-written document.
type Store struct {
	path string
	mu   sync.Mutex

	now func() time.Time
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
		now:  time.Now,
	}
}

// Read returns the persisted document, or the default document if the file
// is missing or unparseable. The file is never repaired here. The result
// carries the live current weekday for client display.
func (s *Store) Read() Document {
	doc := s.load()
	doc.CurrentDay = s.now().Weekday().String()
	return doc
}

// Update merges a partial document onto the persisted one and writes the
// result back atomically. Fields absent from the partial keep their stored
// value; an explicit null maintenance day clears the schedule.
func (s *Store) Update(partial Partial) (Document, error) {
	if partial.MaintenanceDay.Present && partial.MaintenanceDay.Value != nil {
		if !ValidWeekday(*partial.MaintenanceDay.Value) {
			return Document{}, fmt.Errorf("%w: %q", ErrInvalidDay, *partial.MaintenanceDay.Value)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()

	if partial.Version != nil {
		doc.Version = *partial.Version
	}
	if partial.Features != nil {
		doc.Features = partial.Features.Apply(doc.Features)
	}
	if partial.VideoResolutions != nil {
		doc.VideoResolutions = partial.VideoResolutions.Apply(doc.VideoResolutions)
	}
	if partial.AudioQualities != nil {
		doc.AudioQualities = partial.AudioQualities.Apply(doc.AudioQualities)
	}
	if partial.MaintenanceDay.Present {
		doc.MaintenanceDay = partial.MaintenanceDay.Value
	}

	if err := s.write(doc); err != nil {
		return Document{}, err
	}

	doc.CurrentDay = s.now().Weekday().String()
	return doc, nil
}

// load returns the best available current document, falling back to
// defaults when the file cannot be read or parsed.
func (s *Store) load() Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return DefaultDocument()
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return DefaultDocument()
	}

	doc.CurrentDay = "" // never trust a persisted copy of a derived field
	return doc
}

// write lands the document via temp file + rename so concurrent readers
// only ever see a complete document.
func (s *Store) write(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".app-config-*.json")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), s.path)
}
