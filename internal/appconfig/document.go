package appconfig

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Feature toggle names understood by the mobile client.
const (
	FeatureDownloader  = "downloader"
	FeatureImageSearch = "image_search"
)

// Document is the runtime feature configuration served to clients and
// edited by admins. CurrentDay is derived at read time and never persisted;
// clients compare it against MaintenanceDay.
type Document struct {
	Version          string    `json:"version"`
	Features         StringSet `json:"features"`
	VideoResolutions StringSet `json:"video_resolutions"`
	AudioQualities   StringSet `json:"audio_qualities"`
	MaintenanceDay   *string   `json:"maintenance_day"`
	CurrentDay       string    `json:"current_day,omitempty"`
}

// DefaultDocument is served whenever the persisted document is missing or
// unreadable: every feature on, full quality sets, no maintenance day.
func DefaultDocument() Document {
	return Document{
		Version:          "1.0.0",
		Features:         StringSet{FeatureDownloader, FeatureImageSearch},
		VideoResolutions: StringSet{"1080p", "360p", "480p", "720p"},
		AudioQualities:   StringSet{"128kbps"},
	}
}

// HasFeature reports whether a toggle is on.
func (d Document) HasFeature(name string) bool {
	for _, f := range d.Features {
		if f == name {
			return true
		}
	}
	return false
}

// StringSet is a canonical sorted set of labels. It unmarshals from either
// a JSON array of labels or a label-to-bool map (true keeps the label);
// both shapes normalize to the array form immediately, nothing downstream
// ever sees the map shape.
type StringSet []string

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err == nil {
		*s = normalize(labels)
		return nil
	}

	var flags map[string]bool
	if err := json.Unmarshal(data, &flags); err == nil {
		labels = labels[:0]
		for label, on := range flags {
			if on {
				labels = append(labels, label)
			}
		}
		*s = normalize(labels)
		return nil
	}

	return fmt.Errorf("expected array or object of booleans, got %s", data)
}

func (s StringSet) Contains(label string) bool {
	for _, l := range s {
		if l == label {
			return true
		}
	}
	return false
}

func normalize(labels []string) StringSet {
	sort.Strings(labels)
	out := labels[:0]
	for i, l := range labels {
		if i == 0 || labels[i-1] != l {
			out = append(out, l)
		}
	}
	return StringSet(out)
}

// Partial is an admin update. Omitted fields keep their stored value;
// MaintenanceDay distinguishes "omitted" from an explicit null, which
// clears the scheduled day.
type Partial struct {
	Version          *string     `json:"version"`
	Features         *SetPatch   `json:"features"`
	VideoResolutions *SetPatch   `json:"video_resolutions"`
	AudioQualities   *SetPatch   `json:"audio_qualities"`
	MaintenanceDay   OptionalDay `json:"maintenance_day"`
}

// SetPatch is one admin edit to a set-valued field. The two accepted input
// shapes carry different semantics, so both survive parsing: an array
// replaces the stored set outright, while a label-to-bool map edits it per
// label (true adds, false removes, unnamed labels stay untouched).
type SetPatch struct {
	replace   StringSet
	isReplace bool
	add       StringSet
	remove    StringSet
}

func (p *SetPatch) UnmarshalJSON(data []byte) error {
	*p = SetPatch{}

	var labels []string
	if err := json.Unmarshal(data, &labels); err == nil {
		p.isReplace = true
		p.replace = normalize(labels)
		return nil
	}

	var flags map[string]bool
	if err := json.Unmarshal(data, &flags); err == nil {
		var add, remove []string
		for label, on := range flags {
			if on {
				add = append(add, label)
			} else {
				remove = append(remove, label)
			}
		}
		p.add = normalize(add)
		p.remove = normalize(remove)
		return nil
	}

	return fmt.Errorf("expected array or object of booleans, got %s", data)
}

// Apply returns the stored set with this patch applied.
func (p *SetPatch) Apply(current StringSet) StringSet {
	if p.isReplace {
		return p.replace
	}

	merged := make([]string, 0, len(current)+len(p.add))
	for _, label := range current {
		if !p.remove.Contains(label) {
			merged = append(merged, label)
		}
	}
	merged = append(merged, p.add...)
	return normalize(merged)
}

// OptionalDay is a weekday value that tracks whether it appeared in the
// request body at all.
type OptionalDay struct {
	Present bool
	Value   *string
}

func (o *OptionalDay) UnmarshalJSON(data []byte) error {
	o.Present = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var day string
	if err := json.Unmarshal(data, &day); err != nil {
		return err
	}
	o.Value = &day
	return nil
}

// ValidWeekday reports whether day is a real weekday name.
func ValidWeekday(day string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == day {
			return true
		}
	}
	return false
}
