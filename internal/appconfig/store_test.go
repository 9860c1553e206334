package appconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "app-config.json"))
}

func TestReadMissingFileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)

	doc := s.Read()
	assert.Equal(t, "1.0.0", doc.Version)
	assert.True(t, doc.HasFeature(FeatureDownloader))
	assert.True(t, doc.HasFeature(FeatureImageSearch))
	assert.Nil(t, doc.MaintenanceDay)

	// Read never repairs the file.
	_, err := os.Stat(s.path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadCorruptFileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0o644))

	doc := s.Read()
	assert.Equal(t, DefaultDocument().Version, doc.Version)
	assert.Equal(t, DefaultDocument().VideoResolutions, doc.VideoResolutions)
}

func TestReadReportsLiveWeekday(t *testing.T) {
	s := newTestStore(t)

	doc := s.Read()
	assert.Equal(t, time.Now().Weekday().String(), doc.CurrentDay)
}

func TestUpdateEmptyPartialIsNoop(t *testing.T) {
	s := newTestStore(t)

	before, err := s.Update(Partial{})
	require.NoError(t, err)

	after, err := s.Update(Partial{})
	require.NoError(t, err)

	before.CurrentDay = ""
	after.CurrentDay = ""
	assert.Equal(t, before, after)
	assert.Equal(t, DefaultDocument(), after)
}

func TestUpdateMergesOnlyProvidedFields(t *testing.T) {
	s := newTestStore(t)

	v := "2.1.0"
	doc, err := s.Update(Partial{Version: &v})
	require.NoError(t, err)

	assert.Equal(t, "2.1.0", doc.Version)
	// Everything else untouched.
	assert.Equal(t, DefaultDocument().Features, doc.Features)
	assert.Equal(t, DefaultDocument().AudioQualities, doc.AudioQualities)
}

func TestUpdateBooleanMapShapeMergesPerLabel(t *testing.T) {
	s := newTestStore(t)

	// Array shape replaces the stored set outright.
	var partial Partial
	require.NoError(t, json.Unmarshal([]byte(`{"video_resolutions": ["360p", "480p", "1080p"]}`), &partial))
	_, err := s.Update(partial)
	require.NoError(t, err)

	// Map shape edits per label: 720p added, 1080p removed, and the labels
	// the map never names (360p, 480p) must survive untouched.
	require.NoError(t, json.Unmarshal([]byte(`{"video_resolutions": {"720p": true, "1080p": false}}`), &partial))
	_, err = s.Update(partial)
	require.NoError(t, err)

	doc := s.Read()
	assert.Equal(t, StringSet{"360p", "480p", "720p"}, doc.VideoResolutions)
}

func TestSetPatchShapes(t *testing.T) {
	var p SetPatch
	require.NoError(t, json.Unmarshal([]byte(`["b", "a", "a"]`), &p))
	assert.Equal(t, StringSet{"a", "b"}, p.Apply(StringSet{"x", "y"}))

	require.NoError(t, json.Unmarshal([]byte(`{"y": false, "z": true}`), &p))
	assert.Equal(t, StringSet{"x", "z"}, p.Apply(StringSet{"x", "y"}))

	// An empty map edits nothing.
	require.NoError(t, json.Unmarshal([]byte(`{}`), &p))
	assert.Equal(t, StringSet{"x"}, p.Apply(StringSet{"x"}))

	assert.Error(t, json.Unmarshal([]byte(`42`), &p))
}

func TestUpdateMaintenanceDayRoundTrip(t *testing.T) {
	s := newTestStore(t)

	var partial Partial
	require.NoError(t, json.Unmarshal([]byte(`{"maintenance_day": "Monday"}`), &partial))
	doc, err := s.Update(partial)
	require.NoError(t, err)
	require.NotNil(t, doc.MaintenanceDay)
	assert.Equal(t, "Monday", *doc.MaintenanceDay)

	// Omitted field keeps the stored day.
	v := "3.0.0"
	doc, err = s.Update(Partial{Version: &v})
	require.NoError(t, err)
	require.NotNil(t, doc.MaintenanceDay)

	// Explicit null clears it.
	require.NoError(t, json.Unmarshal([]byte(`{"maintenance_day": null}`), &partial))
	doc, err = s.Update(partial)
	require.NoError(t, err)
	assert.Nil(t, doc.MaintenanceDay)
	assert.Nil(t, s.Read().MaintenanceDay)
}

func TestUpdateRejectsBogusWeekday(t *testing.T) {
	s := newTestStore(t)

	var partial Partial
	require.NoError(t, json.Unmarshal([]byte(`{"maintenance_day": "Caturday"}`), &partial))
	_, err := s.Update(partial)
	assert.Error(t, err)

	// State unchanged.
	assert.Nil(t, s.Read().MaintenanceDay)
}

func TestUpdateStartsFromDefaultsWhenFileCorrupt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.path, []byte("garbage"), 0o644))

	v := "5.0.0"
	doc, err := s.Update(Partial{Version: &v})
	require.NoError(t, err)

	assert.Equal(t, "5.0.0", doc.Version)
	assert.Equal(t, DefaultDocument().Features, doc.Features)
}

func TestPersistedFileOmitsDerivedDay(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update(Partial{})
	require.NoError(t, err)

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "current_day")
}
