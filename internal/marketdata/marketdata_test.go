package marketdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
  "metric": "price",
  "volume": 250000,
  "observations": [
    {"source": "coingecko", "value": "65000.25", "timestamp": "2026-08-27T10:00:00Z"},
    {"source": "kraken", "value": 65010, "timestamp": "2026-08-27T10:01:00Z"}
  ]
}`

func writeDoc(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obs.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadObservationSet(t *testing.T) {
	set, err := LoadObservationSet(writeDoc(t, sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "price", set.Metric)
	require.Len(t, set.Observations, 2)
	assert.Equal(t, "coingecko", set.Observations[0].Source)
	require.NotNil(t, set.Volume)
	assert.Equal(t, 250000.0, *set.Volume)

	values := set.Values()
	assert.InDelta(t, 65000.25, values[0], 1e-9)
	assert.InDelta(t, 65010, values[1], 1e-9)
}

func TestLoadObservationSetRejectsIncompleteDocs(t *testing.T) {
	_, err := LoadObservationSet(writeDoc(t, `{"observations":[{"source":"a","value":1}]}`))
	assert.Error(t, err, "metric name is required")

	_, err = LoadObservationSet(writeDoc(t, `{"metric":"price","observations":[]}`))
	assert.Error(t, err, "at least one observation is required")

	_, err = LoadObservationSet(writeDoc(t, `not json`))
	assert.Error(t, err)

	_, err = LoadObservationSet(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
