package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector("birbbrain")
	c.Job(OutcomeArchived)
	c.Job(OutcomeArchived)
	c.Link("repository", OutcomeArchived)
	c.MediaItem("image", OutcomeCached)
	c.Request("api.github.com", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Jobs.WithLabelValues(OutcomeArchived)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Links.WithLabelValues("repository", OutcomeArchived)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Media.WithLabelValues("image", OutcomeCached)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("api.github.com", "200")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.Job(OutcomeFailed)
	c.Link("article", OutcomeFailed)
	c.MediaItem("video", OutcomeFailed)
	c.Request("x", 0)
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector("birbbrain")
	c.Job(OutcomeSkipped)
	path := filepath.Join(t.TempDir(), "birbbrain.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `birbbrain_jobs_total{outcome="skipped"} 1`), string(data))
}
