package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandler_ExposesPipelineMetrics(t *testing.T) {
	RecordEventTracked("pageview", "accepted")
	RecordDispatch("delivered", 20*time.Millisecond, true)
	RecordDispatch("skipped", 0, false)
	SetOfflineQueueSize(3)
	RecordQueueDrop("evicted")
	RecordDrainPass("completed")
	RecordSessionStarted()
	RecordStorageDegraded("queue")
	RecordLaneEnqueue("dispatch", 1)
	RecordLaneCompletion("dispatch", time.Millisecond, true, 0)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"beacon_events_tracked_total",
		"beacon_dispatch_total",
		"beacon_dispatch_duration_seconds",
		"beacon_offline_queue_size 3",
		"beacon_offline_queue_dropped_total",
		"beacon_drain_passes_total",
		"beacon_sessions_started_total",
		"beacon_storage_degraded_total",
		"beacon_lane_tasks_total",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}

func TestEnsureRegistered_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		EnsureRegistered()
		EnsureRegistered()
	})
}

func TestAuditLogger_Record(t *testing.T) {
	var buf bytes.Buffer
	SetAuditLogger(zerolog.New(&buf))

	RecordConsentAudit(context.Background(), true, "cli")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "consent", entry["type"])
	assert.Equal(t, "consent:grant", entry["action"])
	assert.Equal(t, "cli", entry["actor"])

	buf.Reset()
	RecordDataAudit(context.Background(), "data:forget", "api", map[string]interface{}{"queued": 2})
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "data:forget", entry["action"])
}

func TestInitAuditLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))
	defer GetAuditLogger().Close()

	RecordConsentAudit(context.Background(), false, "api")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "consent:revoke")
}
