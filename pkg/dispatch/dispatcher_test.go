package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harun/beacon/pkg/event"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	server *httptest.Server
	calls  atomic.Int32
	mu     sync.Mutex
	last   *http.Request
	body   map[string]interface{}
}

func newCollector(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *collector {
	t.Helper()
	c := &collector{}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.calls.Add(1)
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		c.mu.Lock()
		c.last = r
		c.body = body
		c.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func statusHandler(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if body != "" {
			fmt.Fprint(w, body)
		}
	}
}

func newTestDispatcher(t *testing.T, url string) *Dispatcher {
	t.Helper()
	d, err := New(Config{CollectorURL: url, Timeout: 2 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return d
}

func testEvent(id string, typ event.Type) event.Event {
	return event.Event{
		ID:        id,
		Name:      "test_event",
		Type:      typ,
		SessionID: "s-1",
		Page:      "/",
		Timestamp: "2026-03-01T12:00:00.000Z",
		Metadata:  map[string]interface{}{},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{200, Delivered},
		{201, Delivered},
		{204, Delivered},
		{299, Delivered},
		{400, Rejected},
		{401, Rejected},
		{404, Rejected},
		{422, Rejected},
		{429, TransientFailure},
		{500, TransientFailure},
		{502, TransientFailure},
		{503, TransientFailure},
		{101, TransientFailure},
		{304, TransientFailure},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status))
		})
	}
}

func TestSend_NoContentIsDelivered(t *testing.T) {
	c := newCollector(t, statusHandler(http.StatusNoContent, ""))
	d := newTestDispatcher(t, c.server.URL)

	out := d.Send(context.Background(), testEvent("e1", event.TypeClick))

	assert.Equal(t, Delivered, out.Kind)
	assert.Equal(t, http.StatusNoContent, out.StatusCode)
	assert.True(t, out.Attempted)
	assert.Equal(t, int32(1), c.calls.Load())
}

func TestSend_UnparseableOrNegativeBodyStillDelivered(t *testing.T) {
	for _, body := range []string{"not json", `{"success": false, "message": "meh"}`, `{"success": true}`} {
		t.Run(body, func(t *testing.T) {
			c := newCollector(t, statusHandler(http.StatusOK, body))
			d := newTestDispatcher(t, c.server.URL)
			assert.Equal(t, Delivered, d.Send(context.Background(), testEvent("e", event.TypeCustom)).Kind)
		})
	}
}

func TestSend_ServerErrorIsTransient(t *testing.T) {
	c := newCollector(t, statusHandler(http.StatusInternalServerError, ""))
	d := newTestDispatcher(t, c.server.URL)

	out := d.Send(context.Background(), testEvent("e1", event.TypeClick))
	assert.Equal(t, TransientFailure, out.Kind)
	assert.Equal(t, 500, out.StatusCode)
	assert.NotEmpty(t, out.Reason)
}

func TestSend_ClientErrorIsRejected(t *testing.T) {
	c := newCollector(t, statusHandler(http.StatusBadRequest, `{"error":"bad"}`))
	d := newTestDispatcher(t, c.server.URL)

	assert.Equal(t, Rejected, d.Send(context.Background(), testEvent("e1", event.TypeClick)).Kind)
	// A rejected event is not remembered as delivered
	assert.False(t, d.Delivered("e1"))
}

func TestSend_TransportErrorIsTransient(t *testing.T) {
	c := newCollector(t, statusHandler(http.StatusOK, ""))
	url := c.server.URL
	c.server.Close()

	d := newTestDispatcher(t, url)
	out := d.Send(context.Background(), testEvent("e1", event.TypeClick))
	assert.Equal(t, TransientFailure, out.Kind)
	assert.True(t, out.Attempted)
}

func TestSend_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	c := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	d, err := New(Config{CollectorURL: c.server.URL, Timeout: 50 * time.Millisecond, Logger: zerolog.Nop()})
	require.NoError(t, err)

	out := d.Send(context.Background(), testEvent("e1", event.TypeClick))
	assert.Equal(t, TransientFailure, out.Kind)
	assert.Contains(t, out.Reason, "did not answer")
}

func TestSend_CallerCancellationDoesNotAbort(t *testing.T) {
	c := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	d := newTestDispatcher(t, c.server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, Delivered, d.Send(ctx, testEvent("e1", event.TypeClick)).Kind)
}

func TestSend_EndpointsAndHeaders(t *testing.T) {
	c := newCollector(t, statusHandler(http.StatusOK, ""))
	d := newTestDispatcher(t, c.server.URL+"/")

	d.Send(context.Background(), testEvent("pv-1", event.TypePageView))
	c.mu.Lock()
	assert.Equal(t, "/pageview", c.last.URL.Path)
	assert.Equal(t, "POST", c.last.Method)
	assert.Equal(t, "application/json", c.last.Header.Get("Content-Type"))
	assert.Equal(t, "pv-1", c.last.Header.Get("Idempotency-Key"))
	assert.Equal(t, "pv-1", c.body["eventId"])
	assert.Equal(t, "pageview", c.body["eventType"])
	assert.Equal(t, "s-1", c.body["sessionId"])
	c.mu.Unlock()

	d.Send(context.Background(), testEvent("click-1", event.TypeClick))
	c.mu.Lock()
	assert.Equal(t, "/track", c.last.URL.Path)
	c.mu.Unlock()
}

func TestSend_DuplicateNotResent(t *testing.T) {
	c := newCollector(t, statusHandler(http.StatusOK, ""))
	d := newTestDispatcher(t, c.server.URL)

	evt := testEvent("e1", event.TypeClick)
	assert.Equal(t, Delivered, d.Send(context.Background(), evt).Kind)

	out := d.Send(context.Background(), evt)
	assert.Equal(t, Duplicate, out.Kind)
	assert.False(t, out.Attempted)
	assert.Equal(t, int32(1), c.calls.Load())
}

func TestNew_RejectsBadCollector(t *testing.T) {
	for _, url := range []string{"", "ftp://collect.example.com", "http://", "::"} {
		_, err := New(Config{CollectorURL: url})
		assert.Error(t, err, url)
	}
}

func TestDedupSet_EvictsOldest(t *testing.T) {
	d := newDedupSet(3)
	for _, id := range []string{"a", "b", "c"} {
		d.Add(id)
	}
	d.Add("a") // already present, no eviction
	assert.Equal(t, 3, d.Len())

	d.Add("d")
	assert.False(t, d.Contains("a"))
	assert.True(t, d.Contains("b"))
	assert.True(t, d.Contains("d"))
	assert.Equal(t, 3, d.Len())
}
