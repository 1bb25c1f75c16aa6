package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWriter is a thread-safe mock writer.
type mockWriter struct {
	mu     sync.Mutex
	events []*Event
}

func (w *mockWriter) WriteEvent(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
	return nil
}

func (w *mockWriter) WriteBatch(events []*Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, events...)
	return nil
}

func TestBatchSink(t *testing.T) {
	mock := &mockWriter{}
	sink := NewBatchSink(mock, 5, 100*time.Millisecond, 0, 0)

	for i := 0; i < 3; i++ {
		sink.WriteEvent(&Event{Operation: fmt.Sprintf("op-%d", i)})
	}

	time.Sleep(10 * time.Millisecond)
	mock.mu.Lock()
	assert.Len(t, mock.events, 0)
	mock.mu.Unlock()

	time.Sleep(150 * time.Millisecond)
	mock.mu.Lock()
	assert.Len(t, mock.events, 3)
	mock.mu.Unlock()

	for i := 0; i < 5; i++ {
		sink.WriteEvent(&Event{Operation: fmt.Sprintf("op-batch-%d", i)})
	}

	time.Sleep(50 * time.Millisecond)
	mock.mu.Lock()
	assert.Len(t, mock.events, 8)
	mock.mu.Unlock()

	sink.Close()
}

func TestHTTPSink(t *testing.T) {
	var capturedEvents []*Event
	var mu sync.Mutex

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()

		var events []*Event
		if err := json.Unmarshal(body, &events); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		mu.Lock()
		capturedEvents = append(capturedEvents, events...)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sink := NewHTTPSink(ts.URL, map[string]string{"X-Test": "true"})

	event := &Event{Operation: "test-http"}
	err := sink.WriteEvent(event)
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, capturedEvents, 1)
	assert.Equal(t, "test-http", capturedEvents[0].Operation)
	mu.Unlock()
}

func TestFileSink(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "audit-log-*.json")
	require.NoError(t, err)
	path := tmpfile.Name()
	tmpfile.Close()
	defer os.Remove(path)

	sink := NewFileSink(path)
	event := &Event{Operation: "test-file"}
	err = sink.WriteEvent(event)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Event
	err = json.Unmarshal(content, &loaded)
	require.NoError(t, err)
	assert.Equal(t, "test-file", loaded.Operation)
}

func TestLoggerLogPackAndRestore(t *testing.T) {
	mock := &mockWriter{}
	logger := NewLogger(10, mock)
	defer logger.Close()

	logger.LogPack("/backups/nightly.bar", "etc/hosts", "zip6", "AES256", true, nil, 5*time.Millisecond)
	logger.LogRestore("/backups/nightly.bar", "etc/hosts", "zip6", "AES256", true, nil, 2*time.Millisecond)

	events := logger.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventTypePack, events[0].EventType)
	assert.Equal(t, EventTypeRestore, events[1].EventType)
	assert.True(t, events[0].Success)
}

func TestLoggerTrimsToMaxEvents(t *testing.T) {
	logger := NewLogger(2, &mockWriter{})
	logger.LogArchiveEvent(EventTypeArchiveOpen, "a", true, nil)
	logger.LogArchiveEvent(EventTypeArchiveOpen, "b", true, nil)
	logger.LogArchiveEvent(EventTypeArchiveOpen, "c", true, nil)

	events := logger.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].Stem)
	assert.Equal(t, "c", events[1].Stem)
}
