package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/audiforge/audiforge/internal/models"
	"github.com/audiforge/audiforge/internal/pipeline"
)

// readSSEStatusEvents reads "status" events off an SSE stream until the
// server closes it or maxEvents have arrived.
func readSSEStatusEvents(t *testing.T, body *bufio.Reader, maxEvents int) []models.StatusRecord {
	t.Helper()

	var records []models.StatusRecord
	var currentEvent string
	for len(records) < maxEvents {
		line, err := body.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimRight(line, "\n")

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && currentEvent == "status":
			var record models.StatusRecord
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &record))
			records = append(records, record)
		}
	}
	return records
}

func TestStreamHandlerDeliversTransitionsAndSevers(t *testing.T) {
	logger := arbor.NewLogger()
	store := pipeline.NewStatusStore()
	broadcaster := pipeline.NewBroadcaster(50*time.Millisecond, logger)
	handler := NewStreamHandler(store, broadcaster, logger)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.StreamHandler(w, r, "my_book")
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the handler time to subscribe before publishing
	time.Sleep(100 * time.Millisecond)

	broadcaster.Publish(store.Set("my_book", models.JobStatusProcessing, "Step 1 of 4: Analyzing text...", ""))
	broadcaster.Publish(store.Set("my_book", models.JobStatusCompleted, "Complete!", ""))

	// First event is the placeholder snapshot, then the two transitions.
	// The read loop ends when the server severs the stream after the
	// terminal record plus grace delay.
	records := readSSEStatusEvents(t, bufio.NewReader(resp.Body), 10)
	require.Len(t, records, 3)
	assert.Equal(t, models.JobStatusUnknown, records[0].Status)
	assert.Equal(t, "Step 1 of 4: Analyzing text...", records[1].Message)
	assert.Equal(t, models.JobStatusCompleted, records[2].Status)
}

func TestStreamHandlerClientDisconnectUnsubscribes(t *testing.T) {
	logger := arbor.NewLogger()
	store := pipeline.NewStatusStore()
	broadcaster := pipeline.NewBroadcaster(time.Second, logger)
	handler := NewStreamHandler(store, broadcaster, logger)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.StreamHandler(w, r, "my_book")
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return broadcaster.SubscriberCount("my_book") == 1
	}, time.Second, 10*time.Millisecond)

	resp.Body.Close()

	// Disconnection deterministically unregisters the subscription
	require.Eventually(t, func() bool {
		return broadcaster.SubscriberCount("my_book") == 0
	}, 2*time.Second, 10*time.Millisecond)
}
