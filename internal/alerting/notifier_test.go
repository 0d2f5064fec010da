package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNote() Notification {
	return Notification{
		Date:       time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
		Kind:       KindHDD,
		Value:      24.8,
		Threshold:  19.5,
		Percentile: 0.9,
		AvgTemp:    -6.47,
		Price:      3.125,
		Symbol:     "HHG4",
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/bottoken/sendMessage"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	require.NoError(t, notifier.Notify(context.Background(), sampleNote()))

	assert.Equal(t, "chat", received["chat_id"])
	assert.Contains(t, received["text"], "HDD: 24.80 (p90 threshold 19.50)")
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), sampleNote())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramNotifierStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	assert.ErrorContains(t, notifier.Notify(context.Background(), sampleNote()), "429")
}

func TestRenderMessage(t *testing.T) {
	msg := RenderMessage(sampleNote())
	assert.Contains(t, msg, "Date: 2024-01-16")
	assert.Contains(t, msg, "Avg temp: -6.5 C")
	assert.Contains(t, msg, "Last price: 3.125 (HHG4)")

	note := sampleNote()
	note.Price = 0
	assert.NotContains(t, RenderMessage(note), "Last price")
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
