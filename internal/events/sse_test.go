package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCaseSSE_StreamsConnectedThenPublishedEvents(t *testing.T) {
	hub := New(fixedNow(time.Unix(0, 0)))
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/cases/case-1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan error, 1)
	go func() {
		done <- ServeCaseSSE(rec, req, hub, "case-1")
	}()

	// give the handler time to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)
	hub.Publish("case-1", "payer_start", map[string]any{"payer_name": "Aetna"})
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ServeCaseSSE did not return after context cancellation")
	}

	body := rec.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: payer_start")
	assert.True(t, strings.Contains(body, `"payer_name":"Aetna"`))
}
