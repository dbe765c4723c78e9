package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub_publishReachesEveryStream(t *testing.T) {
	hub := NewEventHub()
	idA, chA := hub.attach()
	defer hub.detach(idA)
	idB, chB := hub.attach()
	defer hub.detach(idB)

	hub.PublishJSON(map[string]any{"type": "task_update", "task_id": 1})

	for _, ch := range []chan string{chA, chB} {
		select {
		case payload := <-ch:
			assert.Contains(t, payload, `"type":"task_update"`)
		case <-time.After(time.Second):
			t.Fatal("no event received")
		}
	}
}

func TestEventHub_detachClosesStream(t *testing.T) {
	hub := NewEventHub()
	id, ch := hub.attach()
	hub.detach(id)

	_, open := <-ch
	assert.False(t, open)

	// Detaching twice must not panic or close twice.
	hub.detach(id)

	// Publishing with no streams left is a no-op.
	hub.PublishJSON(map[string]any{"type": "task_update"})
}

func TestEventHub_fullStreamMissesEventsInsteadOfBlocking(t *testing.T) {
	hub := NewEventHub()
	id, ch := hub.attach()
	defer hub.detach(id)

	// Overfill the buffer; the overflow is dropped, not delivered late.
	for i := 0; i < cap(ch)+50; i++ {
		hub.PublishJSON(map[string]any{"type": "task_update", "n": i})
	}

	require.Len(t, ch, cap(ch))
}
