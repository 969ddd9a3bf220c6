package hub

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, s *Subscription) string {
	t.Helper()
	select {
	case msg, ok := <-s.C():
		require.True(t, ok, "subscription closed")
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

func assertEmpty(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case msg := <-s.C():
		t.Fatalf("unexpected message %q", msg)
	default:
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	h := New(4)
	h.Publish([]byte("nobody"))
	assert.Zero(t, h.Len())
}

func TestFanOutPreservesOrder(t *testing.T) {
	h := New(16)
	a, b := h.Subscribe(), h.Subscribe()
	defer a.Close()
	defer b.Close()

	for i := 0; i < 5; i++ {
		h.Publish([]byte(strconv.Itoa(i)))
	}
	for _, s := range []*Subscription{a, b} {
		for i := 0; i < 5; i++ {
			assert.Equal(t, strconv.Itoa(i), recv(t, s))
		}
		assertEmpty(t, s)
	}
}

func TestLateSubscriberSeesOnlyNewMessages(t *testing.T) {
	h := New(16)
	early := h.Subscribe()
	defer early.Close()

	h.Publish([]byte("before-1"))
	h.Publish([]byte("before-2"))

	late := h.Subscribe()
	defer late.Close()
	h.Publish([]byte("after"))

	assert.Equal(t, "after", recv(t, late))
	assertEmpty(t, late)
	assert.Equal(t, "before-1", recv(t, early))
}

func TestOverflowDropsOldest(t *testing.T) {
	h := New(3)
	s := h.Subscribe()
	defer s.Close()

	for i := 1; i <= 5; i++ {
		h.Publish([]byte(strconv.Itoa(i)))
	}

	assert.Equal(t, uint64(2), s.Dropped())
	assert.Equal(t, "3", recv(t, s))
	assert.Equal(t, "4", recv(t, s))
	assert.Equal(t, "5", recv(t, s))
	assertEmpty(t, s)

	h.Publish([]byte("6"))
	assert.Equal(t, "6", recv(t, s))
}

func TestStalledSubscriberDoesNotBlockOthers(t *testing.T) {
	const capacity, total = 16, 200
	h := New(capacity)
	stalled := h.Subscribe()
	defer stalled.Close()
	live := h.Subscribe()
	defer live.Close()

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < total; i++ {
			h.Publish([]byte(strconv.Itoa(i)))
		}
	}()

	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked by stalled subscriber")
	}
	assert.Equal(t, uint64(total-capacity), stalled.Dropped())

	last := -1
	for last < total-1 {
		v, err := strconv.Atoi(recv(t, live))
		require.NoError(t, err)
		require.Greater(t, v, last)
		last = v
	}
}

func TestSubscriberNeverObservesReordering(t *testing.T) {
	h := New(8)
	s := h.Subscribe()
	defer s.Close()

	const n = 2000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			h.Publish([]byte(strconv.Itoa(i)))
		}
	}()

	last := -1
	deadline := time.After(5 * time.Second)
	for last < n-1 {
		select {
		case msg := <-s.C():
			v, err := strconv.Atoi(string(msg))
			require.NoError(t, err)
			require.Greater(t, v, last)
			last = v
		case <-deadline:
			t.Fatalf("stopped at %d", last)
		}
	}
	wg.Wait()
}

func TestConcurrentPublishersAndSubscribers(t *testing.T) {
	h := New(64)
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.Publish([]byte(fmt.Sprintf("%d-%d", p, i)))
			}
		}(p)
	}
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s := h.Subscribe()
				s.Close()
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, h.Len())
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	h := New(4)
	s := h.Subscribe()
	require.Equal(t, 1, h.Len())

	s.Close()
	s.Close()
	assert.Zero(t, h.Len())
	_, ok := <-s.C()
	assert.False(t, ok)

	h.Publish([]byte("ignored"))
}

func TestHubClose(t *testing.T) {
	h := New(4)
	s := h.Subscribe()
	h.Close()
	h.Close()

	_, ok := <-s.C()
	assert.False(t, ok)
	s.Close()

	after := h.Subscribe()
	_, ok = <-after.C()
	assert.False(t, ok, "subscribing to a closed hub yields a closed channel")
	h.Publish([]byte("dropped"))
}

func TestBroadcastEnvelope(t *testing.T) {
	h := New(4)
	s := h.Subscribe()
	defer s.Close()

	require.NoError(t, h.Broadcast(TodoDeleted, IDPayload{ID: "abc"}))

	var ev struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(recv(t, s)), &ev))
	assert.Equal(t, "todo.deleted", ev.Type)
	assert.JSONEq(t, `{"id":"abc"}`, string(ev.Data))

	assert.Error(t, h.Broadcast(TodoUpdated, make(chan int)))
}
