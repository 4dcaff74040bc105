package server

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConn has no socket; the hub only ever touches its send queue.
func testConn(buffer int) *Conn {
	return &Conn{
		id:   uuid.New(),
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func drain(c *Conn) []string {
	var types []string
	for {
		select {
		case b := <-c.send:
			var env struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(b, &env); err == nil {
				types = append(types, env.Type)
			}
		default:
			return types
		}
	}
}

func TestHub_BroadcastScopedToSession(t *testing.T) {
	h := NewHub()
	a, b, other := testConn(4), testConn(4), testConn(4)
	h.Register(a, 1, 10)
	h.Register(b, 2, 10)
	h.Register(other, 3, 11)

	h.Broadcast(10, errorMsg("hello"), 0)
	assert.Equal(t, []string{"error"}, drain(a))
	assert.Equal(t, []string{"error"}, drain(b))
	assert.Empty(t, drain(other))

	h.Broadcast(10, errorMsg("hello"), 1)
	assert.Empty(t, drain(a))
	assert.Equal(t, []string{"error"}, drain(b))
}

func TestHub_RegisterSupersedes(t *testing.T) {
	h := NewHub()
	first, second := testConn(4), testConn(4)
	assert.Nil(t, h.Register(first, 1, 10))
	prev := h.Register(second, 1, 10)
	require.Same(t, first, prev)

	assert.False(t, h.Unregister(first), "superseded connection is no longer current")
	assert.True(t, h.IsOnline(10, 1))

	h.Broadcast(10, errorMsg("x"), 0)
	assert.Empty(t, drain(first))
	assert.Equal(t, []string{"error"}, drain(second))

	assert.True(t, h.Unregister(second))
	assert.False(t, h.IsOnline(10, 1))
	assert.False(t, h.Unregister(second))
}

func TestHub_SendToChecksSession(t *testing.T) {
	h := NewHub()
	c := testConn(4)
	h.Register(c, 1, 10)

	assert.True(t, h.SendTo(10, 1, errorMsg("x")))
	assert.False(t, h.SendTo(11, 1, errorMsg("x")))
	assert.False(t, h.SendTo(10, 2, errorMsg("x")))
	assert.Len(t, drain(c), 1)
}

func TestHub_OnlineUserIDs(t *testing.T) {
	h := NewHub()
	h.Register(testConn(1), 1, 10)
	h.Register(testConn(1), 2, 10)
	h.Register(testConn(1), 3, 11)

	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}}, h.OnlineUserIDs(10))
	assert.Empty(t, h.OnlineUserIDs(12))
}

func TestConn_EnqueueDropsWhenFull(t *testing.T) {
	c := testConn(1)
	assert.True(t, c.enqueue([]byte("a")))
	assert.False(t, c.enqueue([]byte("b")))

	close(c.done)
	<-c.send
	assert.False(t, c.enqueue([]byte("c")), "closed connection accepts nothing")
}
