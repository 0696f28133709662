package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicefeedback/internal/platform/logger"
)

func subscribe(t *testing.T, h *Hub, businessID string) *Connection {
	t.Helper()
	conn := &Connection{BusinessID: businessID, ClientID: "orchestrator", Send: make(chan []byte, 4), Hub: h}
	h.Register(conn)
	return conn
}

func receive(t *testing.T, conn *Connection) Message {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		require.True(t, ok, "connection closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func TestHub_BroadcastIsScopedToBusiness(t *testing.T) {
	h := NewHub(logger.NewNop())
	defer h.Close()

	a := subscribe(t, h, "biz-a")
	b := subscribe(t, h, "biz-b")
	require.Eventually(t, func() bool { return h.SubscriberCount("biz-a") == 1 }, time.Second, 5*time.Millisecond)

	h.BroadcastToBusiness("biz-a", "activation_logged", map[string]string{"evaluationId": "ev-1"})

	msg := receive(t, a)
	assert.Equal(t, MessageType("activation_logged"), msg.Type)
	assert.JSONEq(t, `{"evaluationId":"ev-1"}`, string(msg.Payload))

	select {
	case <-b.Send:
		t.Fatal("other business received the message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := NewHub(logger.NewNop())
	defer h.Close()

	conn := subscribe(t, h, "biz-a")
	h.Unregister(conn)

	_, ok := <-conn.Send
	assert.False(t, ok)
	assert.Zero(t, h.SubscriberCount("biz-a"))
}

func TestHub_CloseReleasesSubscribers(t *testing.T) {
	h := NewHub(logger.NewNop())
	conn := subscribe(t, h, "biz-a")
	h.Close()

	select {
	case _, ok := <-conn.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	// broadcasting after close is a no-op
	h.BroadcastToBusiness("biz-a", "activation_logged", nil)
}
