package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "notification", Body: json.RawMessage(`{"a":1}`)}))
	require.NoError(t, q.Publish(ctx, Message{Type: "notification", Body: json.RawMessage(`{"a":2}`)}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	for _, want := range []string{`{"a":1}`, `{"a":2}`} {
		select {
		case msg := <-msgs:
			assert.Equal(t, "notification", msg.Type)
			assert.JSONEq(t, want, string(msg.Body))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "channel closes after cancel")
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemoryPublishFullHonorsContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "x"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: "y"}), context.DeadlineExceeded)
}

func TestEncodeDecode(t *testing.T) {
	in := Message{Type: "notification", Body: json.RawMessage(`{"template":"welcome","note":"a|b"}`)}
	s, err := encode(in)
	require.NoError(t, err)

	out, err := decode(s)
	require.NoError(t, err)
	assert.Equal(t, in.Type, out.Type)
	assert.JSONEq(t, string(in.Body), string(out.Body))

	_, err = decode("notification|garbage")
	assert.Error(t, err)
}
