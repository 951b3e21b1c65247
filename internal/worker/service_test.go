package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
)

// scriptedRedis answers EXISTS/SET/DEL in process so the handler's ordering
// can be asserted without a server. DEL fails while delErr is set.
type scriptedRedis struct {
	calls  []string
	stored map[string]bool
	delErr error
}

func newScriptedClient(s *scriptedRedis) *redis.Client {
	c := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	c.AddHook(s)
	return c
}

func (s *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (s *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (s *scriptedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		s.calls = append(s.calls, cmd.Name())
		switch cmd.Name() {
		case "exists":
			n := int64(0)
			if s.stored[cmd.Args()[1].(string)] {
				n = 1
			}
			cmd.(*redis.IntCmd).SetVal(n)
			return nil
		case "del":
			if s.delErr != nil {
				cmd.SetErr(s.delErr)
				return s.delErr
			}
			cmd.(*redis.IntCmd).SetVal(1)
			return nil
		case "set":
			s.stored[cmd.Args()[1].(string)] = true
			cmd.(*redis.StatusCmd).SetVal("OK")
			return nil
		}
		return next(ctx, cmd)
	}
}

func eventMessage(t *testing.T, eventID, orderID string) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:       eventID,
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test-api",
		CorrelationID: orderID,
		Payload:       json.RawMessage(`{}`),
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestHandleOrderEventDedups(t *testing.T) {
	ctx := context.Background()
	sr := &scriptedRedis{stored: map[string]bool{}}
	svc := &Service{Redis: newScriptedClient(sr), ServiceName: "test-worker"}
	msg := eventMessage(t, "ev-1", "o-1")

	require.NoError(t, svc.HandleOrderEvent(ctx, msg))
	assert.Equal(t, []string{"exists", "del", "set"}, sr.calls)

	// redelivery of the same event is a no-op
	require.NoError(t, svc.HandleOrderEvent(ctx, msg))
	assert.Equal(t, []string{"exists", "del", "set", "exists"}, sr.calls)
}

func TestHandleOrderEventRetriesFailedInvalidation(t *testing.T) {
	ctx := context.Background()
	sr := &scriptedRedis{stored: map[string]bool{}, delErr: errors.New("redis down")}
	svc := &Service{Redis: newScriptedClient(sr), ServiceName: "test-worker"}
	msg := eventMessage(t, "ev-1", "o-1")

	// a failed invalidation surfaces so the message is redelivered, and the
	// event must not be marked processed
	require.Error(t, svc.HandleOrderEvent(ctx, msg))
	assert.Empty(t, sr.stored)

	// on redelivery the view is dropped and only then the event recorded
	sr.delErr = nil
	require.NoError(t, svc.HandleOrderEvent(ctx, msg))
	assert.Equal(t, []string{"exists", "del", "exists", "del", "set"}, sr.calls)
	assert.Len(t, sr.stored, 1)
}

func TestHandleOrderEventBadEnvelope(t *testing.T) {
	sr := &scriptedRedis{stored: map[string]bool{}}
	svc := &Service{Redis: newScriptedClient(sr), ServiceName: "test-worker"}

	err := svc.HandleOrderEvent(context.Background(), kafkago.Message{Value: []byte("not json")})
	require.Error(t, err)
	assert.Empty(t, sr.calls)
}
