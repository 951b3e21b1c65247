// Package worker consumes order lifecycle events and keeps the Redis order
// view cache honest: any event about an order drops its cached view, so a
// write made by another API instance cannot serve a stale projection.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-shop-backend.git/internal/kafka"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderEvent is mounted as the consumer handler for every order topic.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup via Redis on event_id
	dkey := fmt.Sprintf(redisx.KeyDedup, "cache-worker", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderCreated, orders.EventOrderDeleted:
	case orders.EventOrderStatusChanged:
		if p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload); err == nil {
			log.Printf("order %s moved %s -> %s", p.OrderID, p.From, p.To)
		}
	default:
		return nil // ignore
	}

	orderID := env.CorrelationID
	if orderID == "" {
		return nil
	}
	if err := s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderView, orderID)).Err(); err != nil {
		// not marked processed; the message is redelivered and retried
		return err
	}

	// mark processed only once the invalidation landed, so a failed Del cannot
	// strand a stale view behind a dedup hit
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
