package redisx

import "time"

const (
	// Cached order view: order:view:{order_id} -> OrderView JSON
	KeyOrderView = "order:view:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderView = 5 * time.Minute
	TTLDedup     = 48 * time.Hour
)
