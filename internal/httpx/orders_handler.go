package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-shop-backend.git/internal/kafka"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/redisx"
)

type OrdersHandler struct {
	Svc *orders.Service

	// One producer per lifecycle topic; partition key is the order id so
	// per-order event ordering holds.
	ProducerCreated *kafkax.Producer
	ProducerStatus  *kafkax.Producer
	ProducerDeleted *kafkax.Producer

	Redis   *redis.Client // optional view cache
	Service string        // producer name in event envelopes
}

type UpdateStatusReq struct {
	NewStatus string `json:"new_status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Delete("/orders/{id}", h.deleteOrder)
	r.Put("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.CustomerID == "" || req.ShippingAddress == "" || req.BillingAddress == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := contextWithTimeout(r, 5*time.Second)
	defer cancel()

	view, err := h.Svc.CreateOrder(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheView(r, view)

	items := make([]orders.ItemQty, 0, len(view.Items))
	for _, it := range view.Items {
		items = append(items, orders.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	h.publish(h.ProducerCreated, orders.EventOrderCreated, view.ID, r.Header.Get("X-Request-Id"),
		orders.OrderCreatedPayload{
			OrderID:     view.ID,
			CustomerID:  view.CustomerID,
			TotalAmount: view.TotalAmount,
			Items:       items,
		})

	writeJSON(w, http.StatusCreated, view)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := contextWithTimeout(r, 3*time.Second)
	defer cancel()

	// cache first, DB as the source of truth
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderView, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	view, err := h.Svc.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheView(r, view)
	writeJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 3*time.Second)
	defer cancel()

	var (
		views []orders.OrderView
		err   error
	)
	switch {
	case r.URL.Query().Get("customer_id") != "":
		views, err = h.Svc.ListOrdersByCustomer(ctx, r.URL.Query().Get("customer_id"))
	case r.URL.Query().Get("status") != "":
		views, err = h.Svc.ListOrdersByStatus(ctx, r.URL.Query().Get("status"))
	default:
		views, err = h.Svc.ListOrders(ctx)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := contextWithTimeout(r, 5*time.Second)
	defer cancel()

	restocked, err := h.Svc.DeleteOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.dropView(r, orderID)
	h.publish(h.ProducerDeleted, orders.EventOrderDeleted, orderID, r.Header.Get("X-Request-Id"),
		orders.OrderDeletedPayload{OrderID: orderID, Restocked: restocked})

	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := contextWithTimeout(r, 5*time.Second)
	defer cancel()

	prev, err := h.Svc.UpdateOrderStatus(ctx, orderID, req.NewStatus)
	if err != nil {
		writeError(w, err)
		return
	}

	h.dropView(r, orderID)
	h.publish(h.ProducerStatus, orders.EventOrderStatusChanged, orderID, r.Header.Get("X-Request-Id"),
		orders.OrderStatusChangedPayload{OrderID: orderID, From: prev, To: orders.Status(req.NewStatus)})

	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) cacheView(r *http.Request, v *orders.OrderView) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderView, v.ID)
	_ = h.Redis.Set(r.Context(), key, kafkax.MustMarshal(v), redisx.TTLOrderView).Err()
}

func (h *OrdersHandler) dropView(r *http.Request, orderID string) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(r.Context(), fmt.Sprintf(redisx.KeyOrderView, orderID)).Err()
}

func (h *OrdersHandler) publish(p *kafkax.Producer, eventType, orderID, trace string, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
