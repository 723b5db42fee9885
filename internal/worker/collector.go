// Package worker consumes order events off the bus and forwards them to the
// external order data-collection endpoint.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"cafepoint/internal/model"
	"cafepoint/internal/service"
)

// CollectorWorker subscribes to order-created events and POSTs each one to
// the configured collector URL. With no URL configured it only logs the
// event. Delivery is best effort; orders have already committed.
type CollectorWorker struct {
	nc           *nats.Conn
	collectorURL string
	client       *http.Client
}

func NewCollectorWorker(nc *nats.Conn, collectorURL string) *CollectorWorker {
	return &CollectorWorker{
		nc:           nc,
		collectorURL: collectorURL,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Start subscribes with a queue group so only one instance of a scaled
// deployment handles each event, then blocks until ctx is cancelled.
func (w *CollectorWorker) Start(ctx context.Context) error {
	sub, err := w.nc.QueueSubscribe(service.OrderEventsSubject, "collector_group", func(m *nats.Msg) {
		if err := w.handleEvent(ctx, m.Data); err != nil {
			slog.Error("collector: failed to forward order event", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("collector: subscribe: %w", err)
	}

	slog.Info("order collector worker is running")

	<-ctx.Done()

	slog.Info("collector worker shutting down, draining subscription...")
	return sub.Drain()
}

// Stop implements the infrastructure.Server interface (shutdown is via ctx).
func (w *CollectorWorker) Stop(ctx context.Context) error {
	return nil
}

func (w *CollectorWorker) handleEvent(ctx context.Context, data []byte) error {
	var event model.OrderCreatedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("unmarshal order event: %w", err)
	}

	if w.collectorURL == "" {
		slog.Info("order created",
			"order_id", event.OrderID,
			"account_id", event.AccountID,
			"total_price", event.TotalPrice,
			"items", len(event.Items),
		)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.collectorURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to collector: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector responded %d for order %s", resp.StatusCode, event.OrderID)
	}

	slog.Info("order event forwarded", "order_id", event.OrderID, "status", resp.StatusCode)
	return nil
}
