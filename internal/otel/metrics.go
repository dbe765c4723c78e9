package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	taskOpsCounter      metric.Int64Counter
	notificationsCtr    metric.Int64Counter
	syncUpsertsCtr      metric.Int64Counter
	sseEventsCounter    metric.Int64Counter
	sseConnectionsGauge metric.Int64ObservableGauge
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times;
// only runs once. Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		taskOpsCounter, err = m.Int64Counter("missionctl_task_operations_total", metric.WithDescription("Total task operations (create, update, archive, etc.)"))
		if err != nil {
			return
		}
		notificationsCtr, err = m.Int64Counter("missionctl_notifications_total", metric.WithDescription("Total notifications fanned out"))
		if err != nil {
			return
		}
		syncUpsertsCtr, err = m.Int64Counter("missionctl_sync_upserts_total", metric.WithDescription("Total external sync upserts by kind and outcome"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("missionctl_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("missionctl_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
		if err != nil {
			return
		}
	})
	return err
}

// RecordTaskOp records a task operation (create, update, archive, etc.).
func RecordTaskOp(ctx context.Context, op, status string) {
	if taskOpsCounter == nil {
		return
	}
	taskOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		AttrStatus.String(status),
	))
}

// RecordNotifications records n notifications created for one message.
func RecordNotifications(ctx context.Context, n int) {
	if notificationsCtr == nil || n == 0 {
		return
	}
	notificationsCtr.Add(ctx, int64(n))
}

// RecordSyncUpsert records created/updated counts for one sync call.
func RecordSyncUpsert(ctx context.Context, kind string, created, updated int) {
	if syncUpsertsCtr == nil {
		return
	}
	syncUpsertsCtr.Add(ctx, int64(created), metric.WithAttributes(AttrKind.String(kind), attribute.String("outcome", "created")))
	syncUpsertsCtr.Add(ctx, int64(updated), metric.WithAttributes(AttrKind.String(kind), attribute.String("outcome", "updated")))
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}
