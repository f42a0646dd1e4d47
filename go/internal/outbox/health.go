package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	WorkerRunning   bool      `json:"worker_running"`
	EventsProcessed uint64    `json:"events_processed"`
	EventsFailed    uint64    `json:"events_failed"`
	LastEventTime   time.Time `json:"last_event_time,omitempty"`
	PendingEvents   int       `json:"pending_events"`
	NATSConnected   *bool     `json:"nats_connected,omitempty"`
	Errors          []string  `json:"errors,omitempty"`
}

// HealthChecker reports on the worker, the backlog and the broker connection
type HealthChecker struct {
	worker     *Worker
	repo       Repository
	natsConn   *nats.Conn
	maxBacklog int
}

func NewHealthChecker(worker *Worker, repo Repository, natsConn *nats.Conn, maxBacklog int) *HealthChecker {
	if maxBacklog <= 0 {
		maxBacklog = 1000
	}
	return &HealthChecker{worker: worker, repo: repo, natsConn: natsConn, maxBacklog: maxBacklog}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true}

	status.EventsProcessed, status.EventsFailed, status.LastEventTime = h.worker.Stats()
	status.WorkerRunning = h.worker.Running()
	if !status.WorkerRunning {
		status.Healthy = false
		status.Errors = append(status.Errors, "outbox worker not running")
	}

	pending, err := h.repo.CountUnsent(ctx)
	if err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("count pending events: %v", err))
	}
	status.PendingEvents = pending
	if pending > h.maxBacklog {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("outbox backlog %d exceeds %d", pending, h.maxBacklog))
	}

	if h.natsConn != nil {
		connected := h.natsConn.IsConnected()
		status.NATSConnected = &connected
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}
	return status
}
