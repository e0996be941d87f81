package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"
	"rateright/backend/features/discovery"
	"rateright/backend/internal/middleware"
)

// DiscoveryConsumer drains the discovery task topic and runs one price
// cascade per message. The publishing side holds the run claim for the
// task key; the orchestrator releases it when the cascade finishes.
type DiscoveryConsumer struct {
	runner    CascadeRunner
	condenser QueryCondenser // nil when Gemini is not configured
	types     TypeRegistrar
	timeout   time.Duration
}

func NewDiscoveryConsumer(runner CascadeRunner, condenser QueryCondenser, types TypeRegistrar, timeout time.Duration) *DiscoveryConsumer {
	return &DiscoveryConsumer{
		runner:    runner,
		condenser: condenser,
		types:     types,
		timeout:   timeout,
	}
}

func (h *DiscoveryConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task discovery.Task
	if err := json.Unmarshal(m.Body, &task); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}

	if task.Key == "" || task.Query == "" {
		slog.ErrorContext(ctx, "missing required fields, dropping", "key", task.Key, "query", task.Query)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if task.ServiceSlug == "" {
		h.registerServiceType(ctx, &task)
	}

	slog.InfoContext(ctx, "running discovery cascade", "key", task.Key, "service_slug", task.ServiceSlug)

	if err := h.runner.Run(ctx, &task); err != nil {
		// The run claim is released by the orchestrator even on failure,
		// so an NSQ requeue would race the next search-triggered run of
		// the same key. Log and drop instead.
		slog.ErrorContext(ctx, "discovery cascade failed", "key", task.Key, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "discovery cascade finished", "key", task.Key)
	return nil
}

// registerServiceType backfills the task's service type when search
// could not resolve the raw query to a known type. The condensed name
// is registered so the next identical query resolves without discovery.
func (h *DiscoveryConsumer) registerServiceType(ctx context.Context, task *discovery.Task) {
	name := task.ServiceName
	if name == "" && h.condenser != nil {
		name = h.condenser.CondenseQuery(ctx, task.Query)
	}
	if name == "" {
		name = task.Query
	}
	task.ServiceName = name

	if h.types == nil {
		return
	}
	st, err := h.types.EnsureExists(ctx, name, task.Category, task.Description)
	if err != nil {
		slog.WarnContext(ctx, "failed to register service type", "name", name, "error", err)
		return
	}
	task.ServiceSlug = st.Slug
	task.ServiceName = st.Name
	task.Category = st.Category
}
