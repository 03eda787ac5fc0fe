package metrics

import (
	"context"
	"sync"

	"github.com/kilianp07/ecom/core/logger"
	coremetrics "github.com/kilianp07/ecom/core/metrics"
	"github.com/kilianp07/ecom/internal/eventbus"
)

// StartIterationCollector subscribes to the progress bus and forwards every
// event to sink. It stops when the context is canceled or the bus is closed;
// the returned WaitGroup is done once the last event was recorded.
func StartIterationCollector(ctx context.Context, bus *eventbus.TypedBus[coremetrics.IterationEvent], sink coremetrics.MetricsSink, log logger.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	if bus == nil || sink == nil {
		return &wg
	}
	log = logger.OrNop(log)
	sub := bus.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := sink.RecordIteration(ev); err != nil {
					log.Errorf("record iteration %d of %s: %v", ev.Iteration, ev.RunID, err)
				}
			}
		}
	}()
	return &wg
}
