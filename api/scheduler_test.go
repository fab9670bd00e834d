package api_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nbti/promotion-engine/api"
	"github.com/nbti/promotion-engine/engine"
	"github.com/nbti/promotion-engine/engine/store"
)

// slowEmployeeList delays the population listing so a batch can be
// caught in flight.
type slowEmployeeList struct {
	engine.TxStores
	delay time.Duration
}

func (s slowEmployeeList) ListActiveEmployees(ctx context.Context) ([]engine.Employee, error) {
	time.Sleep(s.delay)
	return s.TxStores.ListActiveEmployees(ctx)
}

func TestIncrementScheduler_StopDuringInFlightRun(t *testing.T) {
	// GIVEN: A scheduler whose startup batch is still running
	// WHEN: Stop is called mid-batch
	// THEN: Stop waits for the batch and returns cleanly

	mem := store.NewMemory()
	mem.PutEmployee(engine.Employee{ID: "emp-1", Name: "emp-1", Grade: 6, Step: 4, Active: true})

	steps := &engine.StepService{Store: slowEmployeeList{TxStores: mem, delay: 200 * time.Millisecond}}
	sched := api.NewIncrementScheduler(steps, zap.NewNop())
	sched.CheckInterval = 10 * time.Millisecond
	sched.Start()

	// Land inside the immediate startup batch.
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestIncrementScheduler_StopTwice(t *testing.T) {
	// GIVEN: A scheduler that has already been stopped
	// WHEN: Stop is called again
	// THEN: The second call is a no-op

	steps := &engine.StepService{Store: store.NewMemory()}
	sched := api.NewIncrementScheduler(steps, zap.NewNop())
	sched.CheckInterval = time.Hour
	sched.Start()

	sched.Stop()
	sched.Stop()
}
