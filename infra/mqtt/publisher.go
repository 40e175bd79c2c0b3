package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/haulplan/core/model"
	coremqtt "github.com/kilianp07/haulplan/core/mqtt"
)

// MockPublisher is a simple coremqtt.Publisher used in tests.
type MockPublisher struct {
	Orders  map[string]TruckOrder
	FailIDs map[string]bool
	Runs    []string
	mu      sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Orders:  make(map[string]TruckOrder),
		FailIDs: make(map[string]bool),
	}
}

// PublishPlan records the orders or fails the trucks listed in FailIDs.
func (m *MockPublisher) PublishPlan(_ context.Context, runID string, out *model.Outcome) ([]coremqtt.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs = append(m.Runs, runID)
	var res []coremqtt.OrderResult
	for _, o := range BuildOrders(runID, out, time.Now()) {
		r := coremqtt.OrderResult{TruckID: o.TruckID, OrderID: fmt.Sprintf("order-%s", o.TruckID)}
		if m.FailIDs[o.TruckID] {
			r.Err = fmt.Errorf("publish failed")
		} else {
			m.Orders[o.TruckID] = o
		}
		res = append(res, r)
	}
	return res, nil
}

// Disconnect is a no-op.
func (m *MockPublisher) Disconnect() {}

var (
	_ coremqtt.Publisher = (*PahoClient)(nil)
	_ coremqtt.Publisher = (*MockPublisher)(nil)
)
