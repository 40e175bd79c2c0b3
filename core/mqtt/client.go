package mqtt

import (
	"context"

	"github.com/kilianp07/haulplan/core/model"
)

// Publisher sends the weekly orders of a planning run to the trucks.
type Publisher interface {
	// PublishPlan sends one order per truck that received work. Trucks whose
	// order could not be delivered are reported in the results; the error is
	// reserved for failures affecting the whole run.
	PublishPlan(ctx context.Context, runID string, out *model.Outcome) ([]OrderResult, error)
	Disconnect()
}

// OrderResult reports the publication of one truck order.
type OrderResult struct {
	TruckID string
	OrderID string
	Err     error
}
