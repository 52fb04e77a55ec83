package admin

import (
	"context"
	"fmt"

	"github.com/retailcore/noos-go/internal/application/logging"
	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/ingest"
	"github.com/retailcore/noos-go/internal/domain/task"
)

// ClearAllCommand wipes all stored retail data: sales, SKUs, stores,
// styles and classification results. Task history and parameter sets are
// kept so past runs stay auditable.
type ClearAllCommand struct{}

// ClearAllResponse reports the number of rows deleted per table
type ClearAllResponse struct {
	Deleted map[string]int64
}

// ClearAllHandler executes the wipe
type ClearAllHandler struct {
	wiper ingest.Wiper
}

// NewClearAllHandler creates a new clear-all handler
func NewClearAllHandler(wiper ingest.Wiper) *ClearAllHandler {
	return &ClearAllHandler{wiper: wiper}
}

// Handle executes the clear-all command
func (h *ClearAllHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	if _, ok := request.(*ClearAllCommand); !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	deleted, err := h.wiper.ClearAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to clear data: %w", err)
	}

	total := int64(0)
	for _, n := range deleted {
		total += n
	}
	logging.FromContext(ctx).Logf(task.LogLevelInfo, "cleared %d rows across %d tables", total, len(deleted))
	return &ClearAllResponse{Deleted: deleted}, nil
}
