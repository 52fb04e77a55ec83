package algo

import (
	"context"
	"fmt"

	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/params"
	"github.com/retailcore/noos-go/internal/domain/shared"
)

const defaultListLimit = 10

// ParameterSetResponse wraps a single parameter set
type ParameterSetResponse struct {
	Set *params.ParameterSet
}

// ParameterSetListResponse wraps an ordered list of parameter sets
type ParameterSetListResponse struct {
	Sets []*params.ParameterSet
}

// GetActiveParametersQuery retrieves the active set, seeding the built-in
// defaults on first use
type GetActiveParametersQuery struct{}

// GetDefaultsQuery retrieves the built-in defaults without touching storage
type GetDefaultsQuery struct{}

// GetParameterSetQuery retrieves one set by name
type GetParameterSetQuery struct {
	Name string
}

// ListParameterSetsQuery lists sets ordered by isActive desc, lastUpdated desc
type ListParameterSetsQuery struct {
	Limit int
}

// CreateParameterSetCommand creates a new set and makes it active
type CreateParameterSetCommand struct {
	Set *params.ParameterSet
}

// UpdateActiveParametersCommand applies new values to the active set
type UpdateActiveParametersCommand struct {
	Values *params.ParameterSet
}

// UpdateParameterSetCommand applies new values to a named set without
// changing which set is active
type UpdateParameterSetCommand struct {
	Name   string
	Values *params.ParameterSet
}

// ActivateParameterSetCommand swaps activation to the named set
type ActivateParameterSetCommand struct {
	Name string
}

// ParametersHandler serves every parameter-set operation. One handler
// covers them all because each is a thin guard around the repository.
type ParametersHandler struct {
	repo params.Repository
}

// NewParametersHandler creates a new parameter-set handler
func NewParametersHandler(repo params.Repository) *ParametersHandler {
	return &ParametersHandler{repo: repo}
}

// Handle dispatches on the request type
func (h *ParametersHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	switch req := request.(type) {
	case *GetActiveParametersQuery:
		return h.getActive(ctx)
	case *GetDefaultsQuery:
		return &ParameterSetResponse{Set: params.Defaults()}, nil
	case *GetParameterSetQuery:
		return h.getByName(ctx, req.Name)
	case *ListParameterSetsQuery:
		return h.list(ctx, req.Limit)
	case *CreateParameterSetCommand:
		return h.create(ctx, req.Set)
	case *UpdateActiveParametersCommand:
		return h.updateActive(ctx, req.Values)
	case *UpdateParameterSetCommand:
		return h.updateByName(ctx, req.Name, req.Values)
	case *ActivateParameterSetCommand:
		return h.activate(ctx, req.Name)
	}
	return nil, fmt.Errorf("invalid request type")
}

// getActive returns the active set, inserting the defaults as active when
// no set has been stored yet
func (h *ParametersHandler) getActive(ctx context.Context) (*ParameterSetResponse, error) {
	active, err := h.repo.FindActive(ctx)
	if err == nil {
		return &ParameterSetResponse{Set: active}, nil
	}
	if !shared.IsKind(err, shared.KindNotFound) {
		return nil, fmt.Errorf("failed to load active parameters: %w", err)
	}

	seeded, err := h.repo.CreateActive(ctx, params.Defaults())
	if err != nil {
		// A concurrent request may have seeded first; fall back to reading.
		if shared.IsKind(err, shared.KindConflict) {
			if active, rerr := h.repo.FindActive(ctx); rerr == nil {
				return &ParameterSetResponse{Set: active}, nil
			}
		}
		return nil, fmt.Errorf("failed to seed default parameters: %w", err)
	}
	return &ParameterSetResponse{Set: seeded}, nil
}

func (h *ParametersHandler) getByName(ctx context.Context, name string) (*ParameterSetResponse, error) {
	if name == "" {
		return nil, shared.NewValidationError("parameter set name must not be empty")
	}
	set, err := h.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return &ParameterSetResponse{Set: set}, nil
}

func (h *ParametersHandler) list(ctx context.Context, limit int) (*ParameterSetListResponse, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	sets, err := h.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list parameter sets: %w", err)
	}
	return &ParameterSetListResponse{Sets: sets}, nil
}

func (h *ParametersHandler) create(ctx context.Context, set *params.ParameterSet) (*ParameterSetResponse, error) {
	if set == nil {
		return nil, shared.NewValidationError("parameter set body is required")
	}
	if problems := set.Validate(); len(problems) > 0 {
		return nil, shared.NewValidationDetails("invalid parameter set", problems)
	}
	created, err := h.repo.CreateActive(ctx, set)
	if err != nil {
		return nil, err
	}
	return &ParameterSetResponse{Set: created}, nil
}

func (h *ParametersHandler) updateActive(ctx context.Context, values *params.ParameterSet) (*ParameterSetResponse, error) {
	if values == nil {
		return nil, shared.NewValidationError("parameter set body is required")
	}
	active, err := h.repo.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	return h.applyUpdate(ctx, active, values)
}

func (h *ParametersHandler) updateByName(ctx context.Context, name string, values *params.ParameterSet) (*ParameterSetResponse, error) {
	if values == nil {
		return nil, shared.NewValidationError("parameter set body is required")
	}
	set, err := h.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if set.IsActive {
		return nil, shared.NewConflictError(
			fmt.Sprintf("parameter set %s is active; update it through the active-parameters endpoint", name))
	}
	return h.applyUpdate(ctx, set, values)
}

// applyUpdate copies the submitted values onto the stored set, keeping its
// identity and activation untouched
func (h *ParametersHandler) applyUpdate(ctx context.Context, stored, values *params.ParameterSet) (*ParameterSetResponse, error) {
	updated := *values
	updated.ID = stored.ID
	updated.Name = stored.Name
	updated.IsActive = stored.IsActive
	if problems := updated.Validate(); len(problems) > 0 {
		return nil, shared.NewValidationDetails("invalid parameter set", problems)
	}

	saved, err := h.repo.Update(ctx, &updated)
	if err != nil {
		return nil, err
	}
	return &ParameterSetResponse{Set: saved}, nil
}

func (h *ParametersHandler) activate(ctx context.Context, name string) (*ParameterSetResponse, error) {
	if name == "" {
		return nil, shared.NewValidationError("parameter set name must not be empty")
	}
	activated, err := h.repo.Activate(ctx, name)
	if err != nil {
		return nil, err
	}
	return &ParameterSetResponse{Set: activated}, nil
}
