package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/retailcore/noos-go/internal/application/algo"
	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/params"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/internal/engine"
)

func (s *Server) handleActiveParameters(w http.ResponseWriter, r *http.Request) {
	s.sendParameterSet(w, r, &algo.GetActiveParametersQuery{})
}

func (s *Server) handleDefaultParameters(w http.ResponseWriter, r *http.Request) {
	s.sendParameterSet(w, r, &algo.GetDefaultsQuery{})
}

func (s *Server) handleUpdateActiveParameters(w http.ResponseWriter, r *http.Request) {
	values, err := decodeParameterSet(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.sendParameterSet(w, r, &algo.UpdateActiveParametersCommand{Values: values})
}

func (s *Server) handleCreateParameterSet(w http.ResponseWriter, r *http.Request) {
	set, err := decodeParameterSet(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// The query parameter names the new set and wins over the body
	if name := r.URL.Query().Get("name"); name != "" {
		set.Name = name
	}
	s.sendParameterSet(w, r, &algo.CreateParameterSetCommand{Set: set})
}

func (s *Server) handleGetParameterSet(w http.ResponseWriter, r *http.Request) {
	s.sendParameterSet(w, r, &algo.GetParameterSetQuery{Name: chi.URLParam(r, "name")})
}

func (s *Server) handleUpdateParameterSet(w http.ResponseWriter, r *http.Request) {
	values, err := decodeParameterSet(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.sendParameterSet(w, r, &algo.UpdateParameterSetCommand{
		Name:   chi.URLParam(r, "name"),
		Values: values,
	})
}

func (s *Server) handleActivateParameterSet(w http.ResponseWriter, r *http.Request) {
	s.sendParameterSet(w, r, &algo.ActivateParameterSetCommand{Name: chi.URLParam(r, "name")})
}

func (s *Server) handleRecentParameterSets(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	response, err := s.mediator.Send(r.Context(), &algo.ListParameterSetsQuery{Limit: limit})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	listResp, ok := response.(*algo.ParameterSetListResponse)
	if !ok {
		s.writeError(w, r, fmt.Errorf("unexpected response type"))
		return
	}
	s.writeJSON(w, http.StatusOK, parameterSetsToDTOs(listResp.Sets))
}

// handleRunNoos submits a classification run; the optional JSON body holds
// per-field overrides applied on top of the active parameter set
func (s *Server) handleRunNoos(w http.ResponseWriter, r *http.Request) {
	var overrides map[string]interface{}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, shared.NewValidationError("request body is not valid JSON"))
		return
	}

	t, err := s.engine.Submit(r.Context(), engine.SubmitRequest{
		Type:       task.TypeAlgorithmRun,
		UserID:     r.URL.Query().Get("userId"),
		Parameters: overrides,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, taskToDTO(t))
}

// sendParameterSet dispatches a parameter-set request and writes the
// resulting set
func (s *Server) sendParameterSet(w http.ResponseWriter, r *http.Request, request mediator.Request) {
	response, err := s.mediator.Send(r.Context(), request)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setResp, ok := response.(*algo.ParameterSetResponse)
	if !ok {
		s.writeError(w, r, fmt.Errorf("unexpected response type"))
		return
	}
	s.writeJSON(w, http.StatusOK, parameterSetToDTO(setResp.Set))
}

func decodeParameterSet(r *http.Request) (*params.ParameterSet, error) {
	var body parameterSetDTO
	if err := decodeJSON(r, &body); err != nil {
		return nil, err
	}
	return body.toDomain()
}
