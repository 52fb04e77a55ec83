package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, taskToDTO(t))
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.RequestCancel(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, taskToDTO(t))
}

// handleTaskResult streams the completed task's artifact
func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, err := s.engine.ResultPath(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	reader, err := s.engine.OpenArtifact(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "text/tab-separated-values")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error().Err(err).Str("task_id", id).Msg("Failed to stream task result")
	}
}
