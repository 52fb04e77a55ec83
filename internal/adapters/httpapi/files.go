package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/retailcore/noos-go/internal/application/reports"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/internal/engine"
)

// maxUploadBytes bounds the multipart payload; the row-count cap is
// enforced downstream by the parser
const maxUploadBytes = 64 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	uploadType, ok := task.UploadTypeFor(kind)
	if !ok {
		s.writeError(w, r, shared.Errorf(shared.KindValidation, "unknown upload kind %q", kind))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, shared.NewValidationError("multipart field 'file' is required"))
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to read uploaded file: %w", err))
		return
	}

	t, err := s.engine.Submit(r.Context(), engine.SubmitRequest{
		Type:     uploadType,
		FileName: header.Filename,
		UserID:   r.FormValue("userId"),
		Payload:  payload,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, taskToDTO(t))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	downloadType, ok := task.DownloadTypeFor(kind)
	if !ok {
		s.writeError(w, r, shared.Errorf(shared.KindValidation, "unknown download kind %q", kind))
		return
	}

	t, err := s.engine.Submit(r.Context(), engine.SubmitRequest{
		Type:   downloadType,
		UserID: r.URL.Query().Get("userId"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, taskToDTO(t))
}

// fileStatusDTO is the wire shape of one kind's data status
type fileStatusDTO struct {
	Exists             bool              `json:"exists"`
	Count              int64             `json:"count"`
	Processing         bool              `json:"processing,omitempty"`
	Failed             bool              `json:"failed,omitempty"`
	ProgressPercentage float64           `json:"progressPercentage,omitempty"`
	ProgressMessage    string            `json:"progressMessage,omitempty"`
	ErrorFiles         map[string]string `json:"errorFiles,omitempty"`
}

func (s *Server) handleFileStatus(w http.ResponseWriter, r *http.Request) {
	response, err := s.mediator.Send(r.Context(), &reports.GetFileStatusQuery{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	statusResp, ok := response.(*reports.FileStatusResponse)
	if !ok {
		s.writeError(w, r, fmt.Errorf("unexpected response type"))
		return
	}

	body := make(map[string]fileStatusDTO, len(statusResp.Files))
	for kind, fs := range statusResp.Files {
		body[kind] = fileStatusDTO{
			Exists:             fs.Exists,
			Count:              fs.Count,
			Processing:         fs.Processing,
			Failed:             fs.Failed,
			ProgressPercentage: fs.ProgressPercentage,
			ProgressMessage:    fs.ProgressMessage,
			ErrorFiles:         fs.ErrorFiles,
		}
	}
	s.writeJSON(w, http.StatusOK, body)
}
