package server

import (
	"net/http"

	"github.com/archivum/archivum/internal/store"
	"github.com/archivum/archivum/internal/types"
)

func (s *Server) handleFileBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := decodeBody[types.FileBatch](r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if batch.SourceID == "" {
		http.Error(w, "sourceId is required", http.StatusBadRequest)
		return
	}
	if err := s.ingest.IngestBatch(r.Context(), batch); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	filesIngested.Add(float64(len(batch.Files)))
	s.writeJSON(r.Context(), w, http.StatusCreated, map[string]any{
		"sourceId":    batch.SourceID,
		"batchNumber": batch.BatchNumber,
		"accepted":    len(batch.Files),
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.FileFilter{
		SourceID:  q.Get("sourceId"),
		Status:    types.FileStatus(q.Get("status")),
		Extension: q.Get("extension"),
		SHA256:    q.Get("sha256"),
		NameLike:  q.Get("name"),
	}
	switch q.Get("isDuplicate") {
	case "true":
		t := true
		filter.IsDuplicate = &t
	case "false":
		f := false
		filter.IsDuplicate = &f
	}

	page, size := pageParams(r)
	result, err := s.store.ListFiles(r.Context(), filter, page, size)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, result)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.GetFile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, f)
}

// patchFileRequest updates classification state on one file. Absent fields
// are left untouched.
type patchFileRequest struct {
	Status      types.FileStatus `json:"status,omitempty"`
	IsDuplicate *bool            `json:"isDuplicate,omitempty"`
}

func (s *Server) handlePatchFile(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[patchFileRequest](r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	f, err := s.store.GetFile(r.Context(), id)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	status := f.Status
	if req.Status != "" {
		status = req.Status
	}
	if err := s.store.UpdateFileStatus(r.Context(), id, status, req.IsDuplicate); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	f, err = s.store.GetFile(r.Context(), id)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, f)
}
