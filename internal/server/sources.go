package server

import (
	"net/http"

	"github.com/archivum/archivum/internal/types"
)

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	src, err := decodeBody[types.Source](r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if src.Name == "" || src.RootPath == "" {
		http.Error(w, "name and rootPath are required", http.StatusBadRequest)
		return
	}
	created, isNew, err := s.ingest.CreateSource(r.Context(), src)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	status := http.StatusCreated
	if !isNew {
		status = http.StatusOK
	}
	s.writeJSON(r.Context(), w, status, created)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListSources(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if sources == nil {
		sources = []types.Source{}
	}
	s.writeJSON(r.Context(), w, http.StatusOK, sources)
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.store.GetSource(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, src)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSource(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSourceTree(w http.ResponseWriter, r *http.Request) {
	root, err := s.trees.Build(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, root)
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("id")
	if _, err := s.store.GetSource(r.Context(), sourceID); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	zones, err := s.store.ListZones(r.Context(), sourceID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if zones == nil {
		zones = []types.FolderZone{}
	}
	s.writeJSON(r.Context(), w, http.StatusOK, zones)
}

func (s *Server) handleSetFolderZone(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[types.SetZoneRequest](r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !types.ValidZone(req.Zone) {
		http.Error(w, "unknown zone", http.StatusBadRequest)
		return
	}
	sourceID := r.PathValue("id")
	fz, err := s.zones.SetFolderZone(r.Context(), sourceID, r.PathValue("path"), req.Zone)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	// A zone change can retract or create duplicate groupings under the
	// folder, so the source is re-reconciled before responding.
	if err := s.dedup.ReconcileZoneChange(r.Context(), sourceID, fz.FolderPath); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, fz)
}

func (s *Server) handleCompleteScan(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[types.CompleteScanRequest](r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	src, err := s.ingest.CompleteScan(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	scansCompleted.WithLabelValues(string(src.Status)).Inc()
	s.writeJSON(r.Context(), w, http.StatusOK, src)
}
