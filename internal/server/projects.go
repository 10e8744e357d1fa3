package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/archivum/archivum/internal/types"
)

// projectBulkRequest is the scanner's code-projects.json payload.
type projectBulkRequest struct {
	SourceID string              `json:"sourceId"`
	Projects []types.CodeProject `json:"projects"`
}

func (s *Server) handleProjectBulk(w http.ResponseWriter, r *http.Request) {
	// The scanner posts a bare array; a {sourceId, projects} wrapper is also
	// accepted for UI use.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var projects []types.CodeProject
	var sourceID string
	if jsonErr := json.Unmarshal(body, &projects); jsonErr != nil {
		var wrapper projectBulkRequest
		if jsonErr := json.Unmarshal(body, &wrapper); jsonErr != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		projects = wrapper.Projects
		sourceID = wrapper.SourceID
	}
	if sourceID == "" && len(projects) > 0 {
		sourceID = projects[0].SourceID
	}

	if len(projects) > 0 && sourceID == "" {
		http.Error(w, "sourceId is required", http.StatusBadRequest)
		return
	}
	if err := s.ingest.IngestCodeProjects(r.Context(), sourceID, projects); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusCreated, map[string]int{"accepted": len(projects)})
}

func (s *Server) handleCreateManualProject(w http.ResponseWriter, r *http.Request) {
	p, err := decodeBody[types.CodeProject](r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	created, err := s.ingest.CreateManualProject(r.Context(), p)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusCreated, created)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	result, err := s.store.ListProjects(r.Context(), r.URL.Query().Get("sourceId"), page, size)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, result)
}

func (s *Server) handleListProjectDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListProjectGroups(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if groups == nil {
		groups = []types.CodeProjectDuplicateGroup{}
	}
	s.writeJSON(r.Context(), w, http.StatusOK, groups)
}

func (s *Server) handleResolveProjectDuplicate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[types.ResolveGroupRequest](r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	switch req.Status {
	case types.GroupReviewed, types.GroupResolved, types.GroupIgnored:
	default:
		http.Error(w, "status must be REVIEWED, RESOLVED or IGNORED", http.StatusBadRequest)
		return
	}
	if err := s.store.ResolveProjectGroup(r.Context(), r.PathValue("groupId"), req.Status); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": string(req.Status)})
}
