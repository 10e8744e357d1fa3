package server

import (
	"net/http"

	"github.com/archivum/archivum/internal/types"
)

// duplicateGroupView is a group plus its member files, as served to the UI.
type duplicateGroupView struct {
	types.DuplicateGroup
	Files []types.ScannedFile `json:"files,omitempty"`
}

func (s *Server) handleListDuplicates(w http.ResponseWriter, r *http.Request) {
	status := types.GroupStatus(r.URL.Query().Get("status"))
	page, size := pageParams(r)

	groups, err := s.store.ListDuplicateGroups(r.Context(), status, page, size)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	out := types.Page[duplicateGroupView]{
		Page: groups.Page, Size: groups.Size, TotalItems: groups.TotalItems,
		Items: make([]duplicateGroupView, 0, len(groups.Items)),
	}
	withFiles := r.URL.Query().Get("expand") == "files"
	for _, g := range groups.Items {
		view := duplicateGroupView{DuplicateGroup: g}
		if withFiles {
			files, err := s.store.FilesByHash(r.Context(), g.SHA256)
			if err != nil {
				s.writeError(r.Context(), w, err)
				return
			}
			view.Files = files
		}
		out.Items = append(out.Items, view)
	}
	s.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (s *Server) handleResolveDuplicate(w http.ResponseWriter, r *http.Request) {
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
	id := r.PathValue("groupId")
	if err := s.store.ResolveDuplicateGroup(r.Context(), id, req.Status, req.KeptFileID); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	g, err := s.store.GetDuplicateGroup(r.Context(), id)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, g)
}
