package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MeKo-Tech/lanedetect/internal/store"
)

// RunDetail is a stored run with its frames.
type RunDetail struct {
	*store.Run
	Frames []*store.FrameRecord `json:"frames"`
}

func (s *Server) runsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.runs == nil {
		writeErrorResponse(w, http.StatusNotFound, "run history is not enabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeErrorResponse(w, http.StatusNotFound, "run history is not enabled")
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		run, err := s.runs.GetRun(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		frames, err := s.runs.FrameResults(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if frames == nil {
			frames = []*store.FrameRecord{}
		}
		writeJSON(w, http.StatusOK, RunDetail{Run: run, Frames: frames})
	case http.MethodDelete:
		if err := s.runs.DeleteRun(id); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeErrorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	writeErrorResponse(w, http.StatusInternalServerError, err.Error())
}
