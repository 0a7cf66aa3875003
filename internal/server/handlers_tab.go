package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tabcoach/tabcoach/pkg/types"
)

// rescanTimeout bounds how long a forwarded rescan waits for the observer's
// reply before the bus call fails.
const rescanTimeout = 10 * time.Second

func tabID(r *http.Request) string {
	return chi.URLParam(r, "tabID")
}

func (s *Server) handleGetTabState(w http.ResponseWriter, r *http.Request) {
	state, err := s.tabs.Get(r.Context(), tabID(r))
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, map[string]any{"state": state})
}

func (s *Server) handlePostContext(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Context *types.ProblemContext `json:"context"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid context payload: "+err.Error())
		return
	}
	if body.Context == nil {
		writeFail(w, http.StatusBadRequest, "context is required")
		return
	}

	state, err := s.tabs.Merge(r.Context(), tabID(r), types.TabStatePatch{Context: body.Context})
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, map[string]any{"state": state})
}

func (s *Server) handlePostSnapshot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CodeSnapshot *types.CodeSnapshot `json:"codeSnapshot"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid snapshot payload: "+err.Error())
		return
	}
	if body.CodeSnapshot == nil {
		writeFail(w, http.StatusBadRequest, "codeSnapshot is required")
		return
	}

	// Whitespace-only captures are dropped inside Merge; the call still
	// succeeds and returns the unchanged state.
	state, err := s.tabs.Merge(r.Context(), tabID(r), types.TabStatePatch{CodeSnapshot: body.CodeSnapshot})
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, map[string]any{"state": state, "stored": state.CodeSnapshot.Valid()})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.tabs.History(r.Context(), tabID(r))
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, map[string]any{"history": history})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.tabs.ClearHistory(r.Context(), tabID(r)); err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, nil)
}

// handleRescan forwards a RESCAN_CONTEXT command to the tab's observer,
// waits for the correlated reply, merges the fresh context, and relays it.
func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	id := tabID(r)

	pctx, err := s.observers.Rescan(r.Context(), id, rescanTimeout)
	if errors.Is(err, ErrNoObserver) {
		writeFail(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeFail(w, http.StatusBadGateway, err.Error())
		return
	}

	state, err := s.tabs.Merge(r.Context(), id, types.TabStatePatch{Context: pctx})
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, map[string]any{"context": state.Context})
}

// handleCloseTab tears down everything tied to a tab: any live stream is
// canceled first so its session observes the abort, then state and history
// are removed.
func (s *Server) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	id := tabID(r)

	s.sessions.CancelTab(id)

	if err := s.tabs.Delete(r.Context(), id); err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, nil)
}
