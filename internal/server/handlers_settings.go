package server

import (
	"net/http"

	"github.com/tabcoach/tabcoach/pkg/types"
)

// settingsView is what leaves the process. The raw credential never does;
// callers only learn whether one is set.
func settingsView(cfg types.Settings) map[string]any {
	return map[string]any{
		"provider":      cfg.Provider,
		"model":         cfg.Model,
		"hasApiKey":     cfg.APIKey != "",
		"coachingStyle": cfg.CoachingStyle,
		"verbosity":     cfg.Verbosity,
		"temperature":   cfg.Temperature,
		"customPrompt":  cfg.CustomPrompt,
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settings.Get(r.Context())
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, map[string]any{"settings": settingsView(cfg)})
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch types.SettingsPatch
	if err := decodeBody(r, &patch); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid settings patch: "+err.Error())
		return
	}

	cfg, err := s.settings.Save(r.Context(), patch)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, map[string]any{"settings": settingsView(cfg)})
}
