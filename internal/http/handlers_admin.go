package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/maddasher/titlebot/internal/core"
	"github.com/maddasher/titlebot/internal/engine"
)

// handleFullHistory serves /api/history: the whole audit journal,
// newest first.
func (s *Service) handleFullHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.history(w, r, "")
}

type apiHolding struct {
	Title    apiTitle `json:"title"`
	Held     bool     `json:"held"`
	Position int      `json:"position,omitempty"`
}

// handleHoldings serves /api/holders/{user}: every title the user
// holds or is queued for.
func (s *Service) handleHoldings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/holders/"), "/")
	user, err := url.PathUnescape(raw)
	if err != nil || user == "" {
		writeBadRequest(w, "user required")
		return
	}

	holdings := s.eng.TitlesFor(user)
	out := make([]apiHolding, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, apiHolding{
			Title:    toAPITitle(h.Title),
			Held:     h.Held,
			Position: h.Position,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "holdings": out})
}

type apiConfig struct {
	MinHoldMinutes          int      `json:"min_hold_minutes"`
	ReminderIntervalMinutes int      `json:"reminder_interval_minutes"`
	MaxReminders            int      `json:"max_reminders"`
	Guardians               []string `json:"guardians"`
	AnnounceChannel         string   `json:"announce_channel"`
}

func toAPIConfig(c core.Config) apiConfig {
	api := apiConfig{
		MinHoldMinutes:          c.MinHoldMinutes,
		ReminderIntervalMinutes: c.ReminderIntervalMinutes,
		MaxReminders:            c.MaxReminders,
		Guardians:               c.Guardians,
		AnnounceChannel:         c.AnnounceChannel,
	}
	if api.Guardians == nil {
		api.Guardians = []string{}
	}
	return api
}

// handleConfig serves /api/config: GET for anyone, PUT (partial update)
// for admins.
func (s *Service) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toAPIConfig(s.eng.GetConfig()))
	case http.MethodPut:
		if !adminAllowed(r) {
			writeForbidden(w, "admin key required")
			return
		}
		var req struct {
			MinHoldMinutes          *int      `json:"min_hold_minutes"`
			ReminderIntervalMinutes *int      `json:"reminder_interval_minutes"`
			MaxReminders            *int      `json:"max_reminders"`
			Guardians               *[]string `json:"guardians"`
			AnnounceChannel         *string   `json:"announce_channel"`
			Actor                   string    `json:"actor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid json")
			return
		}
		actor := strings.TrimSpace(req.Actor)
		if actor == "" {
			actor = "admin"
		}
		cfg, err := s.eng.UpdateConfig(engine.ConfigPatch{
			MinHoldMinutes:          req.MinHoldMinutes,
			ReminderIntervalMinutes: req.ReminderIntervalMinutes,
			MaxReminders:            req.MaxReminders,
			Guardians:               req.Guardians,
			AnnounceChannel:         req.AnnounceChannel,
		}, actor)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAPIConfig(cfg))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
