package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maddasher/titlebot/internal/auth"
	"github.com/maddasher/titlebot/internal/core"
)

type apiTitle struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Holder        string   `json:"holder,omitempty"`
	HeldSince     string   `json:"held_since,omitempty"`
	Queue         []string `json:"queue"`
	Status        string   `json:"status"`
	DueSince      string   `json:"due_since,omitempty"`
	ReminderCount int      `json:"reminder_count"`
	SnoozeUntil   string   `json:"snooze_until,omitempty"`
}

func toAPITitle(t core.Title) apiTitle {
	api := apiTitle{
		Name:          t.Name,
		Description:   t.Description,
		Holder:        t.Holder,
		HeldSince:     fmtTime(t.HeldSince),
		Queue:         t.Queue,
		Status:        string(t.Status),
		DueSince:      fmtTime(t.DueSince),
		ReminderCount: t.ReminderCount,
		SnoozeUntil:   fmtTime(t.SnoozeUntil),
	}
	if api.Queue == nil {
		api.Queue = []string{}
	}
	return api
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

type apiAuditRecord struct {
	ID        string `json:"id"`
	Timestamp string `json:"ts"`
	Title     string `json:"title,omitempty"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
}

func toAPIAudit(recs []core.AuditRecord) []apiAuditRecord {
	out := make([]apiAuditRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, apiAuditRecord{
			ID:        r.ID,
			Timestamp: fmtTime(r.Timestamp),
			Title:     r.Title,
			Actor:     r.Actor,
			Action:    string(r.Action),
			Detail:    r.Detail,
		})
	}
	return out
}

// guardianAllowed checks the privilege rule for ack/snooze/force-release:
// a guardian-or-better key, the localhost bypass, or a member key whose
// actor is on the operator-managed guardian roster.
func (s *Service) guardianAllowed(r *http.Request, actor string) bool {
	info, ok := auth.FromContext(r.Context())
	if !ok {
		return true // auth disabled
	}
	if info.Role.AtLeast(auth.RoleGuardian) {
		return true
	}
	return s.eng.GetConfig().IsGuardian(actor)
}

func adminAllowed(r *http.Request) bool {
	info, ok := auth.FromContext(r.Context())
	return !ok || info.Role.AtLeast(auth.RoleAdmin)
}

// handleTitles serves /api/titles: GET lists the registry, POST imports
// definitions (admin).
func (s *Service) handleTitles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		titles := s.eng.All()
		out := make([]apiTitle, 0, len(titles))
		for _, t := range titles {
			out = append(out, toAPITitle(t))
		}
		writeJSON(w, http.StatusOK, map[string]any{"titles": out})
	case http.MethodPost:
		if !adminAllowed(r) {
			writeForbidden(w, "admin key required")
			return
		}
		var req struct {
			Titles []core.TitleDef `json:"titles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid json")
			return
		}
		if len(req.Titles) == 0 {
			writeBadRequest(w, "titles required")
			return
		}
		created, err := s.eng.ImportTitles(req.Titles)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if created == nil {
			created = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"created": created})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleTitleByName dispatches /api/titles/{name} and its action
// sub-paths: claim, release, force-release, ack, snooze, history.
func (s *Service) handleTitleByName(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/titles/"), "/")
	if path == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	name, action, _ := strings.Cut(path, "/")

	if action == "" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		title, err := s.eng.Lookup(name)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAPITitle(title))
		return
	}

	if action == "history" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.history(w, r, name)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch action {
	case "claim":
		s.claim(w, r, name)
	case "release":
		s.release(w, r, name)
	case "force-release":
		s.forceRelease(w, r, name)
	case "ack":
		s.acknowledge(w, r, name)
	case "snooze":
		s.snooze(w, r, name)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func decodeActor(w http.ResponseWriter, r *http.Request, field string) (string, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid json")
		return "", false
	}
	v, _ := body[field].(string)
	return strings.TrimSpace(v), true
}

func (s *Service) claim(w http.ResponseWriter, r *http.Request, name string) {
	user, ok := decodeActor(w, r, "user")
	if !ok {
		return
	}
	res, err := s.eng.Claim(name, user)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result":   string(res.Outcome),
		"position": res.Position,
		"title":    toAPITitle(res.Title),
	})
}

func (s *Service) release(w http.ResponseWriter, r *http.Request, name string) {
	user, ok := decodeActor(w, r, "user")
	if !ok {
		return
	}
	title, err := s.eng.Release(name, user)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPITitle(title))
}

func (s *Service) forceRelease(w http.ResponseWriter, r *http.Request, name string) {
	actor, ok := decodeActor(w, r, "actor")
	if !ok {
		return
	}
	if !s.guardianAllowed(r, actor) {
		writeForbidden(w, "guardian key required")
		return
	}
	title, err := s.eng.ForceRelease(name, actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPITitle(title))
}

func (s *Service) acknowledge(w http.ResponseWriter, r *http.Request, name string) {
	actor, ok := decodeActor(w, r, "actor")
	if !ok {
		return
	}
	if !s.guardianAllowed(r, actor) {
		writeForbidden(w, "guardian key required")
		return
	}
	title, err := s.eng.Acknowledge(name, actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPITitle(title))
}

func (s *Service) snooze(w http.ResponseWriter, r *http.Request, name string) {
	var req struct {
		Actor   string `json:"actor"`
		Minutes int    `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json")
		return
	}
	actor := strings.TrimSpace(req.Actor)
	if !s.guardianAllowed(r, actor) {
		writeForbidden(w, "guardian key required")
		return
	}
	if req.Minutes == 0 {
		req.Minutes = 60
	}
	title, err := s.eng.Snooze(name, actor, time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPITitle(title))
}

func (s *Service) history(w http.ResponseWriter, r *http.Request, name string) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	recs, err := s.eng.History(name, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": toAPIAudit(recs)})
}
