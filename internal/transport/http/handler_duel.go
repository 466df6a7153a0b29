package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"huntduel/internal/duel"

	"github.com/go-chi/chi/v5"
)

type DuelHandlers struct {
	svc *duel.Service
}

func NewDuelHandlers(svc *duel.Service) *DuelHandlers {
	return &DuelHandlers{svc: svc}
}

func (h *DuelHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AttackerID      string `json:"attacker_id"`
			DefenderID      string `json:"defender_id"`
			WeaponKey       string `json:"weapon_key"`
			StakePercentage int    `json:"stake_percentage"`
			Instant         bool   `json:"instant"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.AttackerID == "" || body.DefenderID == "" || body.WeaponKey == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		res, err := h.svc.CreateDuel(r.Context(), body.AttackerID, body.DefenderID, body.WeaponKey, body.StakePercentage, body.Instant)
		if err != nil {
			writeDuelError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	}
}

func (h *DuelHandlers) Defend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		var body struct {
			DefenderID string `json:"defender_id"`
			DefenseKey string `json:"defense_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if sessionID == "" || body.DefenderID == "" || body.DefenseKey == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		res, err := h.svc.SubmitDefense(r.Context(), sessionID, body.DefenderID, body.DefenseKey)
		if err != nil {
			writeDuelError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	}
}

func (h *DuelHandlers) Active() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		items, err := h.svc.GetActiveDuels(r.Context(), userID)
		if err != nil {
			writeDuelError(w, err)
			return
		}
		type sessionView struct {
			SessionID     string `json:"session_id"`
			AttackerID    string `json:"attacker_id"`
			DefenderID    string `json:"defender_id"`
			WeaponKey     string `json:"weapon_key"`
			StakeResource string `json:"stake_resource"`
			StakeAmount   int64  `json:"stake_amount"`
			Status        string `json:"status"`
			ExpiresAt     string `json:"expires_at"`
		}
		views := make([]sessionView, 0, len(items))
		for _, s := range items {
			views = append(views, sessionView{
				SessionID:     s.ID,
				AttackerID:    s.AttackerID,
				DefenderID:    s.DefenderID,
				WeaponKey:     s.WeaponKey,
				StakeResource: s.StakeResource,
				StakeAmount:   s.StakeAmount,
				Status:        s.Status,
				ExpiresAt:     s.ExpiresAt.UTC().Format(time.RFC3339),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": views})
	}
}

func (h *DuelHandlers) Cooldowns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		items, err := h.svc.GetCooldowns(r.Context(), userID)
		if err != nil {
			writeDuelError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}
}
