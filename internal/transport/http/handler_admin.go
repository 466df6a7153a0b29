package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"huntduel/internal/store"
)

type AdminHandlers struct {
	store *store.Store
}

func NewAdminHandlers(st *store.Store) *AdminHandlers {
	return &AdminHandlers{store: st}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) Abilities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			items, err := h.store.ListAbilities(r.Context())
			if err != nil {
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
		case http.MethodPost:
			var body store.Ability
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			if body.Key == "" || body.Name == "" || body.Power < 0 || body.CostAmount < 0 || body.MinRank < 0 {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			if body.Kind != store.AbilityKindWeapon && body.Kind != store.AbilityKindDefense {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			if !store.ValidResource(body.CostResource) {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			if err := h.store.UpsertAbility(r.Context(), body); err != nil {
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		default:
			WriteHTTPError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		}
	}
}

func (h *AdminHandlers) AbilityModifiers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			DefenseKey string `json:"defense_key"`
			WeaponKey  string `json:"weapon_key"`
			PowerDelta int64  `json:"power_delta"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.DefenseKey == "" || body.WeaponKey == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		m := store.AbilityModifier{DefenseKey: body.DefenseKey, WeaponKey: body.WeaponKey, PowerDelta: body.PowerDelta}
		if err := h.store.UpsertAbilityModifier(r.Context(), m); err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *AdminHandlers) Ledger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		f := store.LedgerFilter{
			UserID:   r.URL.Query().Get("user_id"),
			Resource: r.URL.Query().Get("resource"),
			RefID:    r.URL.Query().Get("ref_id"),
		}
		if v := r.URL.Query().Get("from"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				f.From = &t
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				f.To = &t
			}
		}
		items, err := h.store.ListLedgerEntries(r.Context(), f, limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit, "offset": offset})
	}
}

func (h *AdminHandlers) Topup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID   string `json:"user_id"`
			Resource string `json:"resource"`
			Amount   int64  `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.UserID == "" || body.Amount <= 0 || !store.ValidResource(body.Resource) {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		refID := strconv.FormatInt(time.Now().UnixNano(), 10)
		bal, err := h.store.Credit(r.Context(), body.UserID, body.Resource, body.Amount, "topup_credit", "topup", refID)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "balance": bal})
	}
}

func (h *AdminHandlers) Profiles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID     string  `json:"user_id"`
			Rank       int     `json:"rank"`
			GhostUntil *string `json:"ghost_until"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.UserID == "" || body.Rank < 1 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		var ghostUntil *time.Time
		if body.GhostUntil != nil && *body.GhostUntil != "" {
			t, err := time.Parse(time.RFC3339, *body.GhostUntil)
			if err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			ghostUntil = &t
		}
		if err := h.store.UpsertProfile(r.Context(), body.UserID, body.Rank, ghostUntil); err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

// EscrowTotals reports how much of each resource is held in open escrow,
// used for conservation checks during an incident.
func (h *AdminHandlers) EscrowTotals() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		totals := map[string]int64{}
		for _, res := range []string{store.ResourceEnergy, store.ResourceBuzzCredits, store.ResourceClueCredits} {
			sum, err := h.store.SumOpenEscrow(r.Context(), res)
			if err != nil {
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			totals[res] = sum
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"open_escrow": totals})
	}
}
