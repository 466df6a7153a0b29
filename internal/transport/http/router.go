package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"huntduel/internal/config"
	"huntduel/internal/duel"
	"huntduel/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(st *store.Store, cfg config.ServerConfig, svc *duel.Service) *chi.Mux {
	duelHandlers := NewDuelHandlers(svc)
	adminHandlers := NewAdminHandlers(st)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Post("/duels", duelHandlers.Create())
		r.Post("/duels/{session_id}/defense", duelHandlers.Defend())
		r.Get("/duels/active", duelHandlers.Active())
		r.Get("/cooldowns", duelHandlers.Cooldowns())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.MethodFunc(http.MethodGet, "/admin/abilities", adminHandlers.Abilities())
			r.MethodFunc(http.MethodPost, "/admin/abilities", adminHandlers.Abilities())
			r.Post("/admin/ability-modifiers", adminHandlers.AbilityModifiers())
			r.Get("/admin/ledger", adminHandlers.Ledger())
			r.Post("/admin/topup", adminHandlers.Topup())
			r.Post("/admin/profiles", adminHandlers.Profiles())
			r.Get("/admin/escrow", adminHandlers.EscrowTotals())
			r.Get("/admin/debug/vars", expvar.Handler().ServeHTTP)
		})
	})

	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
