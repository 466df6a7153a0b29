package main

import (
	"context"
	"net/http"
	"time"

	"huntduel/internal/catalog"
	"huntduel/internal/config"
	"huntduel/internal/duel"
	"huntduel/internal/ledger"
	"huntduel/internal/logging"
	"huntduel/internal/notify"
	"huntduel/internal/store"
	httptransport "huntduel/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}

	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	seedAbilities(st)

	policy, err := duel.ParsePolicy(cfg.ExpiryPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("parse expiry policy failed")
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		Enabled:    cfg.NotifyEnabled,
		WebhookURL: cfg.NotifyWebhookURL,
	}, nil)
	if err := dispatcher.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("notify dispatcher start failed")
	}

	svc := duel.New(st, catalog.New(st), ledger.New(st), dispatcher, duel.Config{
		DefenseWindow:    time.Duration(cfg.DefenseWindowSecs) * time.Second,
		StakePercentages: cfg.StakePercentages,
		ExpiryPolicy:     policy,
	})
	svc.StartSweeper(context.Background(), time.Duration(cfg.SweepIntervalSecs)*time.Second)

	r := httptransport.NewRouter(st, cfg, svc)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

// seedAbilities makes a fresh database playable without an admin round trip.
// Existing rows win; the upserts only fill gaps.
func seedAbilities(st *store.Store) {
	ctx := context.Background()
	defaults := []store.Ability{
		{Key: "water_balloon", Name: "Water Balloon", Kind: store.AbilityKindWeapon, Power: 10, CostResource: store.ResourceEnergy, CostAmount: 5, CooldownSeconds: 30, MinRank: 1, Enabled: true},
		{Key: "stink_bomb", Name: "Stink Bomb", Kind: store.AbilityKindWeapon, Power: 25, CostResource: store.ResourceEnergy, CostAmount: 12, CooldownSeconds: 90, MinRank: 2, Enabled: true},
		{Key: "glitter_cannon", Name: "Glitter Cannon", Kind: store.AbilityKindWeapon, Power: 40, CostResource: store.ResourceBuzzCredits, CostAmount: 20, CooldownSeconds: 180, MinRank: 3, Enabled: true},
		{Key: "umbrella", Name: "Umbrella", Kind: store.AbilityKindDefense, Power: 15, CostResource: store.ResourceEnergy, CostAmount: 3, CooldownSeconds: 20, MinRank: 1, Enabled: true},
		{Key: "gas_mask", Name: "Gas Mask", Kind: store.AbilityKindDefense, Power: 30, CostResource: store.ResourceEnergy, CostAmount: 8, CooldownSeconds: 60, MinRank: 2, Enabled: true},
		{Key: "mirror_shield", Name: "Mirror Shield", Kind: store.AbilityKindDefense, Power: 45, CostResource: store.ResourceBuzzCredits, CostAmount: 15, CooldownSeconds: 120, MinRank: 3, Enabled: true},
	}
	for _, a := range defaults {
		if _, err := st.GetAbility(ctx, a.Key); err == nil {
			continue
		}
		if err := st.UpsertAbility(ctx, a); err != nil {
			log.Error().Err(err).Str("key", a.Key).Msg("seed ability failed")
		}
	}
	modifiers := []store.AbilityModifier{
		{DefenseKey: "umbrella", WeaponKey: "water_balloon", PowerDelta: 10},
		{DefenseKey: "gas_mask", WeaponKey: "stink_bomb", PowerDelta: 15},
		{DefenseKey: "mirror_shield", WeaponKey: "glitter_cannon", PowerDelta: 10},
	}
	for _, m := range modifiers {
		if err := st.UpsertAbilityModifier(ctx, m); err != nil {
			log.Error().Err(err).Str("defense", m.DefenseKey).Str("weapon", m.WeaponKey).Msg("seed ability modifier failed")
		}
	}
}
