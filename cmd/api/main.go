package main

import (
	"context"
	"log"
	"time"

	"drydock/internal/admission"
	"drydock/internal/config"
	"drydock/internal/guardrail"
	httpapi "drydock/internal/http"
	"drydock/internal/infra/artifact"
	"drydock/internal/infra/db"
	"drydock/internal/infra/engine"
	"drydock/internal/infra/idemcache"
	"drydock/internal/infra/ratelimit"
	"drydock/internal/usecase"
)

func main() {
	cfg := config.FromEnv()
	runtime := config.NewRuntime(cfg)

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	deployments := db.NewDeploymentRepository(store.DB)
	groups := db.NewDeliveryGroupRepository(store.DB)
	recipes := db.NewRecipeRepository(store.DB)
	builds := db.NewBuildRepository(store.DB)
	capabilities := db.NewCapabilityRepository(store.DB)
	publishers := db.NewPublisherRepository(store.DB)
	audit := db.NewAuditEventRepository(store.DB)

	limits, cache, err := sharedStores(cfg)
	if err != nil {
		log.Fatalf("failed to init shared stores: %v", err)
	}

	controller := admission.NewController(limits, runtime, time.Now)
	guardrails := guardrail.NewEngine(cfg, runtime, groups, deployments)
	engineClient := engine.New(cfg)

	var checker usecase.ArtifactChecker
	if cfg.ArtifactCheckEnabled {
		s3, err := artifact.NewS3Checker(context.Background(), cfg.ArtifactRegion)
		if err != nil {
			log.Fatalf("failed to init artifact checker: %v", err)
		}
		checker = s3
	}

	deployService := usecase.NewDeploymentService(
		deployments, groups, recipes, builds,
		guardrails, controller, engineClient, checker,
		runtime, cfg.AllowPromotionJumps,
	)
	buildService := usecase.NewBuildService(builds, capabilities, publishers, groups, guardrails, controller)
	adminService := usecase.NewAdminService(runtime, publishers, groups, audit, controller)

	srv := httpapi.NewServer(cfg, httpapi.ServerDeps{
		Deployments: deployService,
		Builds:      buildService,
		Admin:       adminService,
		Admission:   controller,
		Cache:       cache,
	})
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// sharedStores picks the admission and idempotency backends: redis when
// configured so multiple replicas share state, process-local memory
// otherwise.
func sharedStores(cfg config.Config) (ratelimit.Store, idemcache.Store, error) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{}), idemcache.NewMemoryStore(time.Now), nil
	}
	limits, err := ratelimit.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Now)
	if err != nil {
		return nil, nil, err
	}
	cache, err := idemcache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return limits, cache, nil
}
