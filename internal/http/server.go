package http

import (
	"log"
	"time"

	"drydock/internal/admission"
	"drydock/internal/config"
	"drydock/internal/domain/deploy"
	adminhttp "drydock/internal/http/admin"
	"drydock/internal/http/auth"
	buildhttp "drydock/internal/http/builds"
	"drydock/internal/http/common"
	deployhttp "drydock/internal/http/deployments"
	"drydock/internal/infra/idemcache"
	"drydock/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	deployments   *usecase.DeploymentService
	builds        *usecase.BuildService
	admin         *usecase.AdminService
	admission     *admission.Controller
	cache         idemcache.Store
	ttl           time.Duration
	authenticator common.Authenticator
	authorizer    common.Authorizer
}

type ServerDeps struct {
	Deployments   *usecase.DeploymentService
	Builds        *usecase.BuildService
	Admin         *usecase.AdminService
	Admission     *admission.Controller
	Cache         idemcache.Store
	Authenticator common.Authenticator
	Authorizer    common.Authorizer
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(common.RequestIDMiddleware())

	s := &Server{
		cfg:           cfg,
		r:             r,
		deployments:   deps.Deployments,
		builds:        deps.Builds,
		admin:         deps.Admin,
		admission:     deps.Admission,
		cache:         deps.Cache,
		ttl:           cfg.IdempotencyTTL(),
		authenticator: deps.Authenticator,
		authorizer:    deps.Authorizer,
	}
	if s.authenticator == nil {
		s.authenticator = auth.NewHeaderAuthenticator()
	}
	if s.authorizer == nil {
		s.authorizer = auth.NewAuthorizer()
	}
	s.routes()
	return s
}

func (s *Server) Run() error {
	addr := s.cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("drydock listening on %s", addr)
	return s.r.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() *gin.Engine {
	return s.r
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	deployHandler := deployhttp.NewHandler(s.deployments)
	buildHandler := buildhttp.NewHandler(s.builds)
	adminHandler := adminhttp.NewHandler(s.admin)

	v1 := s.r.Group("/v1")
	{
		authFor := func(permission string) gin.HandlerFunc {
			return common.AuthMiddleware(s.authenticator, s.authorizer, permission)
		}
		read := common.RateLimitRead(s.admission)
		mutate := common.RateLimitMutate(s.admission)
		// idem runs before mutate so a cached replay is served without
		// consuming rate-limit budget.
		idem := common.Idempotent(s.cache, s.ttl)

		v1.POST("/deployments", authFor(deploy.PermDeployWrite), idem, mutate, deployHandler.HandleCreate)
		v1.POST("/deployments/validate", authFor(deploy.PermDeployWrite), read, deployHandler.HandleValidate)
		v1.GET("/deployments", authFor(deploy.PermDeployRead), read, deployHandler.HandleList)
		v1.GET("/deployments/:id", authFor(deploy.PermDeployRead), read, deployHandler.HandleGet)
		v1.GET("/deployments/:id/failures", authFor(deploy.PermDeployRead), read, deployHandler.HandleFailures)
		v1.POST("/deployments/:id/rollback", authFor(deploy.PermDeployRollback), idem, mutate, deployHandler.HandleRollback)
		v1.POST("/promotions", authFor(deploy.PermDeployPromote), idem, mutate, deployHandler.HandlePromote)
		v1.POST("/promotions/validate", authFor(deploy.PermDeployPromote), read, deployHandler.HandleValidatePromotion)

		v1.POST("/builds/upload-capability", authFor(deploy.PermBuildWrite), idem, mutate, buildHandler.HandleCreateUploadCapability)
		v1.POST("/builds", authFor(deploy.PermBuildWrite), idem, mutate, buildHandler.HandleRegister)
		v1.GET("/builds/:service/:version", authFor(deploy.PermBuildRead), read, buildHandler.HandleGet)

		v1.GET("/admin/rate-limits", authFor(deploy.PermAdminRead), read, adminHandler.HandleGetRateLimits)
		v1.GET("/admin/quota-usage", authFor(deploy.PermAdminRead), read, adminHandler.HandleQuotaUsage)
		v1.PUT("/admin/rate-limits", authFor(deploy.PermAdminWrite), idem, mutate, adminHandler.HandleSetRateLimits)
		v1.GET("/admin/ci-publishers", authFor(deploy.PermAdminRead), read, adminHandler.HandleListPublishers)
		v1.POST("/admin/ci-publishers", authFor(deploy.PermAdminWrite), idem, mutate, adminHandler.HandleCreatePublisher)
		v1.DELETE("/admin/ci-publishers/:name", authFor(deploy.PermAdminWrite), idem, mutate, adminHandler.HandleDeletePublisher)
		v1.GET("/admin/ui-exposure", authFor(deploy.PermAdminRead), read, adminHandler.HandleGetUIExposure)
		v1.PUT("/admin/ui-exposure", authFor(deploy.PermAdminWrite), idem, mutate, adminHandler.HandleSetUIExposure)
		v1.GET("/admin/mutations", authFor(deploy.PermAdminRead), read, adminHandler.HandleGetMutations)
		v1.PUT("/admin/mutations", authFor(deploy.PermAdminWrite), idem, mutate, adminHandler.HandleSetMutations)
	}
}
