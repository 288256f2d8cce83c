package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/handler"
	"github.com/noah-isme/credential-ledger-api/internal/middleware"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/credential-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/credential-ledger-api/pkg/middleware/requestid"
)

// Options carries the handlers and cross-cutting collaborators of the HTTP API.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	MetricsPath    string
	Logger         *zap.Logger
	Tokens         middleware.TokenValidator
	Observer       middleware.RequestObserver

	Approvals    *handler.ApprovalHandler
	Degrees      *handler.DegreeHandler
	Results      *handler.SemesterResultHandler
	Credentials  *handler.CredentialHandler
	Verification *handler.VerificationHandler
	Jobs         *handler.JobHandler
	Metrics      *handler.MetricsHandler
}

// New builds the gin engine.
func New(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Observer))

	if opts.Metrics != nil {
		r.GET("/health", opts.Metrics.Health)
		r.GET("/ready", opts.Metrics.Ready)
		if opts.MetricsPath != "" {
			r.GET(opts.MetricsPath, opts.Metrics.Prometheus)
		}
	}
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)

	if opts.Verification != nil {
		verify := api.Group("/verify")
		verify.GET("/share/:token", opts.Verification.ByShareToken)
		verify.GET("/hash/:hash", opts.Verification.ByHash)
		verify.GET("/token/:tokenId", opts.Verification.ByTokenID)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleAcademic, models.RoleRegistrar)
	registrar := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar)
	academic := middleware.RequireRoles(models.RoleAcademic)
	admin := middleware.RequireRoles(models.RoleAdmin)

	if h := opts.Approvals; h != nil {
		approvals := secured.Group("/approvals")
		approvals.GET("/pending", staff, h.ListPending)
		approvals.GET("/:id", staff, h.Get)
		approvals.POST("", staff, h.Create)
		approvals.POST("/:id/review", middleware.RequireRoles(models.RoleAdmin, models.RoleAcademic), h.Review)
	}

	if h := opts.Degrees; h != nil {
		degrees := secured.Group("/degree-proposals")
		degrees.POST("", registrar, h.Create)
		degrees.GET("/:id", staff, h.Get)
		degrees.POST("/:id/submit", registrar, h.Submit)
		degrees.POST("/:id/academic-review", academic, h.AcademicReview)
		degrees.POST("/:id/admin-review", admin, h.AdminReview)
		secured.GET("/students/:id/degree-eligibility", staff, h.Eligibility)
	}

	if h := opts.Results; h != nil {
		secured.POST("/semester-results/:id/submit", registrar, h.Submit)
	}

	if h := opts.Credentials; h != nil {
		credentials := secured.Group("/credentials")
		credentials.POST("", registrar, h.Create)
		credentials.GET("", staff, h.List)
		credentials.GET("/:id", staff, h.Get)
		credentials.POST("/:id/issue", registrar, h.Issue)
		credentials.POST("/:id/revoke", admin, h.Revoke)
		credentials.POST("/:id/replace", admin, h.Replace)
		credentials.GET("/:id/reconcile", admin, h.Reconcile)
		credentials.POST("/:id/share-links", registrar, h.CreateShareLink)
		secured.DELETE("/share-links/:id", registrar, h.RevokeShareLink)
	}

	if h := opts.Jobs; h != nil {
		jobs := secured.Group("/jobs", admin)
		jobs.GET("/failed", h.ListFailed)
		jobs.GET("/dead-letters/:queue", h.DeadLetters)
	}

	return r
}
