package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xeipuuv/gojsonschema"

	"finance-ledger-go/internal/auth"
	"finance-ledger-go/internal/config"
)

type Server struct {
	cfg              *config.Config
	jwt              *auth.JWTManager
	settlementSchema *gojsonschema.Schema
	extraSchema      *gojsonschema.Schema
}

func NewServer(cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors(cfg.AllowOrigins))
	r.Use(timeout(cfg.ReqTimeoutSec))
	r.Use(logging())

	s := &Server{
		cfg:              cfg,
		jwt:              auth.NewJWTManager(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour),
		settlementSchema: mustSchema(settlementPlanSchema),
		extraSchema:      mustSchema(extraPaymentSchema),
	}

	// Auth
	r.POST("/v1/auth/guest", s.authGuest)
	r.POST("/v1/auth/register", s.authRegister)
	r.POST("/v1/auth/login", s.authLogin)

	// Protected routes
	authorized := r.Group("/v1")
	authorized.Use(AuthMiddleware(s.jwt))
	{
		authorized.POST("/accounts", s.createAccount)
		authorized.GET("/accounts", s.listAccounts)
		authorized.GET("/accounts/:id", s.getAccount)
		authorized.DELETE("/accounts/:id", s.archiveAccount)
		authorized.GET("/accounts/:id/breakdown", s.getBreakdown)

		authorized.POST("/goals", s.createGoal)
		authorized.GET("/goals", s.listGoals)

		authorized.POST("/transfers", s.createTransfer)

		authorized.POST("/liabilities", s.createLiability)
		authorized.GET("/liabilities", s.listLiabilities)
		authorized.GET("/liabilities/:id", s.getLiability)
		authorized.GET("/liabilities/:id/schedule", s.listSchedule)
		authorized.POST("/liabilities/:id/payments", s.recordPayment)
		authorized.POST("/payments/lump", s.recordLumpPayment)

		authorized.POST("/liabilities/:id/schedule/:entry/skip", s.skipEntry)
		authorized.POST("/liabilities/:id/schedule/:entry/postpone", s.postponeEntry)
		authorized.POST("/liabilities/:id/schedule/:entry/amount", s.changeEntryAmount)
		authorized.POST("/liabilities/:id/extra-payment", s.extraPayment)

		authorized.GET("/liabilities/:id/settlement", s.settlementPreview)
		authorized.POST("/liabilities/:id/settle", s.settleLiability)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	return r
}
