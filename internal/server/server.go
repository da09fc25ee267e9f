package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/vouchnet/vouchnet/internal/account/domain"
	"github.com/vouchnet/vouchnet/internal/config"
	invitationdomain "github.com/vouchnet/vouchnet/internal/invitation/domain"
	"github.com/vouchnet/vouchnet/internal/observability"
	obsmiddleware "github.com/vouchnet/vouchnet/internal/observability/logger"
	obsmetrics "github.com/vouchnet/vouchnet/internal/observability/metrics"
	obstracing "github.com/vouchnet/vouchnet/internal/observability/tracing"
	payoutdomain "github.com/vouchnet/vouchnet/internal/payout/domain"
	referraldomain "github.com/vouchnet/vouchnet/internal/referral/domain"
	relationshipdomain "github.com/vouchnet/vouchnet/internal/relationship/domain"
	trustledgerdomain "github.com/vouchnet/vouchnet/internal/trustledger/domain"
	trustrankdomain "github.com/vouchnet/vouchnet/internal/trustrank/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Log:   log,
		Debug: obsCfg.Debug(),
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(log, obsCfg, metrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	accountSvc      accountdomain.Service
	ledgerSvc       trustledgerdomain.Service
	invitationSvc   invitationdomain.Service
	relationshipSvc relationshipdomain.Service
	trustrankSvc    trustrankdomain.Service
	referralSvc     referraldomain.Service
	payoutSvc       payoutdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	AccountSvc      accountdomain.Service
	LedgerSvc       trustledgerdomain.Service
	InvitationSvc   invitationdomain.Service
	RelationshipSvc relationshipdomain.Service
	TrustrankSvc    trustrankdomain.Service
	ReferralSvc     referraldomain.Service
	PayoutSvc       payoutdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		accountSvc:      p.AccountSvc,
		ledgerSvc:       p.LedgerSvc,
		invitationSvc:   p.InvitationSvc,
		relationshipSvc: p.RelationshipSvc,
		trustrankSvc:    p.TrustrankSvc,
		referralSvc:     p.ReferralSvc,
		payoutSvc:       p.PayoutSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Accounts --------
	api.POST("/accounts", s.CreateAccount)
	api.GET("/accounts/:id", s.GetAccountByID)
	api.GET("/accounts/:id/trust", s.GetTrustBalance)

	// -------- Invitations --------
	api.POST("/invitations", s.SendInvitation)
	api.GET("/invitations/:code", s.GetInvitationByCode)
	api.POST("/invitations/:code/accept", s.AcceptInvitation)

	// -------- Rankings --------
	api.GET("/rankings", s.LatestRanking)
	api.GET("/rankings/history", s.RankingHistory)

	// -------- Referrals --------
	api.POST("/referrals", s.SubmitReferral)
	api.GET("/referrals/:id", s.GetReferralByID)
	api.GET("/referrals/:id/chain", s.GetReferralChain)
	api.POST("/referrals/:id/status", s.UpdateReferralStatus)

	// -------- Payouts --------
	api.POST("/referrals/:id/splits", s.ComputePayoutSplits)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/trust/recompute", s.RecomputeTrust)
	admin.POST("/relationships/reconcile", s.ReconcileRelationships)
}
