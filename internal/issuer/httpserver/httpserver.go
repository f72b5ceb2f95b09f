// Package httpserver exposes the issuer api over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	ginratelimit "github.com/ljahier/gin-ratelimit"
	"github.com/moogar0880/problems"
	swaggerfiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"

	_ "dtw/docs"
	"dtw/internal/issuer/apiv1"
	"dtw/internal/issuer/db"
	"dtw/pkg/didresolver"
	"dtw/pkg/logger"
	"dtw/pkg/model"
	"dtw/pkg/trace"
	"dtw/pkg/vcerror"
)

// Apiv1 is the issuer api surface served by this package.
type Apiv1 interface {
	Generate(ctx context.Context, req *apiv1.GenerateRequest) (*apiv1.GenerateReply, error)
	Query(ctx context.Context, req *apiv1.QueryRequest) (*db.CredentialDoc, error)
	Revoke(ctx context.Context, req *apiv1.ChangeStateRequest) (*apiv1.ChangeStateReply, error)
	Suspend(ctx context.Context, req *apiv1.ChangeStateRequest) (*apiv1.ChangeStateReply, error)
	Recover(ctx context.Context, req *apiv1.ChangeStateRequest) (*apiv1.ChangeStateReply, error)
	StatusList(ctx context.Context, req *apiv1.StatusListRequest) (string, error)
	DIDDocument(ctx context.Context) (*didresolver.Document, error)
	JWKS(ctx context.Context) (json.RawMessage, error)
	Export(ctx context.Context) (*apiv1.ExportReply, error)
	Health(ctx context.Context) (*model.Health, error)
}

// Service is the issuer HTTP frontend.
type Service struct {
	cfg    *model.Cfg
	log    *logger.Log
	tracer *trace.Tracer
	apiv1  Apiv1
	gin    *gin.Engine
	server *http.Server
}

// New builds the issuer HTTP frontend and its routing table.
func New(ctx context.Context, cfg *model.Cfg, api Apiv1, tracer *trace.Tracer, log *logger.Log) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		log:    log,
		tracer: tracer,
		apiv1:  api,
	}

	if cfg.Common.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	s.gin = gin.New()
	s.gin.Use(cors.Default())
	s.gin.Use(gzip.Gzip(gzip.DefaultCompression))
	s.gin.Use(gin.CustomRecovery(s.recoveryHandler))
	if cfg.Issuer.APIServer.RateLimit.Enabled {
		bucket := ginratelimit.NewTokenBucket(cfg.Issuer.APIServer.RateLimit.RequestsPerMinute, time.Minute)
		s.gin.Use(ginratelimit.RateLimitByIP(bucket))
	}
	s.gin.NoRoute(func(c *gin.Context) {
		problem := problems.NewDetailedProblem(http.StatusNotFound, "no such endpoint")
		c.JSON(http.StatusNotFound, problem)
	})

	rgRoot := s.gin.Group("/")
	s.regEndpoint(rgRoot, http.MethodGet, "health", http.StatusOK, s.endpointHealth)

	rgWellKnown := s.gin.Group(".well-known")
	s.regEndpoint(rgWellKnown, http.MethodGet, "did.json", http.StatusOK, s.endpointDIDDocument)
	s.regEndpoint(rgWellKnown, http.MethodGet, "jwks.json", http.StatusOK, s.endpointJWKS)

	rgAPI := s.gin.Group("api")
	s.regEndpoint(rgAPI, http.MethodPost, "credential", http.StatusCreated, s.endpointGenerate)
	s.regEndpoint(rgAPI, http.MethodGet, "credential/query", http.StatusOK, s.endpointQuery)
	s.regEndpoint(rgAPI, http.MethodPut, "credential/revoke", http.StatusOK, s.endpointRevoke)
	s.regEndpoint(rgAPI, http.MethodPut, "credential/suspend", http.StatusOK, s.endpointSuspend)
	s.regEndpoint(rgAPI, http.MethodPut, "credential/recover", http.StatusOK, s.endpointRecover)
	rgAPI.GET("credential/export", s.endpointExport)
	rgAPI.GET("status/:id", s.endpointStatusList)

	if !cfg.Common.Production {
		s.gin.GET("/swagger/*any", ginswagger.WrapHandler(swaggerfiles.Handler))
	}

	return s, nil
}

// regEndpoint wires one JSON endpoint: bind and call in the handler, render
// the reply or the mapped error here.
func (s *Service) regEndpoint(rg *gin.RouterGroup, method, path string, status int, handler func(ctx context.Context, c *gin.Context) (any, error)) {
	rg.Handle(method, path, func(c *gin.Context) {
		res, err := handler(c.Request.Context(), c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(status, res)
	})
}

// renderError maps any error onto the {code, message} wire contract.
func (s *Service) renderError(c *gin.Context, err error) {
	vcErr := vcerror.FromError(err)
	c.JSON(vcErr.HTTPStatus(), vcErr)
}

func (s *Service) recoveryHandler(c *gin.Context, recovered any) {
	s.log.Info("panic recovered", "path", c.FullPath(), "err", fmt.Sprintf("%v", recovered))
	vcErr := vcerror.New(vcerror.ErrIssuerSystemError, vcerror.MsgInternalError)
	c.AbortWithStatusJSON(vcErr.HTTPStatus(), vcErr)
}

// Start serves until the listener closes.
func (s *Service) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Issuer.APIServer.Addr,
		Handler:      s.gin,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
	}
	s.log.Info("server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close drains in-flight requests and stops the listener.
func (s *Service) Close(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	s.log.Info("server shutting down")
	return s.server.Shutdown(shutdownCtx)
}
