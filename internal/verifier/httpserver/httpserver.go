// Package httpserver exposes the verifier api over HTTP.
package httpserver

import (
	"context"
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
	"dtw/internal/verifier/apiv1"
	"dtw/pkg/logger"
	"dtw/pkg/model"
	"dtw/pkg/trace"
	"dtw/pkg/vcerror"
)

// Apiv1 is the verifier api surface served by this package.
type Apiv1 interface {
	PresentationValidation(ctx context.Context, req *apiv1.PresentationValidationRequest) ([]*model.VerifyResult, error)
	ModifyPresentationDefinition(ctx context.Context, req *apiv1.ModifyPresentationDefinitionRequest) (*apiv1.ModifyPresentationDefinitionReply, error)
	Verify(ctx context.Context, req *apiv1.VerifyRequest) (*model.VerifyResult, error)
	GetVerifyResult(ctx context.Context, req *apiv1.GetVerifyResultRequest) (*apiv1.GetVerifyResultReply, error)
	GetAuthorizationRequest(ctx context.Context, req *apiv1.AuthorizationRequestQuery) (*apiv1.AuthorizationRequestReply, error)
	Health(ctx context.Context) (*model.Health, error)
}

// Service is the verifier HTTP frontend.
type Service struct {
	cfg    *model.Cfg
	log    *logger.Log
	tracer *trace.Tracer
	apiv1  Apiv1
	gin    *gin.Engine
	server *http.Server
}

// New builds the verifier HTTP frontend and its routing table.
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
	if cfg.Verifier.APIServer.RateLimit.Enabled {
		bucket := ginratelimit.NewTokenBucket(cfg.Verifier.APIServer.RateLimit.RequestsPerMinute, time.Minute)
		s.gin.Use(ginratelimit.RateLimitByIP(bucket))
	}
	s.gin.NoRoute(func(c *gin.Context) {
		problem := problems.NewDetailedProblem(http.StatusNotFound, "no such endpoint")
		c.JSON(http.StatusNotFound, problem)
	})

	rgRoot := s.gin.Group("/")
	s.regEndpoint(rgRoot, http.MethodGet, "health", http.StatusOK, s.endpointHealth)

	rgAPI := s.gin.Group("api")
	s.regEndpoint(rgAPI, http.MethodPost, "presentation/validation", http.StatusOK, s.endpointPresentationValidation)

	rgOIDVP := rgAPI.Group("oidvp")
	s.regEndpoint(rgOIDVP, http.MethodPost, "definition", http.StatusOK, s.endpointModifyPresentationDefinition)
	s.regEndpoint(rgOIDVP, http.MethodPost, "verify", http.StatusOK, s.endpointVerify)
	s.regEndpoint(rgOIDVP, http.MethodGet, "result", http.StatusOK, s.endpointGetVerifyResult)
	s.regEndpoint(rgOIDVP, http.MethodGet, "request", http.StatusOK, s.endpointGetAuthorizationRequest)

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
	vcErr := vcerror.New(vcerror.ErrUnknown, vcerror.MsgInternalError)
	c.AbortWithStatusJSON(vcErr.HTTPStatus(), vcErr)
}

// Start serves until the listener closes.
func (s *Service) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Verifier.APIServer.Addr,
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
